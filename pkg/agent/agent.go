// Copyright 2026 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package agent implements the specialist agents of the analysis core:
// technical experts, attorneys and the coordinator that delegates to
// them and compiles their opinions.
//
// Specialists never touch the vector store; retrieval belongs to the
// coordinator alone. Every specialist runs the same template method:
// build a prompt from the context documents and the question, call the
// LLM gateway, wrap the answer in an Opinion with a deterministic
// self-confidence score.
package agent

import (
	"context"
	"time"

	"github.com/kadirpekel/themis/pkg/llm"
)

// AgentType distinguishes the two specialist families.
type AgentType string

const (
	TypeExpert   AgentType = "expert"
	TypeAttorney AgentType = "attorney"
)

// Identity describes an agent for listings and opinion attribution.
type Identity struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Type        AgentType `json:"type"`
}

// Caller is the slice of the LLM gateway the agents need.
type Caller interface {
	Call(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Opinion is one agent's answer. A failed delegation keeps its slot
// with Failed set and an error message instead of content.
type Opinion struct {
	AgentID    string    `json:"agent_id"`
	AgentName  string    `json:"agent_name"`
	AgentType  AgentType `json:"agent_type"`
	Content    string    `json:"content,omitempty"`
	Confidence float64   `json:"confidence"`
	// References holds the cited legislation attorneys emit.
	References []string `json:"references,omitempty"`
	DurationMS int64    `json:"duration_ms"`

	Failed       bool   `json:"error,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// AnalysisResult is the compiled outcome of a multi-agent run.
type AnalysisResult struct {
	CompiledAnswer     string    `json:"compiled_answer"`
	ExpertOpinions     []Opinion `json:"expert_opinions"`
	AttorneyOpinions   []Opinion `json:"attorney_opinions"`
	DocumentsConsulted []string  `json:"documents_consulted"`
	ExpertsUsed        []string  `json:"experts_used"`
	AttorneysUsed      []string  `json:"attorneys_used"`
	Confidence         float64   `json:"confidence"`
	StartedAt          time.Time `json:"started_at"`
	EndedAt            time.Time `json:"ended_at"`
	DurationSeconds    float64   `json:"duration_seconds"`
}

// Registry builds specialists by id and lists the available ones.
type Registry struct {
	gateway             Caller
	model               string
	expertTemperature   float64
	attorneyTemperature float64
}

// NewRegistry wires the specialist factories to their dependencies.
func NewRegistry(gateway Caller, model string, expertTemp, attorneyTemp float64) *Registry {
	return &Registry{
		gateway:             gateway,
		model:               model,
		expertTemperature:   expertTemp,
		attorneyTemperature: attorneyTemp,
	}
}

// Expert instantiates an expert by id.
func (r *Registry) Expert(id string) (*BaseAgent, bool) {
	factory, ok := expertFactories[id]
	if !ok {
		return nil, false
	}
	return factory(r), true
}

// Attorney instantiates an attorney by id.
func (r *Registry) Attorney(id string) (*BaseAgent, bool) {
	factory, ok := attorneyFactories[id]
	if !ok {
		return nil, false
	}
	return factory(r), true
}

// HasExpert reports whether the id names a known expert.
func (r *Registry) HasExpert(id string) bool {
	_, ok := expertFactories[id]
	return ok
}

// HasAttorney reports whether the id names a known attorney.
func (r *Registry) HasAttorney(id string) bool {
	_, ok := attorneyFactories[id]
	return ok
}

// Experts lists expert identities in stable order.
func (r *Registry) Experts() []Identity {
	out := make([]Identity, 0, len(expertOrder))
	for _, id := range expertOrder {
		if a, ok := r.Expert(id); ok {
			out = append(out, a.Identity())
		}
	}
	return out
}

// Attorneys lists attorney identities in stable order.
func (r *Registry) Attorneys() []Identity {
	out := make([]Identity, 0, len(attorneyOrder))
	for _, id := range attorneyOrder {
		if a, ok := r.Attorney(id); ok {
			out = append(out, a.Identity())
		}
	}
	return out
}
