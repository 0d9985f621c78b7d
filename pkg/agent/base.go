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

package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kadirpekel/themis/pkg/llm"
)

// PromptFunc builds the user prompt from context documents, the
// question and caller-supplied extras.
type PromptFunc func(contextDocs []string, question string, extras map[string]string) string

// uncertaintyPhrases lower self-confidence when they appear in an
// answer. The set is fixed so the heuristic stays deterministic.
var uncertaintyPhrases = []string{
	"não é possível afirmar",
	"não há elementos suficientes",
	"não está claro",
	"inconclusivo",
	"insuficiente para concluir",
	"it is not possible to determine",
	"cannot conclude",
}

// BaseAgent is the shared specialist implementation. Concrete experts
// and attorneys are BaseAgents with their own identity, prompt builder
// and temperature.
type BaseAgent struct {
	identity    Identity
	system      string
	model       string
	temperature float64
	gateway     Caller
	buildPrompt PromptFunc
	// parseReferences extracts cited legislation from the raw answer.
	// Nil for agents that do not cite.
	parseReferences func(answer string) []string
}

// Identity returns the agent's identity triple.
func (a *BaseAgent) Identity() Identity { return a.identity }

// Model returns the configured model.
func (a *BaseAgent) Model() string { return a.model }

// Temperature returns the sampling temperature.
func (a *BaseAgent) Temperature() float64 { return a.temperature }

// BuildPrompt exposes the prompt builder, mostly for tests.
func (a *BaseAgent) BuildPrompt(contextDocs []string, question string, extras map[string]string) string {
	return a.buildPrompt(contextDocs, question, extras)
}

// Process runs the template method: validate, build prompt, call the
// gateway, score confidence.
func (a *BaseAgent) Process(ctx context.Context, contextDocs []string, question string, extras map[string]string) (*Opinion, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("agent %s: question is empty", a.identity.ID)
	}

	start := time.Now()
	resp, err := a.gateway.Call(ctx, llm.Request{
		System:      a.system,
		Prompt:      a.buildPrompt(contextDocs, question, extras),
		Model:       a.model,
		Temperature: a.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", a.identity.ID, err)
	}

	opinion := &Opinion{
		AgentID:    a.identity.ID,
		AgentName:  a.identity.Name,
		AgentType:  a.identity.Type,
		Content:    resp.Text,
		Confidence: selfConfidence(resp.Text, len(contextDocs)),
		DurationMS: time.Since(start).Milliseconds(),
	}
	if a.parseReferences != nil {
		opinion.References = a.parseReferences(resp.Text)
	}
	return opinion, nil
}

// selfConfidence scores an answer: start at 0.8, subtract 0.3 for a
// short answer (<200 chars), 0.2 for uncertainty phrases, 0.1 when
// fewer than two context documents were supplied. Clamped to [0, 1].
func selfConfidence(answer string, contextDocCount int) float64 {
	score := 0.8
	if len(answer) < 200 {
		score -= 0.3
	}
	lower := strings.ToLower(answer)
	for _, phrase := range uncertaintyPhrases {
		if strings.Contains(lower, phrase) {
			score -= 0.2
			break
		}
	}
	if contextDocCount < 2 {
		score -= 0.1
	}
	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// formatContext renders the retrieved chunks as a numbered block for
// the prompt, or a placeholder when retrieval found nothing.
func formatContext(contextDocs []string) string {
	if len(contextDocs) == 0 {
		return "(nenhum documento do caso disponível)"
	}
	var sb strings.Builder
	for i, doc := range contextDocs {
		fmt.Fprintf(&sb, "[Documento %d]\n%s\n\n", i+1, doc)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatExtras(extras map[string]string) string {
	if len(extras) == 0 {
		return ""
	}
	keys := make([]string, 0, len(extras))
	for k := range extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString("\nInformações adicionais:\n")
	for _, k := range keys {
		fmt.Fprintf(&sb, "- %s: %s\n", k, extras[k])
	}
	return sb.String()
}
