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

// Package orchestrator drives multi-agent analysis runs: synchronous
// for the legacy surface, asynchronous with job tracking for the
// polling surface.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/themis/pkg/agent"
	"github.com/kadirpekel/themis/pkg/jobs"
	"github.com/kadirpekel/themis/pkg/llm"
	"github.com/kadirpekel/themis/pkg/observability"
)

// Stage labels published to the analysis job table.
const (
	StageConsultingRAG       = "CONSULTING_RAG"
	StageDelegatingExperts   = "DELEGATING_EXPERTS"
	StageDelegatingAttorneys = "DELEGATING_ATTORNEYS"
	StageCompiling           = "COMPILING"
)

// ValidationError rejects a request before any job is created.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Request is one analysis to run.
type Request struct {
	Prompt      string
	Experts     []string
	Attorneys   []string
	DocumentIDs []string
}

// Orchestrator runs analyses through the coordinator and publishes
// progress to the analysis job table.
type Orchestrator struct {
	coordinator *agent.Coordinator
	store       *jobs.AnalysisStore
	logger      *slog.Logger
}

// New wires the orchestrator.
func New(coordinator *agent.Coordinator, store *jobs.AnalysisStore, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{coordinator: coordinator, store: store, logger: logger}
}

// Store exposes the job table for the status/result endpoints.
func (o *Orchestrator) Store() *jobs.AnalysisStore { return o.store }

// Registry exposes the specialist registry for listing endpoints.
func (o *Orchestrator) Registry() *agent.Registry { return o.coordinator.Registry() }

// validate checks agent ids synchronously. Unknown ids reject the
// request; empty selections are legal (RAG-only answer).
func (o *Orchestrator) validate(req Request) error {
	registry := o.coordinator.Registry()
	for _, id := range req.Experts {
		if !registry.HasExpert(id) {
			return &ValidationError{Msg: fmt.Sprintf("unknown expert id %q", id)}
		}
	}
	for _, id := range req.Attorneys {
		if !registry.HasAttorney(id) {
			return &ValidationError{Msg: fmt.Sprintf("unknown attorney id %q", id)}
		}
	}
	return nil
}

// Start validates, admits a job and runs the analysis in the
// background. No job exists when validation fails.
func (o *Orchestrator) Start(ctx context.Context, req Request) (string, error) {
	if err := o.validate(req); err != nil {
		return "", err
	}

	id := uuid.NewString()
	if _, err := o.store.Create(id, req.Prompt, req.Experts, req.Attorneys, req.DocumentIDs); err != nil {
		return "", fmt.Errorf("failed to admit analysis job: %w", err)
	}

	go o.runBackground(id, req)
	return id, nil
}

// Analyze runs the full flow synchronously and returns the result.
func (o *Orchestrator) Analyze(ctx context.Context, req Request) (*agent.AnalysisResult, error) {
	if err := o.validate(req); err != nil {
		return nil, err
	}
	return o.execute(ctx, req, func(string, int) {})
}

// runBackground executes one admitted job. Every failure, panics
// included, lands on the job as ERROR; nothing escapes the goroutine.
func (o *Orchestrator) runBackground(id string, req Request) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("analysis panicked", "analysis_id", id, "panic", r)
			_ = o.store.RecordError(id, "internal error during analysis", "internal", fmt.Sprint(r))
		}
	}()

	ctx := context.Background()
	started := time.Now()
	result, err := o.execute(ctx, req, func(stage string, percent int) {
		if err := o.store.UpdateStage(id, stage, percent); err != nil {
			o.logger.Warn("failed to update analysis stage", "analysis_id", id, "error", err)
		}
	})
	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordAnalysis(ctx, time.Since(started), err)
	}
	if err != nil {
		message, tag := classify(err)
		_ = o.store.RecordError(id, message, tag, err.Error())
		return
	}
	_ = o.store.RecordResult(id, result)
}

func (o *Orchestrator) execute(ctx context.Context, req Request, progress func(stage string, percent int)) (*agent.AnalysisResult, error) {
	started := time.Now().UTC()

	progress(StageConsultingRAG, 10)
	hits := o.coordinator.RAGQueryChunks(ctx, req.Prompt, agent.DefaultRAGTopK, req.DocumentIDs)
	contextDocs := make([]string, 0, len(hits))
	consulted := make(map[string]bool)
	for _, h := range hits {
		contextDocs = append(contextDocs, h.Text)
		consulted[h.DocumentID] = true
	}

	var expertOps []agent.Opinion
	if len(req.Experts) > 0 {
		progress(StageDelegatingExperts, 30)
		byID := o.coordinator.DelegateToExperts(ctx, req.Prompt, contextDocs, req.Experts, nil)
		expertOps = ordered(byID, req.Experts)
	}

	var attorneyOps []agent.Opinion
	if len(req.Attorneys) > 0 {
		progress(StageDelegatingAttorneys, 55)
		byID := o.coordinator.DelegateToAttorneys(ctx, req.Prompt, contextDocs, req.Attorneys, nil)
		attorneyOps = ordered(byID, req.Attorneys)
	}

	progress(StageCompiling, 80)
	compiled, err := o.coordinator.Compile(ctx, expertOps, attorneyOps, contextDocs, req.Prompt)
	if err != nil {
		return nil, err
	}

	all := make([]agent.Opinion, 0, len(expertOps)+len(attorneyOps))
	all = append(all, expertOps...)
	all = append(all, attorneyOps...)

	ended := time.Now().UTC()
	return &agent.AnalysisResult{
		CompiledAnswer:     compiled.Content,
		ExpertOpinions:     expertOps,
		AttorneyOpinions:   attorneyOps,
		DocumentsConsulted: sortedKeys(consulted),
		ExpertsUsed:        req.Experts,
		AttorneysUsed:      req.Attorneys,
		Confidence:         agent.AggregateConfidence(all, len(contextDocs) == 0),
		StartedAt:          started,
		EndedAt:            ended,
		DurationSeconds:    ended.Sub(started).Seconds(),
	}, nil
}

// ordered projects the result map back into the client's selection
// order; the compiled prompt depends on this.
func ordered(byID map[string]agent.Opinion, ids []string) []agent.Opinion {
	out := make([]agent.Opinion, 0, len(ids))
	for _, id := range ids {
		if op, ok := byID[id]; ok {
			out = append(out, op)
		}
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// classify maps a terminal error to a user message and taxonomy tag.
func classify(err error) (message, tag string) {
	var rateLimit *llm.RateLimitError
	var timeout *llm.TimeoutError
	switch {
	case errors.As(err, &rateLimit):
		return "LLM provider rate limited the request", "rate_limit"
	case errors.As(err, &timeout):
		return "LLM call timed out", "timeout"
	default:
		return "analysis failed: " + err.Error(), "upstream"
	}
}
