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

package petition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kadirpekel/themis/pkg/agent"
	"github.com/kadirpekel/themis/pkg/llm"
	"github.com/kadirpekel/themis/pkg/orchestrator"
	"github.com/kadirpekel/themis/pkg/vector"
)

// Analyzer runs a full multi-agent analysis synchronously.
type Analyzer interface {
	Analyze(ctx context.Context, req orchestrator.Request) (*agent.AnalysisResult, error)
}

// ErrNotIndexed means the petition document has no chunks in the
// vector store yet. Ingestion is still running; callers retry.
var ErrNotIndexed = errors.New("document content is not indexed yet")

// Service drives petitions through the workflow.
type Service struct {
	store       *Store
	coordinator *agent.Coordinator
	analyzer    Analyzer
	gateway     agent.Caller
	vectors     vector.Provider
	model       string
	temperature float64
	logger      *slog.Logger
}

func NewService(store *Store, coordinator *agent.Coordinator, analyzer Analyzer, gateway agent.Caller, vectors vector.Provider, model string, temperature float64, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       store,
		coordinator: coordinator,
		analyzer:    analyzer,
		gateway:     gateway,
		vectors:     vectors,
		model:       model,
		temperature: temperature,
		logger:      logger,
	}
}

func (s *Service) Store() *Store { return s.store }

// AnalyzeDocuments runs the document-relevance step. Calling it on a
// petition that already has suggestions returns the cached list
// without another LLM call.
func (s *Service) AnalyzeDocuments(ctx context.Context, id string) ([]SuggestedDocument, error) {
	p, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if len(p.DocumentsSuggested) > 0 {
		return p.DocumentsSuggested, nil
	}
	if p.State != StateAwaitingDocuments {
		return nil, &TransitionError{From: p.State, To: StateDocumentsBeingAnalyzed}
	}

	petitionText, err := s.petitionText(ctx, p.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load petition text: %w", err)
	}

	// RAG enrichment is best-effort; the relevance call proceeds
	// without it.
	ragContext := s.coordinator.RAGQuery(ctx, ragQuery(petitionText), relevanceRAGTopK, nil)

	system, user, err := relevancePrompts(petitionText, ragContext)
	if err != nil {
		return nil, err
	}
	resp, err := s.gateway.Call(ctx, llm.Request{
		System:      system,
		Prompt:      user,
		Model:       s.model,
		Temperature: s.temperature,
	})
	if err != nil {
		return nil, err
	}

	docs, warnings, err := parseRelevance(resp.Text)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		s.logger.Warn("document relevance warning", "petition_id", id, "warning", w)
	}
	if err := s.store.SetSuggestions(id, docs, warnings); err != nil {
		var te *TransitionError
		if errors.As(err, &te) {
			// A concurrent run stored its suggestions first; serve
			// that result instead of failing.
			if cur, gerr := s.store.Get(id); gerr == nil && len(cur.DocumentsSuggested) > 0 {
				return cur.DocumentsSuggested, nil
			}
		}
		return nil, err
	}
	return docs, nil
}

// RunAnalyzeDocuments is the background form of AnalyzeDocuments:
// failures land on the petition as ERROR and nothing escapes.
// Sequencing conditions are the exception: a document still being
// ingested or a state another run already advanced is retryable, and
// must not push the petition into a terminal state.
func (s *Service) RunAnalyzeDocuments(id string) {
	defer s.recoverTo(id)
	_, err := s.AnalyzeDocuments(context.Background(), id)
	if err == nil {
		return
	}
	var te *TransitionError
	if errors.Is(err, ErrNotIndexed) || errors.Is(err, ErrTerminal) || errors.As(err, &te) {
		s.logger.Warn("document relevance not run", "petition_id", id, "reason", err)
		return
	}
	s.fail(id, err)
}

// StartAnalysis validates the agent selection, moves the petition to
// ANALYSIS_IN_PROGRESS and runs the analyze, prognose, draft chain in
// the background.
func (s *Service) StartAnalysis(id string, experts, attorneys []string) error {
	registry := s.coordinator.Registry()
	for _, e := range experts {
		if !registry.HasExpert(e) {
			return &orchestrator.ValidationError{Msg: fmt.Sprintf("unknown expert: %s", e)}
		}
	}
	for _, a := range attorneys {
		if !registry.HasAttorney(a) {
			return &orchestrator.ValidationError{Msg: fmt.Sprintf("unknown attorney: %s", a)}
		}
	}
	if err := s.store.BeginAnalysis(id, experts, attorneys); err != nil {
		return err
	}
	go s.runAnalysis(id, experts, attorneys)
	return nil
}

// runAnalysis executes the full chain and records the outcome.
func (s *Service) runAnalysis(id string, experts, attorneys []string) {
	defer s.recoverTo(id)
	ctx := context.Background()

	p, err := s.store.Get(id)
	if err != nil {
		s.logger.Error("petition vanished mid-analysis", "petition_id", id, "error", err)
		return
	}

	documentIDs := append([]string{p.DocumentID}, p.SubmittedDocumentIDs...)
	analysis, err := s.analyzer.Analyze(ctx, orchestrator.Request{
		Prompt:      analysisQuestion(p.ActionType),
		Experts:     experts,
		Attorneys:   attorneys,
		DocumentIDs: documentIDs,
	})
	if err != nil {
		s.fail(id, err)
		return
	}

	facts, err := s.petitionText(ctx, p.DocumentID)
	if err != nil {
		s.logger.Warn("failed to reload petition text for prognosis", "petition_id", id, "error", err)
		facts = ""
	}

	prognosis, err := s.prognose(ctx, analysis, facts)
	if err != nil {
		s.fail(id, err)
		return
	}

	draft, err := s.draft(ctx, analysis, prognosis, p.ActionType)
	if err != nil {
		s.fail(id, err)
		return
	}

	result := &Result{Analysis: analysis, Prognosis: prognosis, Draft: draft}
	if err := s.store.SetResult(id, result); err != nil {
		s.logger.Error("failed to store petition result", "petition_id", id, "error", err)
	}
}

func (s *Service) prognose(ctx context.Context, analysis *agent.AnalysisResult, facts string) (*Prognosis, error) {
	system, err := prognosisSystem()
	if err != nil {
		return nil, err
	}
	resp, err := s.gateway.Call(ctx, llm.Request{
		System:      system,
		Prompt:      prognosisPrompt(analysis, facts),
		Model:       s.model,
		Temperature: s.temperature,
	})
	if err != nil {
		return nil, err
	}
	return parsePrognosis(resp.Text)
}

func (s *Service) draft(ctx context.Context, analysis *agent.AnalysisResult, prognosis *Prognosis, actionType string) (string, error) {
	resp, err := s.gateway.Call(ctx, llm.Request{
		System:      draftSystemPrompt,
		Prompt:      draftPrompt(analysis, prognosis, actionType),
		Model:       s.model,
		Temperature: s.temperature,
	})
	if err != nil {
		return "", err
	}
	if !strings.Contains(resp.Text, "[PERSONALIZE:") {
		s.logger.Warn("draft has no personalization markers")
	}
	return resp.Text, nil
}

// petitionText reloads the petition's chunks from the vector store and
// joins them in order.
func (s *Service) petitionText(ctx context.Context, documentID string) (string, error) {
	chunks, err := s.vectors.GetByDocument(ctx, documentID)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotIndexed, documentID)
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return strings.Join(texts, "\n\n"), nil
}

// ragQuery trims the petition text down to a retrievable query.
func ragQuery(petitionText string) string {
	const queryBytes = 500
	return truncate(petitionText, queryBytes)
}

func analysisQuestion(actionType string) string {
	if actionType != "" {
		return fmt.Sprintf("Analise a viabilidade da ação (%s) com base na petição inicial e nos documentos apresentados, apontando pontos fortes, riscos e lacunas probatórias.", actionType)
	}
	return "Analise a viabilidade da ação com base na petição inicial e nos documentos apresentados, apontando pontos fortes, riscos e lacunas probatórias."
}

func (s *Service) fail(id string, err error) {
	message := err.Error()
	details := ""
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		message = parseErr.Error()
		details = parseErr.Raw
	}
	s.logger.Warn("petition step failed", "petition_id", id, "error", err)
	if ferr := s.store.Fail(id, message, details); ferr != nil {
		s.logger.Error("failed to record petition error", "petition_id", id, "error", ferr)
	}
}

func (s *Service) recoverTo(id string) {
	if r := recover(); r != nil {
		s.logger.Error("petition worker panicked", "petition_id", id, "panic", r)
		_ = s.store.Fail(id, "internal error", fmt.Sprint(r))
	}
}
