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
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/themis/pkg/agent"
	"github.com/kadirpekel/themis/pkg/llm"
	"github.com/kadirpekel/themis/pkg/orchestrator"
	"github.com/kadirpekel/themis/pkg/vector"
)

const validRelevanceJSON = `{"documents_suggested": [
	{"type": "CTPS", "justification": "vínculo", "priority": "essential"},
	{"type": "Laudo médico", "justification": "doença", "priority": "important"},
	{"type": "Contracheques", "justification": "cálculo", "priority": "desirable"}
]}`

const validPrognosisJSON = `{"scenarios": [
	{"scenario": "VICTORY_TOTAL", "probability": 15},
	{"scenario": "VICTORY_PARTIAL", "probability": 50},
	{"scenario": "SETTLEMENT", "probability": 25},
	{"scenario": "DEFEAT", "probability": 10}
], "overall_recommendation": "prosseguir", "critical_factors": ["nexo causal"]}`

const validDraft = "## Réplica\n\nO autor [PERSONALIZE: nome do autor] reitera os pedidos.\n"

// routedCaller answers each call by matching a substring of its system
// prompt, and counts calls per route.
type routedCaller struct {
	mu     sync.Mutex
	routes map[string]string // system substring -> response text
	errFor string            // system substring that fails
	counts map[string]int
}

func (f *routedCaller) Call(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, text := range f.routes {
		if strings.Contains(req.System, key) {
			if f.counts == nil {
				f.counts = map[string]int{}
			}
			f.counts[key]++
			if key == f.errFor {
				return nil, &llm.UpstreamError{Provider: "fake", Message: "forced failure"}
			}
			return &llm.Response{Text: text}, nil
		}
	}
	return &llm.Response{Text: "resposta genérica"}, nil
}

func (f *routedCaller) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[key]
}

type fakeAnalyzer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req orchestrator.Request) (*agent.AnalysisResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &agent.AnalysisResult{
		CompiledAnswer: "parecer compilado",
		ExpertOpinions: []agent.Opinion{{AgentID: "medical", Content: "laudo favorável"}},
		ExpertsUsed:    req.Experts,
		AttorneysUsed:  req.Attorneys,
		Confidence:     0.7,
	}, nil
}

// downEmbedder forces the RAG enrichment down its degradation path.
type downEmbedder struct{}

func (downEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, assert.AnError
}

func (downEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, assert.AnError
}

func (downEmbedder) Dimension() int { return 3 }
func (downEmbedder) Model() string  { return "down" }

type fakeVectors struct {
	vector.Provider
	chunks map[string][]vector.Chunk
}

func (f *fakeVectors) GetByDocument(_ context.Context, documentID string) ([]vector.Chunk, error) {
	return f.chunks[documentID], nil
}

func newTestService(caller *routedCaller, analyzer *fakeAnalyzer) (*Service, *Store) {
	store := NewStore()
	registry := agent.NewRegistry(caller, "gpt-4", 0.2, 0.3)
	vectors := &fakeVectors{chunks: map[string][]vector.Chunk{
		"doc-1": {{ID: "doc-1:0", DocumentID: "doc-1", Text: "petição trabalhista sobre doença ocupacional"}},
	}}
	coordinator := agent.NewCoordinator(caller, registry, downEmbedder{}, vectors, "gpt-4", 0.3, nil)
	svc := NewService(store, coordinator, analyzer, caller, vectors, "gpt-4", 0.3, nil)
	return svc, store
}

func TestAnalyzeDocuments(t *testing.T) {
	caller := &routedCaller{routes: map[string]string{"instrução processual": validRelevanceJSON}}
	svc, store := newTestService(caller, &fakeAnalyzer{})
	newPetition(t, store, "pet-1")

	docs, err := svc.AnalyzeDocuments(context.Background(), "pet-1")
	require.NoError(t, err)
	assert.Len(t, docs, 3)
	assert.Equal(t, 1, caller.count("instrução processual"))

	p, _ := store.Get("pet-1")
	assert.Equal(t, StateDocumentsBeingAnalyzed, p.State)
}

func TestAnalyzeDocumentsIdempotent(t *testing.T) {
	caller := &routedCaller{routes: map[string]string{"instrução processual": validRelevanceJSON}}
	svc, store := newTestService(caller, &fakeAnalyzer{})
	newPetition(t, store, "pet-1")

	first, err := svc.AnalyzeDocuments(context.Background(), "pet-1")
	require.NoError(t, err)
	second, err := svc.AnalyzeDocuments(context.Background(), "pet-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, caller.count("instrução processual"))
}

func TestRunAnalyzeDocumentsParseFailure(t *testing.T) {
	caller := &routedCaller{routes: map[string]string{"instrução processual": "not json at all"}}
	svc, store := newTestService(caller, &fakeAnalyzer{})
	newPetition(t, store, "pet-1")

	svc.RunAnalyzeDocuments("pet-1")

	p, _ := store.Get("pet-1")
	assert.Equal(t, StateError, p.State)
	assert.Contains(t, p.ErrorDetails, "not json")
}

func TestRunAnalyzeDocumentsBeforeIngestion(t *testing.T) {
	caller := &routedCaller{routes: map[string]string{"instrução processual": validRelevanceJSON}}
	svc, store := newTestService(caller, &fakeAnalyzer{})
	_, err := store.Create("pet-1", "up-1", "doc-pending", "")
	require.NoError(t, err)

	// The petition document has no chunks yet: the run must leave
	// the petition retryable, not push it into ERROR.
	svc.RunAnalyzeDocuments("pet-1")

	p, _ := store.Get("pet-1")
	require.Equal(t, StateAwaitingDocuments, p.State)
	assert.Empty(t, p.ErrorMessage)

	// Once ingestion lands the chunks, a retry goes through.
	svc.vectors.(*fakeVectors).chunks["doc-pending"] = []vector.Chunk{
		{ID: "doc-pending:0", DocumentID: "doc-pending", Text: "petição inicial"},
	}
	svc.RunAnalyzeDocuments("pet-1")

	p, _ = store.Get("pet-1")
	assert.Equal(t, StateDocumentsBeingAnalyzed, p.State)
	assert.Len(t, p.DocumentsSuggested, 3)
}

func TestRunAnalyzeDocumentsAfterStateAdvanced(t *testing.T) {
	caller := &routedCaller{routes: map[string]string{"instrução processual": validRelevanceJSON}}
	svc, store := newTestService(caller, &fakeAnalyzer{})
	newPetition(t, store, "pet-1")
	require.NoError(t, store.BeginAnalysis("pet-1", nil, nil))

	// A stale relevance run against an advanced petition is a no-op.
	svc.RunAnalyzeDocuments("pet-1")

	p, _ := store.Get("pet-1")
	assert.Equal(t, StateAnalysisInProgress, p.State)
	assert.Empty(t, p.ErrorMessage)
}

func TestAnalyzeDocumentsConcurrent(t *testing.T) {
	caller := &routedCaller{routes: map[string]string{"instrução processual": validRelevanceJSON}}
	svc, store := newTestService(caller, &fakeAnalyzer{})
	newPetition(t, store, "pet-1")

	// Racing calls may both miss the cache; the loser must settle on
	// the stored suggestions instead of failing the petition.
	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.AnalyzeDocuments(context.Background(), "pet-1")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	p, _ := store.Get("pet-1")
	assert.Equal(t, StateDocumentsBeingAnalyzed, p.State)
	assert.Len(t, p.DocumentsSuggested, 3)
}

func TestStartAnalysisRejectsUnknownAgent(t *testing.T) {
	caller := &routedCaller{routes: map[string]string{}}
	svc, store := newTestService(caller, &fakeAnalyzer{})
	newPetition(t, store, "pet-1")

	err := svc.StartAnalysis("pet-1", []string{"ghost"}, nil)
	var ve *orchestrator.ValidationError
	require.ErrorAs(t, err, &ve)

	p, _ := store.Get("pet-1")
	assert.Equal(t, StateAwaitingDocuments, p.State)
}

func TestStartAnalysisFullChain(t *testing.T) {
	caller := &routedCaller{routes: map[string]string{
		"chances de êxito": validPrognosisJSON,
		"minuta":           validDraft,
	}}
	analyzer := &fakeAnalyzer{}
	svc, store := newTestService(caller, analyzer)
	newPetition(t, store, "pet-1")
	require.NoError(t, store.SetSuggestions("pet-1", []SuggestedDocument{
		{Type: "CTPS", Priority: PriorityDesirable},
		{Type: "Laudo", Priority: PriorityImportant},
		{Type: "Fotos", Priority: PriorityDesirable},
	}, nil))

	require.NoError(t, svc.StartAnalysis("pet-1", []string{"medical"}, []string{"labor"}))

	require.Eventually(t, func() bool {
		p, err := store.Get("pet-1")
		return err == nil && p.State.Terminal()
	}, 2*time.Second, 10*time.Millisecond)

	p, _ := store.Get("pet-1")
	require.Equal(t, StateCompleted, p.State)
	require.NotNil(t, p.Result)
	assert.Equal(t, "parecer compilado", p.Result.Analysis.CompiledAnswer)
	require.NotNil(t, p.Result.Prognosis)
	assert.Len(t, p.Result.Prognosis.Scenarios, 4)
	assert.Contains(t, p.Result.Draft, "[PERSONALIZE:")
	assert.Equal(t, 1, analyzer.calls)
}

func TestStartAnalysisPrognosisFailure(t *testing.T) {
	caller := &routedCaller{routes: map[string]string{
		"chances de êxito": `{"scenarios": [{"scenario": "DEFEAT", "probability": 40}]}`,
	}}
	svc, store := newTestService(caller, &fakeAnalyzer{})
	newPetition(t, store, "pet-1")
	require.NoError(t, store.SetSuggestions("pet-1", []SuggestedDocument{
		{Type: "CTPS", Priority: PriorityDesirable},
	}, nil))

	require.NoError(t, svc.StartAnalysis("pet-1", nil, nil))

	require.Eventually(t, func() bool {
		p, err := store.Get("pet-1")
		return err == nil && p.State == StateError
	}, 2*time.Second, 10*time.Millisecond)

	p, _ := store.Get("pet-1")
	assert.Contains(t, p.ErrorMessage, "prognosis")
}
