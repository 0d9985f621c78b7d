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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/themis/pkg/vector"
)

type fakeEmbedder struct{ err error }

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return 3 }
func (f *fakeEmbedder) Model() string  { return "fake" }

type fakeStore struct {
	vector.Provider
	results []vector.Result
	err     error
}

func (f *fakeStore) Search(context.Context, []float32, int, []string) ([]vector.Result, error) {
	return f.results, f.err
}

func newTestCoordinator(caller Caller, store vector.Provider) *Coordinator {
	registry := NewRegistry(caller, "gpt-4o", 0.2, 0.3)
	return NewCoordinator(caller, registry, &fakeEmbedder{}, store, "gpt-4o", 0.3, nil)
}

func TestRAGQueryReturnsTexts(t *testing.T) {
	store := &fakeStore{results: []vector.Result{
		{Chunk: vector.Chunk{Text: "primeiro trecho"}},
		{Chunk: vector.Chunk{Text: "segundo trecho"}},
	}}
	c := newTestCoordinator(&fakeCaller{response: "x"}, store)

	docs := c.RAGQuery(context.Background(), "pergunta", 0, nil)
	assert.Equal(t, []string{"primeiro trecho", "segundo trecho"}, docs)
}

func TestRAGQueryDegradesOnStoreError(t *testing.T) {
	c := newTestCoordinator(&fakeCaller{response: "x"},
		&fakeStore{err: fmt.Errorf("store unavailable")})

	docs := c.RAGQuery(context.Background(), "pergunta", 5, nil)
	assert.Empty(t, docs, "store errors must degrade to empty context")
}

func TestRAGQueryDegradesOnEmbeddingError(t *testing.T) {
	registry := NewRegistry(&fakeCaller{response: "x"}, "gpt-4o", 0.2, 0.3)
	c := NewCoordinator(&fakeCaller{response: "x"}, registry,
		&fakeEmbedder{err: fmt.Errorf("embedding down")}, &fakeStore{}, "gpt-4o", 0.3, nil)

	assert.Empty(t, c.RAGQuery(context.Background(), "pergunta", 5, nil))
}

func TestDelegateToExpertsAllSettled(t *testing.T) {
	// The workplace-safety expert fails; the medical one succeeds.
	caller := &fakeCaller{
		response: longAnswer(),
		failFor:  map[string]error{"segurança do trabalho": fmt.Errorf("rate limited")},
	}
	c := newTestCoordinator(caller, &fakeStore{})

	out := c.DelegateToExperts(context.Background(), "Há nexo?",
		[]string{"doc1", "doc2"}, []string{ExpertMedical, ExpertWorkplaceSafety}, nil)
	require.Len(t, out, 2)

	medical := out[ExpertMedical]
	assert.False(t, medical.Failed)
	assert.InDelta(t, 0.8, medical.Confidence, 1e-9)

	safety := out[ExpertWorkplaceSafety]
	assert.True(t, safety.Failed)
	assert.Contains(t, safety.ErrorMessage, "rate limited")
	assert.Empty(t, safety.Content)
}

func TestDelegateUnknownIDGetsErrorSlot(t *testing.T) {
	c := newTestCoordinator(&fakeCaller{response: longAnswer()}, &fakeStore{})

	out := c.DelegateToAttorneys(context.Background(), "pergunta", nil, []string{"ghost"}, nil)
	require.Len(t, out, 1)
	assert.True(t, out["ghost"].Failed)
	assert.Contains(t, out["ghost"].ErrorMessage, "ghost")
}

func TestCompileIncludesOpinionsInOrder(t *testing.T) {
	caller := &fakeCaller{response: longAnswer()}
	c := newTestCoordinator(caller, &fakeStore{})

	expertOps := []Opinion{
		{AgentID: ExpertMedical, AgentName: "Perito Médico", Content: "parecer médico", Confidence: 0.8},
	}
	attorneyOps := []Opinion{
		{AgentID: AttorneyLabor, AgentName: "Advogado Trabalhista", Content: "parecer trabalhista", Confidence: 0.7},
		{AgentID: AttorneyCivil, Failed: true, ErrorMessage: "timeout"},
	}

	op, err := c.Compile(context.Background(), expertOps, attorneyOps,
		[]string{"contexto"}, "Questão original?")
	require.NoError(t, err)
	assert.Equal(t, "coordinator", op.AgentID)

	prompt := caller.calls[len(caller.calls)-1].Prompt
	assert.Contains(t, prompt, "Questão original?")
	assert.Contains(t, prompt, "parecer médico")
	assert.Contains(t, prompt, "parecer trabalhista")
	assert.Contains(t, prompt, "timeout")
	assert.Less(t,
		strings.Index(prompt, "parecer trabalhista"),
		strings.Index(prompt, "civil"),
		"opinions must appear in selection order")
}

func TestAggregateConfidence(t *testing.T) {
	ok := func(conf float64) Opinion { return Opinion{Confidence: conf} }
	failed := Opinion{Failed: true}

	tests := []struct {
		name         string
		opinions     []Opinion
		contextEmpty bool
		want         float64
	}{
		{"all success", []Opinion{ok(0.8), ok(0.6)}, false, 0.7},
		{"one failure", []Opinion{ok(0.8), ok(0.6), failed}, false, 0.6},
		{"empty context penalty", []Opinion{ok(0.8)}, true, 0.65},
		{"failures only", []Opinion{failed, failed}, false, 0},
		{"clamped at zero", []Opinion{ok(0.1), failed, failed, failed}, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, AggregateConfidence(tt.opinions, tt.contextEmpty), 1e-9)
		})
	}
}
