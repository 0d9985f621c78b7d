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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/themis/pkg/llm"
)

// fakeCaller scripts responses by substring match on the prompt.
type fakeCaller struct {
	mu       sync.Mutex
	response string
	failFor  map[string]error // substring → error
	calls    []llm.Request
}

func (f *fakeCaller) Call(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	for substr, err := range f.failFor {
		if strings.Contains(req.System, substr) || strings.Contains(req.Prompt, substr) {
			return nil, err
		}
	}
	return &llm.Response{Text: f.response, Usage: llm.Usage{TotalTokens: 10}}, nil
}

func longAnswer() string {
	return strings.Repeat("A análise dos autos demonstra nexo causal entre a atividade e o dano. ", 5)
}

func TestSelfConfidenceHeuristic(t *testing.T) {
	long := longAnswer()
	tests := []struct {
		name     string
		answer   string
		docCount int
		want     float64
	}{
		{"long answer with context", long, 3, 0.8},
		{"short answer", "Sim.", 3, 0.5},
		{"uncertainty phrase", long + " Contudo, não é possível afirmar o nexo.", 3, 0.6},
		{"few documents", long, 1, 0.7},
		{"everything wrong", "Inconclusivo.", 0, 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, selfConfidence(tt.answer, tt.docCount), 1e-9)
		})
	}
}

func TestRegistryKnownAgents(t *testing.T) {
	r := NewRegistry(&fakeCaller{}, "gpt-4o", 0.2, 0.3)

	assert.True(t, r.HasExpert(ExpertMedical))
	assert.True(t, r.HasExpert(ExpertWorkplaceSafety))
	assert.False(t, r.HasExpert("ghost"))

	assert.True(t, r.HasAttorney(AttorneyLabor))
	assert.True(t, r.HasAttorney(AttorneyTax))
	assert.False(t, r.HasAttorney(ExpertMedical))

	assert.Len(t, r.Experts(), 2)
	assert.Len(t, r.Attorneys(), 4)

	med, ok := r.Expert(ExpertMedical)
	require.True(t, ok)
	assert.InDelta(t, 0.2, med.Temperature(), 1e-9)
	assert.Equal(t, TypeExpert, med.Identity().Type)

	labor, ok := r.Attorney(AttorneyLabor)
	require.True(t, ok)
	assert.InDelta(t, 0.3, labor.Temperature(), 1e-9)
}

func TestProcessBuildsOpinion(t *testing.T) {
	caller := &fakeCaller{response: longAnswer()}
	r := NewRegistry(caller, "gpt-4o", 0.2, 0.3)
	med, _ := r.Expert(ExpertMedical)

	op, err := med.Process(context.Background(),
		[]string{"laudo médico", "atestado"}, "Há nexo causal?", nil)
	require.NoError(t, err)

	assert.Equal(t, ExpertMedical, op.AgentID)
	assert.InDelta(t, 0.8, op.Confidence, 1e-9)
	assert.False(t, op.Failed)

	require.Len(t, caller.calls, 1)
	assert.Contains(t, caller.calls[0].Prompt, "laudo médico")
	assert.Contains(t, caller.calls[0].Prompt, "Há nexo causal?")
	assert.Equal(t, "gpt-4o", caller.calls[0].Model)
}

func TestProcessRejectsEmptyQuestion(t *testing.T) {
	r := NewRegistry(&fakeCaller{response: "x"}, "gpt-4o", 0.2, 0.3)
	med, _ := r.Expert(ExpertMedical)

	_, err := med.Process(context.Background(), nil, "   ", nil)
	require.Error(t, err)
}

func TestAttorneyPromptAndCitations(t *testing.T) {
	answer := longAnswer() + "\n\nLEGISLAÇÃO CITADA:\n- CLT art. 483\n- Súmula 378 do TST\n"
	caller := &fakeCaller{response: answer}
	r := NewRegistry(caller, "gpt-4o", 0.2, 0.3)
	labor, _ := r.Attorney(AttorneyLabor)

	op, err := labor.Process(context.Background(),
		[]string{"contrato", "rescisão"}, "Cabe rescisão indireta?", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"CLT art. 483", "Súmula 378 do TST"}, op.References)
	assert.Contains(t, caller.calls[0].Prompt, "LEGISLAÇÃO CITADA:")
	assert.Contains(t, caller.calls[0].Prompt, "direito do trabalho")
}

func TestParseCitations(t *testing.T) {
	assert.Nil(t, parseCitations("parecer sem seção de citações"))

	refs := parseCitations("texto\nLEGISLAÇÃO CITADA:\n* Lei 8.213/1991\n\n- Decreto 3.048/1999")
	assert.Equal(t, []string{"Lei 8.213/1991", "Decreto 3.048/1999"}, refs)
}

func TestProcessPropagatesGatewayError(t *testing.T) {
	caller := &fakeCaller{failFor: map[string]error{"perito médico": fmt.Errorf("rate limited")}}
	r := NewRegistry(caller, "gpt-4o", 0.2, 0.3)
	med, _ := r.Expert(ExpertMedical)

	_, err := med.Process(context.Background(), nil, "Há nexo?", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ExpertMedical)
}

func TestSuggestsExpert(t *testing.T) {
	assert.True(t, SuggestsExpert(ExpertMedical, "O laudo indica incapacidade?"))
	assert.True(t, SuggestsExpert(ExpertWorkplaceSafety, "Houve fornecimento de EPI?"))
	assert.False(t, SuggestsExpert(ExpertMedical, "Qual o valor das verbas rescisórias?"))
}
