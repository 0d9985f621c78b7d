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
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/kadirpekel/themis/pkg/agent"
)

// sumTolerance allows for rounding in the probability distribution.
const sumTolerance = 1.0

var knownScenarios = map[string]bool{
	ScenarioVictoryTotal:   true,
	ScenarioVictoryPartial: true,
	ScenarioSettlement:     true,
	ScenarioDefeat:         true,
}

const prognosisSystemPrompt = `Você é um advogado sênior avaliando as chances de êxito de um processo.
Com base no parecer compilado e nos pareceres individuais, distribua a
probabilidade de cada cenário.

Responda EXCLUSIVAMENTE com um objeto JSON válido, sem texto adicional,
no seguinte schema:

%s

Regras:
- "scenarios" deve conter exatamente os quatro cenários
  VICTORY_TOTAL, VICTORY_PARTIAL, SETTLEMENT e DEFEAT.
- As probabilidades devem somar 100.
- "overall_recommendation" resume a estratégia recomendada.
- "critical_factors" lista os fatores que mais influenciam o desfecho.`

// prognosisPrompt assembles the user prompt from the analysis result
// and the case facts.
func prognosisPrompt(analysis *agent.AnalysisResult, facts string) string {
	var sb strings.Builder
	sb.WriteString("PARECER COMPILADO:\n")
	sb.WriteString(analysis.CompiledAnswer)
	sb.WriteString("\n\n")
	for _, op := range append(append([]agent.Opinion(nil), analysis.ExpertOpinions...), analysis.AttorneyOpinions...) {
		if op.Failed {
			continue
		}
		fmt.Fprintf(&sb, "--- %s ---\n%s\n\n", op.AgentName, op.Content)
	}
	if facts != "" {
		facts = truncate(facts, maxPetitionBytes)
		sb.WriteString("FATOS DO CASO:\n")
		sb.WriteString(facts)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Elabore o prognóstico.")
	return sb.String()
}

func prognosisSystem() (string, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema, err := json.MarshalIndent(reflector.Reflect(&Prognosis{}), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to reflect prognosis schema: %w", err)
	}
	return fmt.Sprintf(prognosisSystemPrompt, schema), nil
}

// parsePrognosis parses and validates the prognosis response:
// probabilities must be non-negative, scenario names known and not
// repeated, and the distribution must sum to 100 within tolerance.
func parsePrognosis(raw string) (*Prognosis, error) {
	var p Prognosis
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &p); err != nil {
		return nil, newParseError("prognosis", raw, err)
	}
	if len(p.Scenarios) == 0 {
		return nil, newParseError("prognosis", raw, fmt.Errorf("no scenarios in response"))
	}

	seen := map[string]bool{}
	var sum float64
	for _, sc := range p.Scenarios {
		if !knownScenarios[sc.Scenario] {
			return nil, newParseError("prognosis", raw,
				fmt.Errorf("unknown scenario %q", sc.Scenario))
		}
		if seen[sc.Scenario] {
			return nil, newParseError("prognosis", raw,
				fmt.Errorf("scenario %q repeated", sc.Scenario))
		}
		seen[sc.Scenario] = true
		if sc.Probability < 0 || math.IsNaN(sc.Probability) {
			return nil, newParseError("prognosis", raw,
				fmt.Errorf("invalid probability %v for %s", sc.Probability, sc.Scenario))
		}
		sum += sc.Probability
	}
	if math.Abs(sum-100) > sumTolerance {
		return nil, newParseError("prognosis", raw,
			fmt.Errorf("probabilities sum to %.2f, expected 100", sum))
	}
	return &p, nil
}
