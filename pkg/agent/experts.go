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
	"fmt"
	"strings"
)

// Expert ids accepted by the analysis surface.
const (
	ExpertMedical         = "medical"
	ExpertWorkplaceSafety = "workplace_safety"
)

var expertOrder = []string{ExpertMedical, ExpertWorkplaceSafety}

var expertFactories = map[string]func(*Registry) *BaseAgent{
	ExpertMedical:         newMedicalExpert,
	ExpertWorkplaceSafety: newWorkplaceSafetyExpert,
}

const expertPromptTemplate = `Você é %s atuando como perito técnico em um processo judicial.

Analise os documentos do caso abaixo e responda à questão formulada com
fundamentação técnica. Aponte achados objetivos (%s) e o grau de nexo
com a situação descrita. Quando os documentos não sustentarem uma
conclusão, diga isso explicitamente.

DOCUMENTOS DO CASO:
%s

QUESTÃO:
%s
%s`

func expertPrompt(role, findings string) PromptFunc {
	return func(contextDocs []string, question string, extras map[string]string) string {
		return fmt.Sprintf(expertPromptTemplate,
			role, findings, formatContext(contextDocs), question, formatExtras(extras))
	}
}

func newMedicalExpert(r *Registry) *BaseAgent {
	return &BaseAgent{
		identity: Identity{
			ID:          ExpertMedical,
			Name:        "Perito Médico",
			Description: "Avalia laudos, atestados e nexo causal entre condição de saúde e trabalho",
			Type:        TypeExpert,
		},
		system: "Você é um perito médico judicial. Seja técnico, objetivo e " +
			"fundamente cada conclusão nos documentos apresentados.",
		model:       r.model,
		temperature: r.expertTemperature,
		gateway:     r.gateway,
		buildPrompt: expertPrompt("um médico perito",
			"diagnósticos, CID, incapacidade, nexo causal"),
	}
}

func newWorkplaceSafetyExpert(r *Registry) *BaseAgent {
	return &BaseAgent{
		identity: Identity{
			ID:          ExpertWorkplaceSafety,
			Name:        "Perito em Segurança do Trabalho",
			Description: "Avalia condições de trabalho, EPIs, insalubridade e periculosidade",
			Type:        TypeExpert,
		},
		system: "Você é um engenheiro de segurança do trabalho atuando como perito. " +
			"Referencie as Normas Regulamentadoras aplicáveis.",
		model:       r.model,
		temperature: r.expertTemperature,
		gateway:     r.gateway,
		buildPrompt: expertPrompt("um engenheiro de segurança do trabalho",
			"condições ambientais, EPIs, NRs violadas, agentes de risco"),
	}
}

// expertKeywords maps expert ids to the trigger terms that suggest the
// expert is relevant to a question. Used by listings; selection itself
// is always the client's.
var expertKeywords = map[string][]string{
	ExpertMedical:         {"doença", "laudo", "atestado", "CID", "incapacidade", "lesão"},
	ExpertWorkplaceSafety: {"acidente", "EPI", "insalubridade", "periculosidade", "NR"},
}

// SuggestsExpert reports whether the question contains any of the
// expert's trigger keywords.
func SuggestsExpert(id, question string) bool {
	lower := strings.ToLower(question)
	for _, kw := range expertKeywords[id] {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
