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
	"fmt"
	"strings"

	"github.com/kadirpekel/themis/pkg/agent"
)

const draftSystemPrompt = `Você é um advogado redigindo a continuação de um processo.
Com base no parecer compilado e no prognóstico, produza a minuta da
próxima peça processual em Markdown.

Regras:
- Estruture com títulos Markdown (##).
- Todo dado específico do cliente (nomes, valores, datas, números de
  processo) deve aparecer como marcador [PERSONALIZE: descrição do dado].
- Inclua os próximos passos recomendados ao final.`

// draftPrompt assembles the user prompt for the draft step.
func draftPrompt(analysis *agent.AnalysisResult, prognosis *Prognosis, actionType string) string {
	var sb strings.Builder
	if actionType != "" {
		fmt.Fprintf(&sb, "TIPO DE AÇÃO: %s\n\n", actionType)
	}
	sb.WriteString("PARECER COMPILADO:\n")
	sb.WriteString(analysis.CompiledAnswer)
	sb.WriteString("\n\nPROGNÓSTICO:\n")
	for _, sc := range prognosis.Scenarios {
		fmt.Fprintf(&sb, "- %s: %.0f%%\n", sc.Scenario, sc.Probability)
	}
	if prognosis.Recommendation != "" {
		fmt.Fprintf(&sb, "Recomendação: %s\n", prognosis.Recommendation)
	}
	sb.WriteString("\nRedija a minuta.")
	return sb.String()
}
