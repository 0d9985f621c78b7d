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

// Attorney ids accepted by the analysis surface.
const (
	AttorneyLabor          = "labor"
	AttorneySocialSecurity = "social_security"
	AttorneyCivil          = "civil"
	AttorneyTax            = "tax"
)

var attorneyOrder = []string{AttorneyLabor, AttorneySocialSecurity, AttorneyCivil, AttorneyTax}

var attorneyFactories = map[string]func(*Registry) *BaseAgent{
	AttorneyLabor:          newLaborAttorney,
	AttorneySocialSecurity: newSocialSecurityAttorney,
	AttorneyCivil:          newCivilAttorney,
	AttorneyTax:            newTaxAttorney,
}

// citationHeading opens the trailing section every attorney answer
// must carry; parseCitations depends on it.
const citationHeading = "LEGISLAÇÃO CITADA:"

// Attorneys share one template; the specialty section is the only
// part that varies.
const attorneyPromptTemplate = `Você é um advogado especialista em %s.

%s

Analise os documentos do caso e emita um parecer jurídico sobre a
questão formulada. Fundamente cada tese na legislação e jurisprudência
aplicáveis. Encerre o parecer com uma seção iniciada exatamente por
"%s" listando um dispositivo legal por linha.

DOCUMENTOS DO CASO:
%s

QUESTÃO:
%s
%s`

type attorneySpec struct {
	id          string
	name        string
	description string
	specialty   string
	section     string
	legislation []string
}

func attorneyFromSpec(r *Registry, spec attorneySpec) *BaseAgent {
	return &BaseAgent{
		identity: Identity{
			ID:          spec.id,
			Name:        spec.name,
			Description: spec.description,
			Type:        TypeAttorney,
		},
		system: fmt.Sprintf("Você é um advogado brasileiro especialista em %s. "+
			"Emita pareceres fundamentados, citando dispositivos legais. "+
			"Legislação principal: %s.",
			spec.specialty, strings.Join(spec.legislation, ", ")),
		model:       r.model,
		temperature: r.attorneyTemperature,
		gateway:     r.gateway,
		buildPrompt: func(contextDocs []string, question string, extras map[string]string) string {
			return fmt.Sprintf(attorneyPromptTemplate,
				spec.specialty, spec.section, citationHeading,
				formatContext(contextDocs), question, formatExtras(extras))
		},
		parseReferences: parseCitations,
	}
}

func newLaborAttorney(r *Registry) *BaseAgent {
	return attorneyFromSpec(r, attorneySpec{
		id:          AttorneyLabor,
		name:        "Advogado Trabalhista",
		description: "Direito do trabalho: vínculo, verbas rescisórias, jornada, dano moral trabalhista",
		specialty:   "direito do trabalho",
		section: "Avalie vínculo empregatício, verbas devidas, jornada, " +
			"estabilidade e eventuais danos morais ou materiais decorrentes da relação de trabalho.",
		legislation: []string{"CLT", "Súmulas do TST", "Constituição Federal art. 7º"},
	})
}

func newSocialSecurityAttorney(r *Registry) *BaseAgent {
	return attorneyFromSpec(r, attorneySpec{
		id:          AttorneySocialSecurity,
		name:        "Advogado Previdenciário",
		description: "Direito previdenciário: benefícios, auxílios, aposentadorias e nexo acidentário",
		specialty:   "direito previdenciário",
		section: "Avalie a elegibilidade a benefícios previdenciários, carência, " +
			"qualidade de segurado e o enquadramento acidentário (NTEP/nexo).",
		legislation: []string{"Lei 8.213/1991", "Decreto 3.048/1999", "EC 103/2019"},
	})
}

func newCivilAttorney(r *Registry) *BaseAgent {
	return attorneyFromSpec(r, attorneySpec{
		id:          AttorneyCivil,
		name:        "Advogado Civilista",
		description: "Direito civil: responsabilidade civil, contratos e reparação de danos",
		specialty:   "direito civil",
		section: "Avalie responsabilidade civil, validade e execução de contratos, " +
			"e a quantificação de danos materiais e morais.",
		legislation: []string{"Código Civil", "CDC", "CPC"},
	})
}

func newTaxAttorney(r *Registry) *BaseAgent {
	return attorneyFromSpec(r, attorneySpec{
		id:          AttorneyTax,
		name:        "Advogado Tributarista",
		description: "Direito tributário: incidência sobre verbas, retenções e contribuições",
		specialty:   "direito tributário",
		section: "Avalie a natureza indenizatória ou remuneratória das verbas " +
			"discutidas e os reflexos tributários e contributivos correspondentes.",
		legislation: []string{"CTN", "Lei 8.212/1991", "RIR/2018"},
	})
}

// parseCitations extracts the legislation list from the trailing
// section. The rule is deterministic: everything after the heading,
// one reference per line, stripped of list bullets. Absent section
// yields nil.
func parseCitations(answer string) []string {
	idx := strings.LastIndex(strings.ToUpper(answer), citationHeading)
	if idx < 0 {
		return nil
	}
	rest := answer[idx+len(citationHeading):]

	var refs []string
	for _, line := range strings.Split(rest, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• \t")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		refs = append(refs, line)
	}
	return refs
}
