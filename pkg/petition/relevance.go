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
	"strings"
	"unicode/utf8"

	"github.com/invopop/jsonschema"
)

// Relevance step limits.
const (
	maxPetitionBytes  = 8000
	relevanceRAGTopK  = 5
	minSuggestions    = 3
	maxSuggestions    = 15
	parseErrorRawSize = 500
)

// ParseError reports an LLM response that was required to be strict
// JSON but was not. Raw holds a bounded prefix for debugging.
type ParseError struct {
	Step string
	Raw  string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: response is not the required JSON: %v", e.Step, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func newParseError(step, raw string, err error) *ParseError {
	return &ParseError{Step: step, Raw: truncate(raw, parseErrorRawSize), Err: err}
}

// truncate shortens s to at most n bytes, backing up so a multi-byte
// rune is never split.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// relevanceResponse is the shape the relevance prompt demands.
type relevanceResponse struct {
	DocumentsSuggested []SuggestedDocument `json:"documents_suggested" jsonschema:"required"`
}

const relevanceSystemPrompt = `Você é um assistente jurídico especializado em instrução processual.
Dada uma petição inicial, liste os documentos que devem instruir o processo.

Responda EXCLUSIVAMENTE com um objeto JSON válido, sem texto adicional,
no seguinte schema:

%s

Regras:
- Entre %d e %d documentos.
- "priority" deve ser exatamente um de: "essential", "important", "desirable".
- "justification" explica em uma frase por que o documento é necessário.`

const relevanceUserPrompt = `PETIÇÃO (trecho):
%s
%s
Liste os documentos necessários.`

// relevancePrompts builds the system and user prompts for the
// document-relevance call. The response schema is reflected from the
// Go type so prompt and parser cannot drift apart.
func relevancePrompts(petitionText string, ragContext []string) (system, user string, err error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema, err := json.MarshalIndent(reflector.Reflect(&relevanceResponse{}), "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("failed to reflect relevance schema: %w", err)
	}

	petitionText = truncate(petitionText, maxPetitionBytes)
	var ctxSection string
	if len(ragContext) > 0 {
		var sb strings.Builder
		sb.WriteString("\nCONTEXTO ADICIONAL DO ACERVO:\n")
		for _, c := range ragContext {
			sb.WriteString("- ")
			sb.WriteString(c)
			sb.WriteString("\n")
		}
		ctxSection = sb.String()
	}

	system = fmt.Sprintf(relevanceSystemPrompt, schema, minSuggestions, maxSuggestions)
	user = fmt.Sprintf(relevanceUserPrompt, petitionText, ctxSection)
	return system, user, nil
}

// parseRelevance parses the relevance response. Items with an unknown
// priority are kept as "important" with a warning; items without a
// type are dropped. Zero surviving items is a parse error.
func parseRelevance(raw string) ([]SuggestedDocument, []string, error) {
	var resp relevanceResponse
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &resp); err != nil {
		return nil, nil, newParseError("document relevance", raw, err)
	}

	var docs []SuggestedDocument
	var warnings []string
	for _, item := range resp.DocumentsSuggested {
		item.Type = strings.TrimSpace(item.Type)
		if item.Type == "" {
			warnings = append(warnings, "dropped a suggestion without a document type")
			continue
		}
		switch item.Priority {
		case PriorityEssential, PriorityImportant, PriorityDesirable:
		default:
			warnings = append(warnings,
				fmt.Sprintf("unknown priority %q for %q, defaulting to important", item.Priority, item.Type))
			item.Priority = PriorityImportant
		}
		docs = append(docs, item)
	}

	if len(docs) == 0 {
		return nil, nil, newParseError("document relevance", raw,
			fmt.Errorf("no valid suggestions in response"))
	}
	if len(docs) > maxSuggestions {
		warnings = append(warnings,
			fmt.Sprintf("model returned %d suggestions, keeping the first %d", len(docs), maxSuggestions))
		docs = docs[:maxSuggestions]
	}
	if len(docs) < minSuggestions {
		warnings = append(warnings,
			fmt.Sprintf("model returned only %d suggestions", len(docs)))
	}
	return docs, warnings, nil
}

// stripCodeFences unwraps a ```json fenced block if the model ignored
// the no-extra-text instruction, and otherwise trims to the outermost
// JSON object.
func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return s
}
