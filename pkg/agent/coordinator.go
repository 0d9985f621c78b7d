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
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kadirpekel/themis/pkg/embedder"
	"github.com/kadirpekel/themis/pkg/llm"
	"github.com/kadirpekel/themis/pkg/vector"
)

// DefaultRAGTopK is the retrieval depth when the caller does not set one.
const DefaultRAGTopK = 5

// Coordinator is the only agent allowed to query the vector store. It
// retrieves context, fans the question out to specialists and compiles
// their opinions into a final answer.
type Coordinator struct {
	gateway     Caller
	registry    *Registry
	embed       embedder.Embedder
	store       vector.Provider
	model       string
	temperature float64
	logger      *slog.Logger
}

// NewCoordinator wires the coordinator's collaborators.
func NewCoordinator(gateway Caller, registry *Registry, embed embedder.Embedder, store vector.Provider, model string, temperature float64, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		gateway:     gateway,
		registry:    registry,
		embed:       embed,
		store:       store,
		model:       model,
		temperature: temperature,
		logger:      logger,
	}
}

// Registry exposes the specialist registry for agent-id validation.
func (c *Coordinator) Registry() *Registry { return c.registry }

// RAGQuery retrieves the topK most relevant chunk texts. Retrieval is
// best-effort: any failure degrades to an empty context (the analysis
// continues with reduced confidence) and is never propagated.
func (c *Coordinator) RAGQuery(ctx context.Context, query string, topK int, documentIDs []string) []string {
	results := c.RAGQueryChunks(ctx, query, topK, documentIDs)
	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.Text)
	}
	return texts
}

// RAGQueryChunks is RAGQuery keeping the full hits, for callers that
// need to attribute chunks back to documents. Same degradation rules.
func (c *Coordinator) RAGQueryChunks(ctx context.Context, query string, topK int, documentIDs []string) []vector.Result {
	if topK <= 0 {
		topK = DefaultRAGTopK
	}

	vec, err := c.embed.Embed(ctx, query)
	if err != nil {
		c.logger.Warn("RAG query embedding failed, continuing without context", "error", err)
		return nil
	}
	results, err := c.store.Search(ctx, vec, topK, documentIDs)
	if err != nil {
		c.logger.Warn("RAG search failed, continuing without context", "error", err)
		return nil
	}
	return results
}

// DelegateToExperts runs the selected experts concurrently. Every id
// gets a slot in the returned map: an opinion on success, a failed
// opinion on error. One expert failing never cancels the others.
func (c *Coordinator) DelegateToExperts(ctx context.Context, question string, contextDocs []string, expertIDs []string, extras map[string]string) map[string]Opinion {
	return c.delegate(ctx, question, contextDocs, expertIDs, extras, TypeExpert)
}

// DelegateToAttorneys is the same protocol for attorneys.
func (c *Coordinator) DelegateToAttorneys(ctx context.Context, question string, contextDocs []string, attorneyIDs []string, extras map[string]string) map[string]Opinion {
	return c.delegate(ctx, question, contextDocs, attorneyIDs, extras, TypeAttorney)
}

func (c *Coordinator) delegate(ctx context.Context, question string, contextDocs []string, ids []string, extras map[string]string, kind AgentType) map[string]Opinion {
	out := make(map[string]Opinion, len(ids))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			opinion := c.runOne(ctx, id, question, contextDocs, extras, kind)
			mu.Lock()
			out[id] = opinion
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}

func (c *Coordinator) runOne(ctx context.Context, id, question string, contextDocs []string, extras map[string]string, kind AgentType) Opinion {
	var a *BaseAgent
	var ok bool
	if kind == TypeExpert {
		a, ok = c.registry.Expert(id)
	} else {
		a, ok = c.registry.Attorney(id)
	}
	if !ok {
		return Opinion{AgentID: id, AgentType: kind, Failed: true,
			ErrorMessage: fmt.Sprintf("unknown %s id %q", kind, id)}
	}

	opinion, err := a.Process(ctx, contextDocs, question, extras)
	if err != nil {
		c.logger.Warn("specialist failed", "agent", id, "error", err)
		return Opinion{
			AgentID:      id,
			AgentName:    a.Identity().Name,
			AgentType:    kind,
			Failed:       true,
			ErrorMessage: err.Error(),
		}
	}
	return *opinion
}

// Compile merges the specialist opinions and the retrieved context into
// one final legal opinion via a single LLM call. Opinion order in the
// prompt follows the slice order supplied by the caller.
func (c *Coordinator) Compile(ctx context.Context, expertOpinions, attorneyOpinions []Opinion, contextDocs []string, question string) (*Opinion, error) {
	start := time.Now()

	resp, err := c.gateway.Call(ctx, llm.Request{
		System: "Você é o advogado coordenador de uma equipe multidisciplinar. " +
			"Consolide os pareceres em uma resposta única, coerente e fundamentada, " +
			"apontando convergências, divergências e a conclusão da equipe.",
		Prompt:      compilePrompt(expertOpinions, attorneyOpinions, contextDocs, question),
		Model:       c.model,
		Temperature: c.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("compilation failed: %w", err)
	}

	return &Opinion{
		AgentID:    "coordinator",
		AgentName:  "Coordenador",
		AgentType:  TypeAttorney,
		Content:    resp.Text,
		Confidence: selfConfidence(resp.Text, len(contextDocs)),
		DurationMS: time.Since(start).Milliseconds(),
	}, nil
}

func compilePrompt(expertOpinions, attorneyOpinions []Opinion, contextDocs []string, question string) string {
	var sb strings.Builder

	sb.WriteString("QUESTÃO ORIGINAL:\n")
	sb.WriteString(question)
	sb.WriteString("\n\nDOCUMENTOS DO CASO:\n")
	sb.WriteString(formatContext(contextDocs))

	writeOpinions := func(title string, opinions []Opinion) {
		sb.WriteString("\n\n")
		sb.WriteString(title)
		sb.WriteString("\n")
		if len(opinions) == 0 {
			sb.WriteString("(nenhum)\n")
			return
		}
		for _, op := range opinions {
			if op.Failed {
				fmt.Fprintf(&sb, "\n--- %s (indisponível: %s) ---\n", op.AgentID, op.ErrorMessage)
				continue
			}
			fmt.Fprintf(&sb, "\n--- %s (confiança %.2f) ---\n%s\n", op.AgentName, op.Confidence, op.Content)
		}
	}
	writeOpinions("PARECERES DOS PERITOS:", expertOpinions)
	writeOpinions("PARECERES DOS ADVOGADOS:", attorneyOpinions)

	sb.WriteString("\nConsolide os pareceres acima em uma resposta final à questão original.")
	return sb.String()
}

// AggregateConfidence scores the whole run: mean self-confidence of
// the successful opinions, minus 0.10 per failed agent, minus 0.15
// when retrieval produced no context. Clamped to [0, 1].
func AggregateConfidence(opinions []Opinion, contextEmpty bool) float64 {
	var sum float64
	var successes, failures int
	for _, op := range opinions {
		if op.Failed {
			failures++
			continue
		}
		sum += op.Confidence
		successes++
	}

	var score float64
	if successes > 0 {
		score = sum / float64(successes)
	}
	score -= 0.10 * float64(failures)
	if contextEmpty {
		score -= 0.15
	}
	return clamp01(score)
}
