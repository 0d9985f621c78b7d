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

// Package rag provides token-aware chunking for document indexing.
//
// Chunking is critical for retrieval quality:
//   - Too small: loses context, retrieves fragments
//   - Too large: wastes tokens, dilutes relevance
//
// The recursive chunker splits at the most natural boundary available
// (paragraphs, then lines, then sentences, then clauses, then words)
// and measures size with the embedding model's tokenizer, so chunk
// budgets line up with what the embedding API actually sees.
package rag

import (
	"fmt"
	"strings"

	"github.com/kadirpekel/themis/pkg/utils"
)

// defaultSeparators is the boundary ladder, tried in order.
var defaultSeparators = []string{"\n\n", "\n", ". ", ", ", " "}

// Chunk is one bounded-size slice of a document's text.
type Chunk struct {
	// Text is the chunk content.
	Text string
	// Index is the dense 0-based position within the document.
	Index int
	// Tokens is the measured token count.
	Tokens int
}

// ChunkerConfig configures the recursive chunker.
type ChunkerConfig struct {
	// MaxTokens is the chunk size budget.
	MaxTokens int
	// OverlapTokens seeds each chunk with the tail of its predecessor.
	// Must be smaller than MaxTokens.
	OverlapTokens int
}

// SetDefaults applies default values.
func (c *ChunkerConfig) SetDefaults() {
	if c.MaxTokens <= 0 {
		c.MaxTokens = 500
	}
	if c.OverlapTokens < 0 {
		c.OverlapTokens = 0
	}
}

// Validate checks the configuration.
func (c *ChunkerConfig) Validate() error {
	if c.MaxTokens <= 0 {
		return fmt.Errorf("chunker: max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.OverlapTokens < 0 {
		return fmt.Errorf("chunker: overlap_tokens must not be negative, got %d", c.OverlapTokens)
	}
	if c.OverlapTokens >= c.MaxTokens {
		return fmt.Errorf("chunker: overlap_tokens (%d) must be smaller than max_tokens (%d)",
			c.OverlapTokens, c.MaxTokens)
	}
	return nil
}

// RecursiveChunker splits text into token-bounded chunks along a
// separator ladder.
type RecursiveChunker struct {
	config  ChunkerConfig
	counter *utils.TokenCounter
}

// NewRecursiveChunker creates a chunker measuring length with the given
// token counter.
func NewRecursiveChunker(cfg ChunkerConfig, counter *utils.TokenCounter) (*RecursiveChunker, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &RecursiveChunker{config: cfg, counter: counter}, nil
}

// Chunk splits text into chunks of at most MaxTokens tokens, in source
// order with dense indices from 0. Empty or whitespace-only input
// yields no chunks.
func (c *RecursiveChunker) Chunk(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	pieces := c.split(text, defaultSeparators)
	merged := c.merge(pieces)

	chunks := make([]Chunk, 0, len(merged))
	for i, text := range merged {
		chunks = append(chunks, Chunk{
			Text:   text,
			Index:  i,
			Tokens: c.counter.Count(text),
		})
	}
	return chunks
}

// split recursively cuts text into pieces no larger than MaxTokens.
// The current separator is kept attached to the preceding piece so the
// concatenation of all pieces reconstructs the input.
func (c *RecursiveChunker) split(text string, separators []string) []string {
	if c.counter.Count(text) <= c.config.MaxTokens {
		return []string{text}
	}
	if len(separators) == 0 {
		// No boundary left, cut at token positions.
		return c.counter.Split(text, c.config.MaxTokens)
	}

	sep := separators[0]
	parts := strings.Split(text, sep)
	if len(parts) == 1 {
		return c.split(text, separators[1:])
	}

	pieces := make([]string, 0, len(parts))
	for i, part := range parts {
		if i < len(parts)-1 {
			part += sep
		}
		if part == "" {
			continue
		}
		if c.counter.Count(part) <= c.config.MaxTokens {
			pieces = append(pieces, part)
		} else {
			pieces = append(pieces, c.split(part, separators[1:])...)
		}
	}
	return pieces
}

// merge greedily packs pieces into chunks up to the token budget,
// seeding each new chunk with the overlap tail of its predecessor.
// When the seed plus the next piece would blow the budget, the seed is
// dropped rather than the budget exceeded.
func (c *RecursiveChunker) merge(pieces []string) []string {
	var chunks []string
	var current strings.Builder
	currentTokens := 0

	flush := func() string {
		text := strings.TrimSpace(current.String())
		if text != "" {
			chunks = append(chunks, text)
		}
		current.Reset()
		currentTokens = 0
		return text
	}

	for _, piece := range pieces {
		pieceTokens := c.counter.Count(piece)

		if currentTokens > 0 && currentTokens+pieceTokens > c.config.MaxTokens {
			flushed := flush()
			if c.config.OverlapTokens > 0 && flushed != "" {
				seed := c.counter.Tail(flushed, c.config.OverlapTokens)
				seedTokens := c.counter.Count(seed)
				if seedTokens+pieceTokens <= c.config.MaxTokens {
					current.WriteString(seed)
					currentTokens = seedTokens
				}
			}
		}

		current.WriteString(piece)
		currentTokens += pieceTokens
	}
	flush()

	return chunks
}
