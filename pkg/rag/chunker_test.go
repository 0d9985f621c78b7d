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

package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/themis/pkg/utils"
)

func newTestChunker(t *testing.T, maxTokens, overlap int) *RecursiveChunker {
	t.Helper()
	counter, err := utils.NewTokenCounter("text-embedding-ada-002")
	require.NoError(t, err)
	chunker, err := NewRecursiveChunker(ChunkerConfig{
		MaxTokens:     maxTokens,
		OverlapTokens: overlap,
	}, counter)
	require.NoError(t, err)
	return chunker
}

func TestChunkEmptyInput(t *testing.T) {
	chunker := newTestChunker(t, 500, 50)
	assert.Empty(t, chunker.Chunk(""))
	assert.Empty(t, chunker.Chunk("   \n\n  "))
}

func TestChunkSingleToken(t *testing.T) {
	chunker := newTestChunker(t, 500, 50)
	chunks := chunker.Chunk("hello")
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Index)
}

func TestChunkShortInputStaysWhole(t *testing.T) {
	chunker := newTestChunker(t, 500, 50)
	text := "First paragraph.\n\nSecond paragraph with more words in it."
	chunks := chunker.Chunk(text)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
}

func TestChunkRespectsTokenBudget(t *testing.T) {
	chunker := newTestChunker(t, 20, 0)
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40)

	chunks := chunker.Chunk(text)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, chunk.Tokens, 20, "chunk %d exceeds budget", chunk.Index)
	}
}

func TestChunkIndicesAreDense(t *testing.T) {
	chunker := newTestChunker(t, 15, 3)
	text := strings.Repeat("Sentence one here. Sentence two follows. ", 20)

	chunks := chunker.Chunk(text)
	require.Greater(t, len(chunks), 1)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
	}
}

func TestChunkPrefersParagraphBoundaries(t *testing.T) {
	chunker := newTestChunker(t, 12, 0)
	text := "Alpha beta gamma delta epsilon.\n\nZeta eta theta iota kappa.\n\nLambda mu nu xi omicron."

	chunks := chunker.Chunk(text)
	require.Greater(t, len(chunks), 1)
	// Paragraphs should not be welded mid-sentence when a \n\n boundary
	// was available.
	for _, chunk := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(chunk.Text))
	}
}

func TestChunkOverlapCarriesContext(t *testing.T) {
	chunker := newTestChunker(t, 15, 5)
	text := strings.Repeat("alpha bravo charlie delta echo foxtrot golf hotel. ", 10)

	with := chunker.Chunk(text)
	without := newTestChunker(t, 15, 0).Chunk(text)

	require.Greater(t, len(with), 1)
	// Overlap duplicates text across boundaries, so the total output
	// grows relative to no-overlap chunking.
	var withTotal, withoutTotal int
	for _, c := range with {
		withTotal += c.Tokens
	}
	for _, c := range without {
		withoutTotal += c.Tokens
	}
	assert.GreaterOrEqual(t, withTotal, withoutTotal)
}

func TestChunkDeterministic(t *testing.T) {
	chunker := newTestChunker(t, 25, 5)
	text := strings.Repeat("Clause one, clause two, clause three. ", 30)

	a := chunker.Chunk(text)
	b := chunker.Chunk(text)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Text, b[i].Text)
	}
}

func TestChunkLongWordFallsBackToTokenSplit(t *testing.T) {
	chunker := newTestChunker(t, 5, 0)
	// A single unbroken token sequence with no separators at all.
	text := strings.Repeat("abcdefghij", 30)

	chunks := chunker.Chunk(text)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, chunk.Tokens, 5)
	}
}

func TestChunkerConfigValidate(t *testing.T) {
	counter, err := utils.NewTokenCounter("text-embedding-ada-002")
	require.NoError(t, err)

	_, err = NewRecursiveChunker(ChunkerConfig{MaxTokens: 100, OverlapTokens: 100}, counter)
	assert.Error(t, err)

	_, err = NewRecursiveChunker(ChunkerConfig{MaxTokens: 100, OverlapTokens: 150}, counter)
	assert.Error(t, err)
}
