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

package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *ChromemProvider {
	t.Helper()
	p, err := NewChromemProvider("", "test")
	require.NoError(t, err)
	return p
}

func docChunks(docID string, texts ...string) ([]Chunk, [][]float32) {
	chunks := make([]Chunk, len(texts))
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		chunks[i] = Chunk{
			ID:         ChunkID(docID, i),
			DocumentID: docID,
			Index:      i,
			Page:       i + 1,
			Text:       text,
			Tokens:     len(text),
		}
		// Orthogonal-ish vectors keyed by position.
		vecs[i] = []float32{float32(i + 1), 1, 0}
	}
	return chunks, vecs
}

func TestChunkID(t *testing.T) {
	assert.Equal(t, "doc-1:0", ChunkID("doc-1", 0))
	assert.Equal(t, "doc-1:12", ChunkID("doc-1", 12))
}

func TestUpsertAndGetByDocument(t *testing.T) {
	p := newTestStore(t)
	ctx := context.Background()

	chunks, vecs := docChunks("doc-1", "clausula primeira", "clausula segunda", "clausula terceira")
	require.NoError(t, p.UpsertDocument(ctx, "doc-1", chunks, vecs))

	got, err := p.GetByDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, c := range got {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, chunks[i].Text, c.Text)
		assert.Equal(t, i+1, c.Page)
	}

	n, err := p.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestUpsertOverwritesPreviousChunks(t *testing.T) {
	p := newTestStore(t)
	ctx := context.Background()

	chunks, vecs := docChunks("doc-1", "um", "dois", "tres")
	require.NoError(t, p.UpsertDocument(ctx, "doc-1", chunks, vecs))

	chunks, vecs = docChunks("doc-1", "novo texto")
	require.NoError(t, p.UpsertDocument(ctx, "doc-1", chunks, vecs))

	got, err := p.GetByDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "novo texto", got[0].Text)
}

func TestUpsertMismatchedEmbeddings(t *testing.T) {
	p := newTestStore(t)
	chunks, vecs := docChunks("doc-1", "a", "b")
	err := p.UpsertDocument(context.Background(), "doc-1", chunks, vecs[:1])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
}

func TestSearchEmptyStore(t *testing.T) {
	p := newTestStore(t)
	results, err := p.Search(context.Background(), []float32{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchFiltersByDocument(t *testing.T) {
	p := newTestStore(t)
	ctx := context.Background()

	c1, v1 := docChunks("doc-1", "contrato de trabalho", "rescisao indireta")
	require.NoError(t, p.UpsertDocument(ctx, "doc-1", c1, v1))
	c2, v2 := docChunks("doc-2", "laudo medico pericial")
	require.NoError(t, p.UpsertDocument(ctx, "doc-2", c2, v2))

	results, err := p.Search(ctx, []float32{1, 1, 0}, 10, []string{"doc-2"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, "doc-2", r.DocumentID)
	}

	// Multi-document filter falls back to over-fetch and post-filter.
	results, err = p.Search(ctx, []float32{1, 1, 0}, 10, []string{"doc-1", "doc-2"})
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestSearchTopKClamp(t *testing.T) {
	p := newTestStore(t)
	ctx := context.Background()

	chunks, vecs := docChunks("doc-1", "um", "dois")
	require.NoError(t, p.UpsertDocument(ctx, "doc-1", chunks, vecs))

	// topK above the stored count must not error.
	results, err := p.Search(ctx, []float32{1, 1, 0}, 50, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestDeleteDocumentCascades(t *testing.T) {
	p := newTestStore(t)
	ctx := context.Background()

	c1, v1 := docChunks("doc-1", "um", "dois")
	require.NoError(t, p.UpsertDocument(ctx, "doc-1", c1, v1))
	c2, v2 := docChunks("doc-2", "tres")
	require.NoError(t, p.UpsertDocument(ctx, "doc-2", c2, v2))

	require.NoError(t, p.DeleteDocument(ctx, "doc-1"))

	got, err := p.GetByDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, got)

	n, err := p.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Deleting an absent document is a no-op.
	require.NoError(t, p.DeleteDocument(ctx, "doc-404"))
}
