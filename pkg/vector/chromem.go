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
	"fmt"
	"runtime"
	"sort"
	"strconv"

	chromem "github.com/philippgille/chromem-go"
)

// ChromemProvider stores vectors in-process with chromem-go. With a
// persist path set, the collection survives restarts; otherwise it is
// memory only. Recommended for single-node deployments.
type ChromemProvider struct {
	db  *chromem.DB
	col *chromem.Collection
}

// NewChromemProvider opens (or creates) the collection. path may be
// empty for an in-memory store.
func NewChromemProvider(path, collection string) (*ChromemProvider, error) {
	var db *chromem.DB
	var err error
	if path != "" {
		db, err = chromem.NewPersistentDB(path, true)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector store at %s: %w", path, err)
		}
	} else {
		db = chromem.NewDB()
	}

	// Vectors arrive pre-computed from the embedder; the collection's
	// own embedding function must never run.
	identity := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("chromem asked to embed %q but vectors are pre-computed", text)
	}
	col, err := db.GetOrCreateCollection(collection, nil, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %q: %w", collection, err)
	}
	return &ChromemProvider{db: db, col: col}, nil
}

func (p *ChromemProvider) Name() string { return "chromem" }

func (p *ChromemProvider) Close() error { return nil }

// UpsertDocument replaces all stored chunks of the document.
func (p *ChromemProvider) UpsertDocument(ctx context.Context, documentID string, chunks []Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunk/embedding count mismatch: %d vs %d", len(chunks), len(embeddings))
	}
	if err := p.DeleteDocument(ctx, documentID); err != nil {
		return err
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:        c.ID,
			Content:   c.Text,
			Embedding: embeddings[i],
			Metadata: map[string]string{
				fieldDocumentID: c.DocumentID,
				fieldChunkIndex: strconv.Itoa(c.Index),
				fieldPage:       strconv.Itoa(c.Page),
				fieldTokens:     strconv.Itoa(c.Tokens),
			},
		}
	}
	if err := p.col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to store chunks for %s: %w", documentID, err)
	}
	return nil
}

// Search queries by embedding. chromem's where filter matches a single
// equality, so a multi-document filter over-fetches and filters here.
func (p *ChromemProvider) Search(ctx context.Context, vector []float32, topK int, documentIDs []string) ([]Result, error) {
	total := p.col.Count()
	if total == 0 {
		return nil, nil
	}

	var where map[string]string
	fetch := topK
	switch len(documentIDs) {
	case 0:
	case 1:
		where = map[string]string{fieldDocumentID: documentIDs[0]}
	default:
		fetch = total
	}
	if fetch > total {
		fetch = total
	}

	hits, err := p.col.QueryEmbedding(ctx, vector, fetch, where, nil)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	allowed := make(map[string]bool, len(documentIDs))
	for _, id := range documentIDs {
		allowed[id] = true
	}

	out := make([]Result, 0, topK)
	for _, h := range hits {
		docID := h.Metadata[fieldDocumentID]
		if len(documentIDs) > 1 && !allowed[docID] {
			continue
		}
		out = append(out, Result{
			Chunk: Chunk{
				ID:         h.ID,
				DocumentID: docID,
				Index:      atoi(h.Metadata[fieldChunkIndex]),
				Page:       atoi(h.Metadata[fieldPage]),
				Tokens:     atoi(h.Metadata[fieldTokens]),
				Text:       h.Content,
			},
			Score: h.Similarity,
		})
		if len(out) == topK {
			break
		}
	}
	return out, nil
}

// GetByDocument walks the contiguous chunk ID sequence.
func (p *ChromemProvider) GetByDocument(ctx context.Context, documentID string) ([]Chunk, error) {
	var chunks []Chunk
	for i := 0; ; i++ {
		doc, err := p.col.GetByID(ctx, ChunkID(documentID, i))
		if err != nil {
			break
		}
		chunks = append(chunks, Chunk{
			ID:         doc.ID,
			DocumentID: documentID,
			Index:      i,
			Page:       atoi(doc.Metadata[fieldPage]),
			Tokens:     atoi(doc.Metadata[fieldTokens]),
			Text:       doc.Content,
		})
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	return chunks, nil
}

func (p *ChromemProvider) DeleteDocument(ctx context.Context, documentID string) error {
	if p.col.Count() == 0 {
		return nil
	}
	if err := p.col.Delete(ctx, map[string]string{fieldDocumentID: documentID}, nil); err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", documentID, err)
	}
	return nil
}

func (p *ChromemProvider) Count(ctx context.Context) (int, error) {
	return p.col.Count(), nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

var _ Provider = (*ChromemProvider)(nil)
