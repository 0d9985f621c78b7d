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

// Package vector stores document chunks with their embeddings and
// serves similarity search over them.
//
// Three providers are available: chromem (embedded, zero-config),
// Qdrant (external, gRPC) and Pinecone (managed cloud). All persist
// the same per-chunk payload so the ingest pipeline and RAG retrieval
// are provider-agnostic.
package vector

import (
	"context"
	"fmt"
)

// Chunk is one stored fragment of a document. ID is always
// "<documentID>:<index>" so chunks of a document form a contiguous,
// addressable sequence.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Page       int // 1-based source page, 0 when unknown
	Text       string
	Tokens     int
}

// ChunkID builds the canonical chunk identifier.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s:%d", documentID, index)
}

// Result is a search hit.
type Result struct {
	Chunk
	Score float32
}

// Provider persists chunks and serves similarity search.
type Provider interface {
	// UpsertDocument stores all chunks of a document with their
	// embeddings. len(chunks) must equal len(embeddings).
	// Re-upserting a document overwrites its previous chunks.
	UpsertDocument(ctx context.Context, documentID string, chunks []Chunk, embeddings [][]float32) error

	// Search returns the topK most similar chunks. When documentIDs is
	// non-empty, only chunks of those documents are considered.
	Search(ctx context.Context, vector []float32, topK int, documentIDs []string) ([]Result, error)

	// GetByDocument returns all chunks of a document in index order.
	GetByDocument(ctx context.Context, documentID string) ([]Chunk, error)

	// DeleteDocument removes every chunk of a document.
	DeleteDocument(ctx context.Context, documentID string) error

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Name identifies the provider implementation.
	Name() string

	// Close releases provider resources.
	Close() error
}

// payload keys shared by all providers
const (
	fieldDocumentID = "document_id"
	fieldChunkIndex = "chunk_index"
	fieldPage       = "page"
	fieldText       = "text"
	fieldTokens     = "tokens"
)
