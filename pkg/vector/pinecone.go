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
	"sort"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// PineconeProvider stores vectors in a managed Pinecone index. The
// index must exist already; Pinecone indexes are provisioned out of
// band, not per-request.
type PineconeProvider struct {
	client    *pinecone.Client
	indexName string
}

// PineconeConfig configures the Pinecone connection.
type PineconeConfig struct {
	APIKey    string
	IndexName string
	// IndexHost skips the DescribeIndex lookup when set.
	IndexHost string
}

// NewPineconeProvider creates the client and verifies the index.
func NewPineconeProvider(ctx context.Context, cfg PineconeConfig) (*PineconeProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("pinecone: api key is required")
	}
	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create pinecone client: %w", err)
	}

	p := &PineconeProvider{client: client, indexName: cfg.IndexName}
	if cfg.IndexHost == "" {
		if _, err := client.DescribeIndex(ctx, cfg.IndexName); err != nil {
			return nil, fmt.Errorf("pinecone index %q not reachable: %w", cfg.IndexName, err)
		}
	}
	return p, nil
}

func (p *PineconeProvider) Name() string { return "pinecone" }

func (p *PineconeProvider) Close() error { return nil }

func (p *PineconeProvider) connect(ctx context.Context) (*pinecone.IndexConnection, error) {
	index, err := p.client.DescribeIndex(ctx, p.indexName)
	if err != nil {
		return nil, fmt.Errorf("failed to describe index %s: %w", p.indexName, err)
	}
	conn, err := p.client.Index(pinecone.NewIndexConnParams{Host: index.Host})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to index %s: %w", p.indexName, err)
	}
	return conn, nil
}

// UpsertDocument replaces all stored chunks of the document.
func (p *PineconeProvider) UpsertDocument(ctx context.Context, documentID string, chunks []Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunk/embedding count mismatch: %d vs %d", len(chunks), len(embeddings))
	}
	if err := p.DeleteDocument(ctx, documentID); err != nil {
		return err
	}

	conn, err := p.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	vectors := make([]*pinecone.Vector, len(chunks))
	for i, c := range chunks {
		metadata, err := structpb.NewStruct(map[string]any{
			fieldDocumentID: c.DocumentID,
			fieldChunkIndex: c.Index,
			fieldPage:       c.Page,
			fieldTokens:     c.Tokens,
			fieldText:       c.Text,
		})
		if err != nil {
			return fmt.Errorf("failed to convert metadata for %s: %w", c.ID, err)
		}
		vectors[i] = &pinecone.Vector{
			Id:       c.ID,
			Values:   embeddings[i],
			Metadata: metadata,
		}
	}

	if _, err := conn.UpsertVectors(ctx, vectors); err != nil {
		return fmt.Errorf("failed to store chunks for %s: %w", documentID, err)
	}
	return nil
}

func (p *PineconeProvider) Search(ctx context.Context, vector []float32, topK int, documentIDs []string) ([]Result, error) {
	conn, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var filter *pinecone.MetadataFilter
	if len(documentIDs) > 0 {
		ids := make([]any, len(documentIDs))
		for i, id := range documentIDs {
			ids[i] = id
		}
		filter, err = structpb.NewStruct(map[string]any{
			fieldDocumentID: map[string]any{"$in": ids},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build filter: %w", err)
		}
	}

	resp, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		MetadataFilter:  filter,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	out := make([]Result, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m.Vector == nil {
			continue
		}
		out = append(out, Result{
			Chunk: chunkFromStruct(m.Vector.Id, m.Vector.Metadata),
			Score: m.Score,
		})
	}
	return out, nil
}

// GetByDocument lists chunk IDs by the "<documentID>:" prefix, then
// fetches them.
func (p *PineconeProvider) GetByDocument(ctx context.Context, documentID string) ([]Chunk, error) {
	conn, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	ids, err := p.listDocumentIDs(ctx, conn, documentID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	resp, err := conn.FetchVectors(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chunks of %s: %w", documentID, err)
	}

	chunks := make([]Chunk, 0, len(resp.Vectors))
	for id, v := range resp.Vectors {
		chunks = append(chunks, chunkFromStruct(id, v.Metadata))
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	return chunks, nil
}

func (p *PineconeProvider) DeleteDocument(ctx context.Context, documentID string) error {
	conn, err := p.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	ids, err := p.listDocumentIDs(ctx, conn, documentID)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := conn.DeleteVectorsById(ctx, ids); err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", documentID, err)
	}
	return nil
}

func (p *PineconeProvider) Count(ctx context.Context) (int, error) {
	conn, err := p.connect(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	stats, err := conn.DescribeIndexStats(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read index stats: %w", err)
	}
	return int(stats.TotalVectorCount), nil
}

func (p *PineconeProvider) listDocumentIDs(ctx context.Context, conn *pinecone.IndexConnection, documentID string) ([]string, error) {
	prefix := documentID + ":"
	limit := uint32(100)

	var ids []string
	var token *string
	for {
		resp, err := conn.ListVectors(ctx, &pinecone.ListVectorsRequest{
			Prefix:          &prefix,
			Limit:           &limit,
			PaginationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list chunks of %s: %w", documentID, err)
		}
		for _, id := range resp.VectorIds {
			if id != nil {
				ids = append(ids, *id)
			}
		}
		if resp.NextPaginationToken == nil {
			return ids, nil
		}
		token = resp.NextPaginationToken
	}
}

func chunkFromStruct(id string, metadata *structpb.Struct) Chunk {
	c := Chunk{ID: id}
	if metadata == nil {
		return c
	}
	fields := metadata.GetFields()
	c.DocumentID = fields[fieldDocumentID].GetStringValue()
	c.Index = int(fields[fieldChunkIndex].GetNumberValue())
	c.Page = int(fields[fieldPage].GetNumberValue())
	c.Tokens = int(fields[fieldTokens].GetNumberValue())
	c.Text = fields[fieldText].GetStringValue()
	return c
}

var _ Provider = (*PineconeProvider)(nil)
