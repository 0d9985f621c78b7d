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
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantProvider stores vectors in an external Qdrant instance over
// gRPC. Qdrant point IDs must be UUIDs, so chunk IDs are mapped to
// deterministic SHA1 UUIDs and the canonical ID lives in the payload.
type QdrantProvider struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// QdrantConfig configures the Qdrant connection.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimension  int
}

// NewQdrantProvider connects and ensures the collection exists.
func NewQdrantProvider(ctx context.Context, cfg QdrantConfig) (*QdrantProvider, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client for %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	p := &QdrantProvider{client: client, collection: cfg.Collection, dimension: cfg.Dimension}
	if err := p.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *QdrantProvider) ensureCollection(ctx context.Context) error {
	exists, err := p.client.CollectionExists(ctx, p.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %q: %w", p.collection, err)
	}
	if exists {
		return nil
	}
	err = p.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: p.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(p.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create collection %q: %w", p.collection, err)
	}
	return nil
}

func (p *QdrantProvider) Name() string { return "qdrant" }

func (p *QdrantProvider) Close() error { return p.client.Close() }

func pointID(chunkID string) *qdrant.PointId {
	return qdrant.NewID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String())
}

// UpsertDocument replaces all stored chunks of the document.
func (p *QdrantProvider) UpsertDocument(ctx context.Context, documentID string, chunks []Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunk/embedding count mismatch: %d vs %d", len(chunks), len(embeddings))
	}
	if err := p.DeleteDocument(ctx, documentID); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		payload := map[string]*qdrant.Value{
			"chunk_id":      qdrant.NewValueString(c.ID),
			fieldDocumentID: qdrant.NewValueString(c.DocumentID),
			fieldChunkIndex: qdrant.NewValueInt(int64(c.Index)),
			fieldPage:       qdrant.NewValueInt(int64(c.Page)),
			fieldTokens:     qdrant.NewValueInt(int64(c.Tokens)),
			fieldText:       qdrant.NewValueString(c.Text),
		}
		points[i] = &qdrant.PointStruct{
			Id:      pointID(c.ID),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: payload,
		}
	}

	_, err := p.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: p.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to store chunks for %s: %w", documentID, err)
	}
	return nil
}

func (p *QdrantProvider) Search(ctx context.Context, vector []float32, topK int, documentIDs []string) ([]Result, error) {
	req := &qdrant.SearchPoints{
		CollectionName: p.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if len(documentIDs) > 0 {
		req.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchKeywords(fieldDocumentID, documentIDs...),
			},
		}
	}

	res, err := p.client.GetPointsClient().Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	out := make([]Result, 0, len(res.Result))
	for _, pt := range res.Result {
		out = append(out, Result{Chunk: chunkFromPayload(pt.Payload), Score: pt.Score})
	}
	return out, nil
}

func (p *QdrantProvider) GetByDocument(ctx context.Context, documentID string) ([]Chunk, error) {
	points, err := p.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: p.collection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchKeyword(fieldDocumentID, documentID),
			},
		},
		Limit:       qdrant.PtrOf(uint32(10000)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks of %s: %w", documentID, err)
	}

	chunks := make([]Chunk, 0, len(points))
	for _, pt := range points {
		chunks = append(chunks, chunkFromPayload(pt.Payload))
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	return chunks, nil
}

func (p *QdrantProvider) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := p.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: p.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{
						qdrant.NewMatchKeyword(fieldDocumentID, documentID),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", documentID, err)
	}
	return nil
}

func (p *QdrantProvider) Count(ctx context.Context) (int, error) {
	n, err := p.client.Count(ctx, &qdrant.CountPoints{CollectionName: p.collection})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int(n), nil
}

func chunkFromPayload(payload map[string]*qdrant.Value) Chunk {
	c := Chunk{
		DocumentID: payload[fieldDocumentID].GetStringValue(),
		Index:      int(payload[fieldChunkIndex].GetIntegerValue()),
		Page:       int(payload[fieldPage].GetIntegerValue()),
		Tokens:     int(payload[fieldTokens].GetIntegerValue()),
		Text:       payload[fieldText].GetStringValue(),
	}
	if v, ok := payload["chunk_id"]; ok {
		c.ID = v.GetStringValue()
	} else {
		c.ID = ChunkID(c.DocumentID, c.Index)
	}
	return c
}

var _ Provider = (*QdrantProvider)(nil)
