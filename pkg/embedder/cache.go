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

package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kadirpekel/themis/pkg/observability"
)

// cacheEntry is one embedding on disk, keyed by content hash.
type cacheEntry struct {
	Embedding []float32 `json:"embedding"`
	Timestamp time.Time `json:"timestamp"`
	Model     string    `json:"model"`
	Hash      string    `json:"hash"`
}

// CachedEmbedder wraps an Embedder with a disk cache keyed by
// SHA-256(text + model). Cache failures never fail an embedding run:
// read misses fall through to the remote, write errors are logged.
type CachedEmbedder struct {
	inner  Embedder
	dir    string
	logger *slog.Logger
}

// NewCachedEmbedder creates the cache directory if needed.
func NewCachedEmbedder(inner Embedder, dir string, logger *slog.Logger) (*CachedEmbedder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create embedding cache dir %s: %w", dir, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedEmbedder{inner: inner, dir: dir, logger: logger}, nil
}

func (c *CachedEmbedder) Dimension() int { return c.inner.Dimension() }
func (c *CachedEmbedder) Model() string  { return c.inner.Model() }

// Embed returns the cached vector when present, otherwise delegates
// and stores the result.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch resolves each text from cache and sends only the misses
// to the inner embedder, in one batch, preserving input order.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int
	hashes := make([]string, len(texts))

	metrics := observability.GetGlobalMetrics()
	for i, text := range texts {
		hashes[i] = c.hash(text)
		if vec, ok := c.read(hashes[i]); ok {
			out[i] = vec
			if metrics != nil {
				metrics.RecordEmbeddingCache(ctx, true)
			}
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
		if metrics != nil {
			metrics.RecordEmbeddingCache(ctx, false)
		}
	}

	if len(missTexts) > 0 {
		vecs, err := c.inner.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		for j, vec := range vecs {
			i := missIdx[j]
			out[i] = vec
			c.write(hashes[i], vec)
		}
	}
	return out, nil
}

func (c *CachedEmbedder) hash(text string) string {
	sum := sha256.Sum256([]byte(text + c.inner.Model()))
	return hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) path(hash string) string {
	return filepath.Join(c.dir, hash+".json")
}

func (c *CachedEmbedder) read(hash string) ([]float32, bool) {
	data, err := os.ReadFile(c.path(hash))
	if err != nil {
		return nil, false
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		// Corrupt entry, treat as a miss and let the write replace it.
		c.logger.Warn("corrupt embedding cache entry", "hash", hash, "error", err)
		return nil, false
	}
	return entry.Embedding, true
}

func (c *CachedEmbedder) write(hash string, vec []float32) {
	entry := cacheEntry{
		Embedding: vec,
		Timestamp: time.Now().UTC(),
		Model:     c.inner.Model(),
		Hash:      hash,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("failed to marshal embedding cache entry", "hash", hash, "error", err)
		return
	}
	if err := os.WriteFile(c.path(hash), data, 0o644); err != nil {
		c.logger.Warn("failed to write embedding cache entry", "hash", hash, "error", err)
	}
}

var _ Embedder = (*CachedEmbedder)(nil)
