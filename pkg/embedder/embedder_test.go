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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/themis/pkg/config"
)

type fakeEmbedder struct {
	calls atomic.Int64
	dim   int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), float32(i)}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }
func (f *fakeEmbedder) Model() string  { return "fake-model" }

func embeddingConfig(baseURL string) config.EmbeddingConfig {
	cfg := config.EmbeddingConfig{BaseURL: baseURL}
	cfg.SetDefaults()
	return cfg
}

func TestOpenAIEmbedderRequiresKey(t *testing.T) {
	_, err := NewOpenAIEmbedder("", embeddingConfig(""))
	require.Error(t, err)
}

func TestOpenAIEmbedderRestoresOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		// Return vectors in reverse order, identified by index.
		resp := map[string]any{"data": []map[string]any{}}
		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"embedding": []float32{float32(i)},
				"index":     i,
			})
		}
		resp["data"] = data
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder("test-key", embeddingConfig(srv.URL))
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, v := range vecs {
		assert.Equal(t, []float32{float32(i)}, v)
	}
}

func TestOpenAIEmbedderBatchSplit(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.LessOrEqual(t, len(req.Input), 2)

		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"embedding": []float32{1}, "index": i}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	defer srv.Close()

	cfg := embeddingConfig(srv.URL)
	cfg.BatchSize = 2
	e, err := NewOpenAIEmbedder("test-key", cfg)
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	assert.Len(t, vecs, 5)
	assert.Equal(t, int64(3), requests.Load())
}

func TestOpenAIEmbedderRetriesRateLimit(t *testing.T) {
	old := rateLimitWait
	rateLimitWait = time.Millisecond
	t.Cleanup(func() { rateLimitWait = old })

	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{
			{"embedding": []float32{1}, "index": 0},
		}})
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder("test-key", embeddingConfig(srv.URL))
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), "texto")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, vec)
	assert.Equal(t, int64(2), requests.Load())
}

func TestOpenAIEmbedderFailsFastOnBadRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder("test-key", embeddingConfig(srv.URL))
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "texto")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestCachedEmbedderHitsSkipRemote(t *testing.T) {
	inner := &fakeEmbedder{dim: 2}
	cache, err := NewCachedEmbedder(inner, t.TempDir(), nil)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := cache.EmbedBatch(ctx, []string{"contrato", "rescisao"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), inner.calls.Load())

	second, err := cache.EmbedBatch(ctx, []string{"contrato", "rescisao"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), inner.calls.Load(), "full cache hit must not call remote")
	assert.Equal(t, first, second)
}

func TestCachedEmbedderPartialMiss(t *testing.T) {
	inner := &fakeEmbedder{dim: 2}
	cache, err := NewCachedEmbedder(inner, t.TempDir(), nil)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = cache.EmbedBatch(ctx, []string{"contrato"})
	require.NoError(t, err)

	vecs, err := cache.EmbedBatch(ctx, []string{"contrato", "novo"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, int64(2), inner.calls.Load(), "only the miss goes remote")
	assert.NotNil(t, vecs[0])
	assert.NotNil(t, vecs[1])
}

func TestCachedEmbedderEmptyInput(t *testing.T) {
	inner := &fakeEmbedder{dim: 2}
	cache, err := NewCachedEmbedder(inner, t.TempDir(), nil)
	require.NoError(t, err)

	vecs, err := cache.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
	assert.Equal(t, int64(0), inner.calls.Load())
}
