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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kadirpekel/themis/pkg/config"
	"github.com/kadirpekel/themis/pkg/httpclient"
	"github.com/kadirpekel/themis/pkg/llm"
)

const defaultEmbeddingsBaseURL = "https://api.openai.com/v1"

// embeddingsProvider names this client in typed transport errors.
const embeddingsProvider = "openai-embeddings"

// Rate-limited batches wait this long before retrying. Embedding runs
// are background work, so a long flat wait beats failing the ingest.
var rateLimitWait = 60 * time.Second

const maxBatchAttempts = 3

// OpenAIEmbedder calls the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	apiKey    string
	baseURL   string
	model     string
	dimension int
	batchSize int
	client    *httpclient.Client
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewOpenAIEmbedder creates the remote client. apiKey is required.
func NewOpenAIEmbedder(apiKey string, cfg config.EmbeddingConfig) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedder: api key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultEmbeddingsBaseURL
	}
	return &OpenAIEmbedder{
		apiKey:    apiKey,
		baseURL:   baseURL,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		batchSize: cfg.BatchSize,
		client: httpclient.New(
			httpclient.WithTimeout(60*time.Second),
			httpclient.WithMaxRetries(0),
			httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
		),
	}, nil
}

func (e *OpenAIEmbedder) Dimension() int { return e.dimension }
func (e *OpenAIEmbedder) Model() string  { return e.model }

// Embed converts a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch converts texts in batchSize slices. Output order matches
// input order even when the API returns data out of order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.embedBatchWithRetry(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d failed: %w", start, end, err)
		}
		copy(out[start:end], vecs)
	}
	return out, nil
}

func (e *OpenAIEmbedder) embedBatchWithRetry(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error
	for attempt := 1; attempt <= maxBatchAttempts; attempt++ {
		vecs, rateLimited, err := e.embedBatch(ctx, batch)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
		if !rateLimited || attempt == maxBatchAttempts {
			return nil, err
		}
		timer := time.NewTimer(rateLimitWait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, bool, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Input: batch})
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, false, &llm.TimeoutError{Provider: embeddingsProvider, Err: err}
		}
		return nil, false, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, &llm.RateLimitError{Provider: embeddingsProvider}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, &llm.UpstreamError{
			Provider:   embeddingsProvider,
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}

	var apiResp embedResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, false, fmt.Errorf("failed to decode response: %w", err)
	}
	if apiResp.Error != nil {
		return nil, false, fmt.Errorf("embeddings API error: %s", apiResp.Error.Message)
	}
	if len(apiResp.Data) != len(batch) {
		return nil, false, fmt.Errorf("embeddings API returned %d vectors for %d inputs",
			len(apiResp.Data), len(batch))
	}

	// Restore input order from the index field.
	vecs := make([][]float32, len(batch))
	for _, d := range apiResp.Data {
		if d.Index < 0 || d.Index >= len(batch) {
			return nil, false, fmt.Errorf("embeddings API returned out-of-range index %d", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	for i, v := range vecs {
		if v == nil {
			return nil, false, fmt.Errorf("embeddings API missing vector for input %d", i)
		}
	}
	return vecs, false, nil
}

var _ Embedder = (*OpenAIEmbedder)(nil)
