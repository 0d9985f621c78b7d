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

package llm

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/kadirpekel/themis/pkg/observability"
)

// maxAttempts bounds retries on rate-limit and timeout failures.
const maxAttempts = 3

// baseBackoff doubles per attempt: 1s, 2s, 4s. Variable so tests can
// shorten it.
var baseBackoff = time.Second

// Gateway is the single entry point for LLM calls. It owns the retry
// policy, the per-call timeout, and process-level usage accounting.
type Gateway struct {
	provider Provider
	timeout  time.Duration

	totalCalls       atomic.Int64
	totalTokensIn    atomic.Int64
	totalTokensOut   atomic.Int64
	totalCostMicroUS atomic.Int64
}

// Stats are the process-level usage aggregates.
type Stats struct {
	TotalCalls      int64   `json:"total_calls"`
	TotalTokensIn   int64   `json:"total_tokens_in"`
	TotalTokensOut  int64   `json:"total_tokens_out"`
	EstimatedCostUS float64 `json:"estimated_cost_usd"`
}

// NewGateway creates a gateway over the given provider. timeout bounds
// each individual attempt; zero means no gateway-imposed deadline.
func NewGateway(provider Provider, timeout time.Duration) *Gateway {
	return &Gateway{provider: provider, timeout: timeout}
}

// Provider returns the name of the underlying provider.
func (g *Gateway) Provider() string {
	return g.provider.Name()
}

// Call performs one chat completion with up to three attempts on
// rate-limit and timeout failures, backing off 1s, 2s, 4s between
// attempts. Other failures return immediately.
func (g *Gateway) Call(ctx context.Context, req Request) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := baseBackoff << (attempt - 1)
			slog.Warn("Retrying LLM call",
				slog.String("model", req.Model),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
				slog.String("error", lastErr.Error()))
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, &TimeoutError{Provider: g.provider.Name(), Err: ctx.Err()}
			case <-timer.C:
			}
		}

		resp, err := g.attempt(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, &RetryExhaustedError{
		Operation: "llm call",
		Attempts:  maxAttempts,
		Err:       lastErr,
	}
}

func (g *Gateway) attempt(ctx context.Context, req Request) (*Response, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.provider.Chat(ctx, req)
	duration := time.Since(start)

	var in, out int
	if resp != nil {
		in, out = resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	}
	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordLLMCall(ctx, req.Model, duration, in, out, err)
	}
	if err != nil {
		return nil, err
	}

	g.record(req.Model, resp.Usage)
	return resp, nil
}

func (g *Gateway) record(model string, usage Usage) {
	g.totalCalls.Add(1)
	g.totalTokensIn.Add(int64(usage.PromptTokens))
	g.totalTokensOut.Add(int64(usage.CompletionTokens))
	// Cost is tracked in micro-USD so the aggregate stays an atomic
	// integer.
	g.totalCostMicroUS.Add(int64(estimateCost(model, usage) * 1e6))
}

// Stats returns a snapshot of the usage aggregates.
func (g *Gateway) Stats() Stats {
	return Stats{
		TotalCalls:      g.totalCalls.Load(),
		TotalTokensIn:   g.totalTokensIn.Load(),
		TotalTokensOut:  g.totalTokensOut.Load(),
		EstimatedCostUS: float64(g.totalCostMicroUS.Load()) / 1e6,
	}
}
