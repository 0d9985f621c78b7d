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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider returns scripted responses/errors in order.
type fakeProvider struct {
	responses []*Response
	errs      []error
	calls     int
}

func (f *fakeProvider) Chat(ctx context.Context, req Request) (*Response, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return &Response{Text: "ok"}, nil
}

func (f *fakeProvider) Name() string { return "fake" }
func (f *fakeProvider) Close() error { return nil }

func shortBackoff(t *testing.T) {
	t.Helper()
	old := baseBackoff
	baseBackoff = time.Millisecond
	t.Cleanup(func() { baseBackoff = old })
}

func TestCallSuccess(t *testing.T) {
	provider := &fakeProvider{responses: []*Response{{
		Text:  "opinion",
		Usage: Usage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
	}}}
	gw := NewGateway(provider, 0)

	resp, err := gw.Call(context.Background(), Request{Prompt: "q", Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "opinion", resp.Text)
	assert.Equal(t, 1, provider.calls)

	stats := gw.Stats()
	assert.Equal(t, int64(1), stats.TotalCalls)
	assert.Equal(t, int64(100), stats.TotalTokensIn)
	assert.Equal(t, int64(50), stats.TotalTokensOut)
	assert.Greater(t, stats.EstimatedCostUS, 0.0)
}

func TestCallRetriesRateLimitThenSucceeds(t *testing.T) {
	shortBackoff(t)
	provider := &fakeProvider{
		errs:      []error{&RateLimitError{Provider: "fake"}, nil},
		responses: []*Response{nil, {Text: "recovered"}},
	}
	gw := NewGateway(provider, 0)

	resp, err := gw.Call(context.Background(), Request{Prompt: "q", Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Text)
	assert.Equal(t, 2, provider.calls)
}

func TestCallRetriesTimeout(t *testing.T) {
	shortBackoff(t)
	provider := &fakeProvider{
		errs:      []error{&TimeoutError{Provider: "fake"}, nil},
		responses: []*Response{nil, {Text: "recovered"}},
	}
	gw := NewGateway(provider, 0)

	resp, err := gw.Call(context.Background(), Request{Prompt: "q", Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Text)
}

func TestCallExhaustsRetries(t *testing.T) {
	shortBackoff(t)
	provider := &fakeProvider{errs: []error{
		&RateLimitError{Provider: "fake"},
		&RateLimitError{Provider: "fake"},
		&RateLimitError{Provider: "fake"},
	}}
	gw := NewGateway(provider, 0)

	_, err := gw.Call(context.Background(), Request{Prompt: "q", Model: "gpt-4o"})
	require.Error(t, err)
	assert.Equal(t, maxAttempts, provider.calls)

	var exhausted *RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, maxAttempts, exhausted.Attempts)

	var rateLimit *RateLimitError
	assert.ErrorAs(t, err, &rateLimit)
}

func TestCallFailsFastOnUpstreamError(t *testing.T) {
	provider := &fakeProvider{errs: []error{
		&UpstreamError{Provider: "fake", StatusCode: 500, Message: "boom"},
	}}
	gw := NewGateway(provider, 0)

	_, err := gw.Call(context.Background(), Request{Prompt: "q", Model: "gpt-4o"})
	require.Error(t, err)
	assert.Equal(t, 1, provider.calls)

	var upstream *UpstreamError
	assert.ErrorAs(t, err, &upstream)
}

func TestCallFailuresDoNotCountUsage(t *testing.T) {
	provider := &fakeProvider{errs: []error{
		&UpstreamError{Provider: "fake", Message: "boom"},
	}}
	gw := NewGateway(provider, 0)

	_, err := gw.Call(context.Background(), Request{Prompt: "q", Model: "gpt-4o"})
	require.Error(t, err)
	assert.Equal(t, int64(0), gw.Stats().TotalCalls)
}

func TestEstimateCost(t *testing.T) {
	usage := Usage{PromptTokens: 1_000_000, CompletionTokens: 1_000_000}

	assert.InDelta(t, 12.50, estimateCost("gpt-4o", usage), 1e-9)
	// Prefix match covers dated model names.
	assert.InDelta(t, 18.00, estimateCost("claude-3-5-sonnet-20241022", usage), 1e-9)
	assert.Equal(t, 0.0, estimateCost("unknown-model", usage))
}
