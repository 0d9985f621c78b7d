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

// Package llm provides the LLM gateway, the single chokepoint for chat
// completion calls.
//
// Providers (OpenAI-compatible, Anthropic, Gemini) implement the Provider
// interface; the Gateway sits above the configured provider and owns
// retries, timeouts, and usage accounting. Agent code never talks to a
// provider directly.
package llm

import "context"

// Request is a single chat completion request. The caller supplies model
// and temperature; the gateway applies the retry policy.
type Request struct {
	// System is the optional system prompt.
	System string
	// Prompt is the user message.
	Prompt string
	// Model names the provider model to use.
	Model string
	// Temperature controls sampling randomness.
	Temperature float64
	// MaxTokens caps the completion length, 0 means provider default.
	MaxTokens int
}

// Usage reports token consumption for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the completion text plus its token usage.
type Response struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}

// Provider is a chat completion backend.
type Provider interface {
	// Chat performs one completion call. Implementations classify
	// failures into *RateLimitError, *TimeoutError, or *UpstreamError.
	Chat(ctx context.Context, req Request) (*Response, error)

	// Name identifies the provider (openai, anthropic, gemini).
	Name() string

	// Close releases provider resources.
	Close() error
}
