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
	"errors"
	"fmt"
	"time"
)

// RateLimitError reports that the provider rejected the call for rate
// limiting. The gateway retries these with exponential backoff.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited (retry after %v)", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("%s: rate limited", e.Provider)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// TimeoutError reports that the call exceeded its deadline. The gateway
// retries these with exponential backoff.
type TimeoutError struct {
	Provider string
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: request timed out", e.Provider)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// UpstreamError reports any other provider failure. These fail fast.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: upstream error (HTTP %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: upstream error: %s", e.Provider, e.Message)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// RetryExhaustedError reports that the gateway gave up after its last
// attempt. The last provider error is wrapped, so errors.As still finds
// the terminal RateLimitError or TimeoutError.
type RetryExhaustedError struct {
	Operation string
	Attempts  int
	Err       error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s: retries exhausted after %d attempts: %v", e.Operation, e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// isRetryable reports whether the gateway should retry after err.
// Only rate limits and timeouts are retried; anything else fails fast.
func isRetryable(err error) bool {
	var rateLimit *RateLimitError
	var timeout *TimeoutError
	if errors.As(err, &rateLimit) || errors.As(err, &timeout) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
