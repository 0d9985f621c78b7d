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

package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics is what the rest of the codebase records against. A nil or
// zero-value implementation is safe to call.
type Metrics interface {
	// RecordLLMCall records one chat-completion round trip.
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error)
	// RecordIngestion records one finished document ingestion.
	RecordIngestion(ctx context.Context, method string, pages int, err error)
	// RecordAnalysis records one finished multi-agent analysis.
	RecordAnalysis(ctx context.Context, duration time.Duration, err error)
	// RecordEmbeddingCache records one embedding cache lookup.
	RecordEmbeddingCache(ctx context.Context, hit bool)
	// RecordHTTPRequest records one served HTTP request.
	RecordHTTPRequest(method, path string, statusCode int, duration time.Duration, requestSize, responseSize int64)
}

// InitMetrics builds the Prometheus-backed metrics. When disabled it
// returns an empty PrometheusMetrics whose methods are no-ops, and the
// default registry stays untouched.
func InitMetrics(_ context.Context, cfg MetricsConfig) (*PrometheusMetrics, error) {
	if !cfg.Enabled {
		return &PrometheusMetrics{}, nil
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(promExporter))
	meter := meterProvider.Meter(DefaultServiceName)

	llmDuration, err := meter.Float64Histogram(
		"themis_llm_request_duration_seconds",
		metric.WithDescription("LLM request duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm duration histogram: %w", err)
	}
	llmInputTokens, err := meter.Int64Counter(
		"themis_llm_tokens_input_total",
		metric.WithDescription("Total input tokens sent to the LLM"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm input tokens counter: %w", err)
	}
	llmOutputTokens, err := meter.Int64Counter(
		"themis_llm_tokens_output_total",
		metric.WithDescription("Total output tokens received from the LLM"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm output tokens counter: %w", err)
	}
	llmErrors, err := meter.Int64Counter(
		"themis_llm_errors_total",
		metric.WithDescription("Total failed LLM requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm errors counter: %w", err)
	}

	ingestions, err := meter.Int64Counter(
		"themis_documents_ingested_total",
		metric.WithDescription("Total documents ingested"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingestion counter: %w", err)
	}
	ingestedPages, err := meter.Int64Counter(
		"themis_document_pages_total",
		metric.WithDescription("Total pages processed during ingestion"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pages counter: %w", err)
	}

	cacheLookups, err := meter.Int64Counter(
		"themis_embedding_cache_lookups_total",
		metric.WithDescription("Total embedding cache lookups, by result"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache counter: %w", err)
	}

	analysisDuration, err := meter.Float64Histogram(
		"themis_analysis_duration_seconds",
		metric.WithDescription("Multi-agent analysis duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis duration histogram: %w", err)
	}
	analyses, err := meter.Int64Counter(
		"themis_analyses_total",
		metric.WithDescription("Total multi-agent analyses"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyses counter: %w", err)
	}

	httpDuration, err := meter.Float64Histogram(
		"themis_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}
	httpRequests, err := meter.Int64Counter(
		"themis_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http requests counter: %w", err)
	}

	return &PrometheusMetrics{
		llmDuration:      llmDuration,
		llmInputTokens:   llmInputTokens,
		llmOutputTokens:  llmOutputTokens,
		llmErrors:        llmErrors,
		ingestions:       ingestions,
		ingestedPages:    ingestedPages,
		cacheLookups:     cacheLookups,
		analysisDuration: analysisDuration,
		analyses:         analyses,
		httpDuration:     httpDuration,
		httpRequests:     httpRequests,
	}, nil
}
