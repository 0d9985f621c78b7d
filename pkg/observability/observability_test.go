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
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroValueMetricsAreNoops(t *testing.T) {
	ctx := context.Background()
	m := &PrometheusMetrics{}

	assert.NotPanics(t, func() {
		m.RecordLLMCall(ctx, "gpt-4", 500*time.Millisecond, 100, 50, nil)
		m.RecordIngestion(ctx, "ocr", 10, nil)
		m.RecordAnalysis(ctx, 3*time.Second, fmt.Errorf("boom"))
		m.RecordHTTPRequest("GET", "/health", 200, time.Millisecond, 0, 42)
	})
}

func TestDisabledManagerInitializes(t *testing.T) {
	m := NewManager(Config{})
	require.NoError(t, m.Initialize(context.Background()))
	assert.NotNil(t, m.Tracer("test"))
	assert.NotNil(t, m.Metrics())
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestConfigValidation(t *testing.T) {
	cfg := Config{Tracing: TracingConfig{Enabled: true, Exporter: "carrier-pigeon"}}
	assert.Error(t, cfg.Validate())

	cfg = Config{Tracing: TracingConfig{Enabled: true, Exporter: "otlp", SamplingRate: 1.5}}
	assert.Error(t, cfg.Validate())

	cfg = Config{}
	cfg.SetDefaults()
	assert.Equal(t, "otlp", cfg.Tracing.Exporter)
	assert.Equal(t, DefaultServiceName, cfg.Tracing.ServiceName)
	assert.NoError(t, cfg.Validate())
}

type captureMetrics struct {
	PrometheusMetrics
	method string
	path   string
	status int
}

func (c *captureMetrics) RecordHTTPRequest(method, path string, statusCode int, _ time.Duration, _, _ int64) {
	c.method = method
	c.path = path
	c.status = statusCode
}

func TestHTTPMiddlewareRecordsStatus(t *testing.T) {
	captured := &captureMetrics{}
	handler := HTTPMiddleware(nil, captured)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("nope"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents/upload-status/x", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "GET", captured.method)
	assert.Equal(t, "/api/documents/upload-status/x", captured.path)
	assert.Equal(t, http.StatusNotFound, captured.status)
}

func TestGlobalMetricsRegistry(t *testing.T) {
	prev := GetGlobalMetrics()
	t.Cleanup(func() { SetGlobalMetrics(prev) })

	m := &PrometheusMetrics{}
	SetGlobalMetrics(m)
	assert.Equal(t, Metrics(m), GetGlobalMetrics())
}
