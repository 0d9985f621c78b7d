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

// Package server is the HTTP surface. It validates requests, admits
// background jobs, and translates store state into status codes; no
// domain logic lives here.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kadirpekel/themis/pkg/config"
	"github.com/kadirpekel/themis/pkg/ingest"
	"github.com/kadirpekel/themis/pkg/jobs"
	"github.com/kadirpekel/themis/pkg/observability"
	"github.com/kadirpekel/themis/pkg/orchestrator"
	"github.com/kadirpekel/themis/pkg/petition"
	"github.com/kadirpekel/themis/pkg/vector"
)

// Prompt length bounds for analysis requests.
const (
	minPromptLen = 10
	maxPromptLen = 5000
)

// uploadExtensions is the general ingestion allow-list. Petitions use
// the stricter petitionExtensions (no images).
var (
	uploadExtensions   = map[string]bool{".pdf": true, ".docx": true, ".png": true, ".jpg": true, ".jpeg": true}
	petitionExtensions = map[string]bool{".pdf": true, ".docx": true}
)

// Server wires the HTTP surface to the domain services.
type Server struct {
	cfg        config.ServerConfig
	uploadCfg  config.UploadConfig
	pipeline   *ingest.Pipeline
	uploads    *jobs.UploadStore
	orch       *orchestrator.Orchestrator
	petitions  *petition.Service
	vectors    vector.Provider
	obs        *observability.Manager
	ocrReady   bool
	llmReady   bool
	logger     *slog.Logger
	httpServer *http.Server
}

// Options carries everything the server needs.
type Options struct {
	Config        config.ServerConfig
	Upload        config.UploadConfig
	Pipeline      *ingest.Pipeline
	Uploads       *jobs.UploadStore
	Orchestrator  *orchestrator.Orchestrator
	Petitions     *petition.Service
	Vectors       vector.Provider
	Observability *observability.Manager
	OCRAvailable  bool
	LLMConfigured bool
	Logger        *slog.Logger
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:       opts.Config,
		uploadCfg: opts.Upload,
		pipeline:  opts.Pipeline,
		uploads:   opts.Uploads,
		orch:      opts.Orchestrator,
		petitions: opts.Petitions,
		vectors:   opts.Vectors,
		obs:       opts.Observability,
		ocrReady:  opts.OCRAvailable,
		llmReady:  opts.LLMConfigured,
		logger:    logger,
	}
}

// Router builds the full route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/documents", func(r chi.Router) {
		r.Post("/start-upload", s.handleStartUpload)
		r.Get("/upload-status/{uploadID}", s.handleUploadStatus)
		r.Get("/upload-result/{uploadID}", s.handleUploadResult)
		r.Get("/uploads", s.handleListUploads)
		r.Delete("/{documentID}", s.handleDeleteDocument)
	})

	r.Route("/api/analysis", func(r chi.Router) {
		r.Post("/start", s.handleStartAnalysis)
		r.Get("/status/{analysisID}", s.handleAnalysisStatus)
		r.Get("/result/{analysisID}", s.handleAnalysisResult)
		r.Get("/experts", s.handleListExperts)
		r.Get("/attorneys", s.handleListAttorneys)
		// Deprecated synchronous endpoint, kept for old clients.
		r.Post("/multi-agent", s.handleMultiAgent)
	})

	r.Route("/api/petitions", func(r chi.Router) {
		r.Post("/start", s.handleStartPetition)
		r.Get("/status/{petitionID}", s.handlePetitionStatus)
		r.Post("/{petitionID}/analyze-documents", s.handleAnalyzeDocuments)
		r.Post("/{petitionID}/add-document", s.handleAddDocument)
		r.Post("/{petitionID}/analyze", s.handleAnalyzePetition)
	})

	var handler http.Handler = r
	handler = s.corsMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	if s.obs != nil {
		handler = observability.HTTPMiddleware(s.obs.Tracer("http"), s.obs.Metrics())(handler)
	}
	return handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("HTTP server starting", "address", s.httpServer.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	timeout := time.Duration(s.cfg.ShutdownTimeoutSeconds) * time.Second
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if len(s.cfg.CORSOrigins) == 0 {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				for _, allowed := range s.cfg.CORSOrigins {
					if allowed == "*" || allowed == origin {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						break
					}
				}
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// allowedExtension checks a filename against an allow-list.
func allowedExtension(name string, allowed map[string]bool) bool {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return false
	}
	return allowed[strings.ToLower(name[i:])]
}
