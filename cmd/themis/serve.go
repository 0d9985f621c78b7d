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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kadirpekel/themis/pkg/agent"
	"github.com/kadirpekel/themis/pkg/config"
	"github.com/kadirpekel/themis/pkg/config/provider"
	"github.com/kadirpekel/themis/pkg/embedder"
	"github.com/kadirpekel/themis/pkg/extract"
	"github.com/kadirpekel/themis/pkg/ingest"
	"github.com/kadirpekel/themis/pkg/jobs"
	"github.com/kadirpekel/themis/pkg/llm"
	"github.com/kadirpekel/themis/pkg/logger"
	"github.com/kadirpekel/themis/pkg/observability"
	"github.com/kadirpekel/themis/pkg/ocr"
	"github.com/kadirpekel/themis/pkg/orchestrator"
	"github.com/kadirpekel/themis/pkg/petition"
	"github.com/kadirpekel/themis/pkg/rag"
	"github.com/kadirpekel/themis/pkg/server"
	"github.com/kadirpekel/themis/pkg/utils"
	"github.com/kadirpekel/themis/pkg/vector"
)

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Host string `help:"Listen host override." env:"HOST"`
	Port int    `help:"Listen port override." env:"PORT"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		cfg.Logging.Format = cli.LogFormat
	}

	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logger.Init(level, os.Stderr, cfg.Logging.Format)
	log := logger.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs := observability.NewManager(observability.Config{
		Tracing: observability.TracingConfig{
			Enabled:      cfg.Observability.Tracing.Enabled,
			Exporter:     cfg.Observability.Tracing.ExporterType,
			Endpoint:     cfg.Observability.Tracing.EndpointURL,
			SamplingRate: cfg.Observability.Tracing.SamplingRate,
			ServiceName:  cfg.Observability.Tracing.ServiceName,
		},
		Metrics: observability.MetricsConfig{
			Enabled: cfg.Observability.Metrics.Enabled,
		},
	})
	if err := obs.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			log.Warn("Observability shutdown failed", "error", err)
		}
	}()

	chatProvider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}
	gateway := llm.NewGateway(chatProvider, time.Duration(cfg.LLM.TimeoutSeconds)*time.Second)

	openAIEmbedder, err := embedder.NewOpenAIEmbedder(cfg.LLM.APIKey, cfg.Embedding)
	if err != nil {
		return err
	}
	cachedEmbedder, err := embedder.NewCachedEmbedder(openAIEmbedder, cfg.Embedding.CachePath, log)
	if err != nil {
		return err
	}

	vectors, err := vector.NewProvider(ctx, cfg.VectorStore, cfg.Embedding.Dimension)
	if err != nil {
		return err
	}
	defer func() {
		if err := vectors.Close(); err != nil {
			log.Warn("Vector store close failed", "error", err)
		}
	}()
	log.Info("Vector store ready", "provider", vectors.Name())

	counter, err := utils.NewTokenCounter(cfg.Embedding.Model)
	if err != nil {
		return err
	}
	chunker, err := rag.NewRecursiveChunker(rag.ChunkerConfig{
		MaxTokens:     cfg.Chunking.MaxTokens,
		OverlapTokens: cfg.Chunking.OverlapTokens,
	}, counter)
	if err != nil {
		return err
	}

	recognizer := ocr.NewProcessor(
		ocr.NewTesseractEngine(cfg.OCR.TesseractBin),
		ocr.NewPdftoppmRenderer(cfg.OCR.PdftoppmBin),
		ocr.Options{
			Language:           cfg.OCR.Language,
			DPI:                cfg.OCR.DPI,
			LowConfThreshold:   cfg.OCR.LowConfThreshold,
			PageLimit:          cfg.OCR.PageLimit,
			MaxConcurrentPages: cfg.OCR.MaxConcurrentPages,
			Preprocess:         cfg.OCR.Preprocess != nil && *cfg.OCR.Preprocess,
		},
		log,
	)
	if !recognizer.Available() {
		log.Warn("OCR binaries not found, scanned documents will be rejected",
			"tesseract", cfg.OCR.TesseractBin, "pdftoppm", cfg.OCR.PdftoppmBin)
	}

	uploads := jobs.NewUploadStore()
	pipeline := ingest.New(extract.NewService(), recognizer, chunker, cachedEmbedder, vectors, uploads, log)

	registry := agent.NewRegistry(gateway, cfg.LLM.AnalysisModel, cfg.LLM.ExpertTemperature, cfg.LLM.AnalysisTemperature)
	coordinator := agent.NewCoordinator(gateway, registry, cachedEmbedder, vectors, cfg.LLM.AnalysisModel, cfg.LLM.AnalysisTemperature, log)
	orch := orchestrator.New(coordinator, jobs.NewAnalysisStore(), log)
	petitions := petition.NewService(petition.NewStore(), coordinator, orch, gateway, vectors, cfg.LLM.AnalysisModel, cfg.LLM.AnalysisTemperature, log)

	srv := server.New(server.Options{
		Config:        cfg.Server,
		Upload:        cfg.Upload,
		Pipeline:      pipeline,
		Uploads:       uploads,
		Orchestrator:  orch,
		Petitions:     petitions,
		Vectors:       vectors,
		Observability: obs,
		OCRAvailable:  recognizer.Available(),
		LLMConfigured: cfg.LLM.APIKey != "",
		Logger:        log,
	})

	if cli.Config != "" {
		go watchConfig(ctx, cli.Config, log)
	}

	return srv.Start(ctx)
}

// watchConfig reapplies the logging level when the config file changes.
// Everything else requires a restart.
func watchConfig(ctx context.Context, path string, log *slog.Logger) {
	watcher, err := provider.NewWatcher(path, log)
	if err != nil {
		log.Warn("Config watch disabled", "error", err)
		return
	}
	defer func() { _ = watcher.Close() }()

	changes, err := watcher.Start(ctx)
	if err != nil {
		log.Warn("Config watch disabled", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			cfg, err := config.Load(path)
			if err != nil {
				log.Warn("Ignoring config change", "error", err)
				continue
			}
			level, err := logger.ParseLevel(cfg.Logging.Level)
			if err != nil {
				log.Warn("Ignoring config change", "error", err)
				continue
			}
			logger.SetLevel(level)
			log.Info("Log level updated", "level", cfg.Logging.Level)
		}
	}
}
