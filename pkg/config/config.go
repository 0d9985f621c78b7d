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

// Package config defines the service configuration.
//
// Configuration is resolved in three layers, later layers winning:
// struct defaults, an optional YAML file, and environment variables.
// A .env file, when present, is loaded into the environment before
// resolution. LLM_API_KEY is required; startup aborts without it.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the themis service.
type Config struct {
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Embedding     EmbeddingConfig     `yaml:"embedding" mapstructure:"embedding"`
	Chunking      ChunkingConfig      `yaml:"chunking" mapstructure:"chunking"`
	Upload        UploadConfig        `yaml:"upload" mapstructure:"upload"`
	VectorStore   VectorStoreConfig   `yaml:"vector_store" mapstructure:"vector_store"`
	OCR           OCRConfig           `yaml:"ocr" mapstructure:"ocr"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Logging       LoggingConfig       `yaml:"logging" mapstructure:"logging"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
}

// LLMConfig configures the LLM provider behind the gateway.
type LLMConfig struct {
	// Provider selects the chat backend: openai, anthropic, or gemini.
	Provider string `yaml:"provider" mapstructure:"provider"`
	// APIKey authenticates against the provider. Required.
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// AnalysisModel is used by the coordinator, attorneys, and the
	// petition steps.
	AnalysisModel string `yaml:"analysis_model" mapstructure:"analysis_model"`
	// AnalysisTemperature applies to the coordinator and attorneys.
	AnalysisTemperature float64 `yaml:"analysis_temperature" mapstructure:"analysis_temperature"`
	// ExpertTemperature applies to the technical experts.
	ExpertTemperature float64 `yaml:"expert_temperature" mapstructure:"expert_temperature"`
	// TimeoutSeconds bounds a single LLM call.
	TimeoutSeconds int `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	// MaxTokens caps the completion length, 0 means provider default.
	MaxTokens int `yaml:"max_tokens" mapstructure:"max_tokens"`
}

func (c *LLMConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.AnalysisModel == "" {
		c.AnalysisModel = "gpt-4o"
	}
	if c.AnalysisTemperature == 0 {
		c.AnalysisTemperature = 0.3
	}
	if c.ExpertTemperature == 0 {
		c.ExpertTemperature = 0.2
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 60
	}
}

func (c *LLMConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("llm: api_key is required (set LLM_API_KEY)")
	}
	switch c.Provider {
	case "openai", "anthropic", "gemini":
	default:
		return fmt.Errorf("llm: unknown provider %q", c.Provider)
	}
	if c.AnalysisTemperature < 0 || c.AnalysisTemperature > 2 {
		return fmt.Errorf("llm: analysis_temperature must be in [0, 2], got %v", c.AnalysisTemperature)
	}
	if c.ExpertTemperature < 0 || c.ExpertTemperature > 2 {
		return fmt.Errorf("llm: expert_temperature must be in [0, 2], got %v", c.ExpertTemperature)
	}
	return nil
}

// EmbeddingConfig configures the embedding client and its disk cache.
type EmbeddingConfig struct {
	Model     string `yaml:"model" mapstructure:"model"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Dimension int    `yaml:"dimension" mapstructure:"dimension"`
	BatchSize int    `yaml:"batch_size" mapstructure:"batch_size"`
	// CachePath is the directory holding one JSON file per content hash.
	CachePath string `yaml:"cache_path" mapstructure:"cache_path"`
}

func (c *EmbeddingConfig) SetDefaults() {
	if c.Model == "" {
		c.Model = "text-embedding-ada-002"
	}
	if c.Dimension == 0 {
		c.Dimension = 1536
	}
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}
	if c.CachePath == "" {
		c.CachePath = "data/cache_embeddings"
	}
}

func (c *EmbeddingConfig) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("embedding: batch_size must be positive, got %d", c.BatchSize)
	}
	if c.Dimension < 1 {
		return fmt.Errorf("embedding: dimension must be positive, got %d", c.Dimension)
	}
	return nil
}

// ChunkingConfig configures the token-aware splitter.
type ChunkingConfig struct {
	MaxTokens     int `yaml:"max_tokens" mapstructure:"max_tokens"`
	OverlapTokens int `yaml:"overlap_tokens" mapstructure:"overlap_tokens"`
}

func (c *ChunkingConfig) SetDefaults() {
	if c.MaxTokens == 0 {
		c.MaxTokens = 500
	}
	if c.OverlapTokens == 0 {
		c.OverlapTokens = 50
	}
}

func (c *ChunkingConfig) Validate() error {
	if c.MaxTokens < 1 {
		return fmt.Errorf("chunking: max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.OverlapTokens < 0 {
		return fmt.Errorf("chunking: overlap_tokens must not be negative, got %d", c.OverlapTokens)
	}
	if c.OverlapTokens >= c.MaxTokens {
		return fmt.Errorf("chunking: overlap_tokens (%d) must be smaller than max_tokens (%d)",
			c.OverlapTokens, c.MaxTokens)
	}
	return nil
}

// UploadConfig configures file upload handling.
type UploadConfig struct {
	MaxMB    int    `yaml:"max_mb" mapstructure:"max_mb"`
	TempPath string `yaml:"temp_path" mapstructure:"temp_path"`
}

func (c *UploadConfig) SetDefaults() {
	if c.MaxMB == 0 {
		c.MaxMB = 50
	}
	if c.TempPath == "" {
		c.TempPath = "data/uploads"
	}
}

func (c *UploadConfig) Validate() error {
	if c.MaxMB < 1 {
		return fmt.Errorf("upload: max_mb must be positive, got %d", c.MaxMB)
	}
	return nil
}

// MaxBytes returns the upload limit in bytes.
func (c *UploadConfig) MaxBytes() int64 {
	return int64(c.MaxMB) * 1024 * 1024
}

// VectorStoreConfig selects and configures the vector store backend.
type VectorStoreConfig struct {
	// Type selects the backend: chromem (embedded, default), qdrant,
	// or pinecone.
	Type string `yaml:"type" mapstructure:"type"`
	// Path is the persistence directory for the embedded backend.
	Path       string `yaml:"path" mapstructure:"path"`
	Collection string `yaml:"collection" mapstructure:"collection"`

	// Qdrant backend.
	Host   string `yaml:"host" mapstructure:"host"`
	Port   int    `yaml:"port" mapstructure:"port"`
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	UseTLS bool   `yaml:"use_tls" mapstructure:"use_tls"`

	// Pinecone backend.
	IndexHost string `yaml:"index_host" mapstructure:"index_host"`
}

func (c *VectorStoreConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "chromem"
	}
	if c.Path == "" {
		c.Path = "data/vector_store"
	}
	if c.Collection == "" {
		c.Collection = "documents"
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
}

func (c *VectorStoreConfig) Validate() error {
	switch c.Type {
	case "chromem", "qdrant", "pinecone":
	default:
		return fmt.Errorf("vector_store: unknown type %q", c.Type)
	}
	if c.Type == "pinecone" && c.APIKey == "" {
		return fmt.Errorf("vector_store: pinecone requires api_key")
	}
	return nil
}

// OCRConfig configures the OCR fallback for scanned PDFs.
type OCRConfig struct {
	Language string `yaml:"language" mapstructure:"language"`
	DPI      int    `yaml:"dpi" mapstructure:"dpi"`
	// LowConfThreshold marks pages whose mean word confidence falls
	// below it.
	LowConfThreshold float64 `yaml:"low_conf_threshold" mapstructure:"low_conf_threshold"`
	// PageLimit bounds how many pages are processed, 0 means all.
	PageLimit int `yaml:"page_limit" mapstructure:"page_limit"`
	// MaxConcurrentPages bounds page-level parallelism.
	MaxConcurrentPages int `yaml:"max_concurrent_pages" mapstructure:"max_concurrent_pages"`
	// Preprocess enables image cleanup before recognition.
	Preprocess *bool `yaml:"preprocess" mapstructure:"preprocess"`
	// TesseractBin and PdftoppmBin locate the external binaries.
	TesseractBin string `yaml:"tesseract_bin" mapstructure:"tesseract_bin"`
	PdftoppmBin  string `yaml:"pdftoppm_bin" mapstructure:"pdftoppm_bin"`
}

func (c *OCRConfig) SetDefaults() {
	if c.Language == "" {
		c.Language = "por"
	}
	if c.DPI == 0 {
		c.DPI = 300
	}
	if c.LowConfThreshold == 0 {
		c.LowConfThreshold = 50
	}
	if c.MaxConcurrentPages == 0 {
		c.MaxConcurrentPages = 4
	}
	if c.Preprocess == nil {
		enabled := true
		c.Preprocess = &enabled
	}
	if c.TesseractBin == "" {
		c.TesseractBin = "tesseract"
	}
	if c.PdftoppmBin == "" {
		c.PdftoppmBin = "pdftoppm"
	}
}

func (c *OCRConfig) Validate() error {
	if c.DPI < 72 {
		return fmt.Errorf("ocr: dpi must be at least 72, got %d", c.DPI)
	}
	if c.LowConfThreshold < 0 || c.LowConfThreshold > 100 {
		return fmt.Errorf("ocr: low_conf_threshold must be in [0, 100], got %v", c.LowConfThreshold)
	}
	if c.MaxConcurrentPages < 1 {
		return fmt.Errorf("ocr: max_concurrent_pages must be positive, got %d", c.MaxConcurrentPages)
	}
	return nil
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
	// CORSOrigins lists allowed origins; empty allows any.
	CORSOrigins            []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	ShutdownTimeoutSeconds int      `yaml:"shutdown_timeout_seconds" mapstructure:"shutdown_timeout_seconds"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ShutdownTimeoutSeconds == 0 {
		c.ShutdownTimeoutSeconds = 10
	}
}

func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("server: port must be in [1, 65535], got %d", c.Port)
	}
	return nil
}

// Address returns the host:port listen address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
}

func (c *LoggingConfig) Validate() error {
	switch strings.ToLower(c.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging: unknown level %q", c.Level)
	}
	return nil
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" mapstructure:"enabled"`
	ExporterType string  `yaml:"exporter_type" mapstructure:"exporter_type"`
	EndpointURL  string  `yaml:"endpoint_url" mapstructure:"endpoint_url"`
	SamplingRate float64 `yaml:"sampling_rate" mapstructure:"sampling_rate"`
	ServiceName  string  `yaml:"service_name" mapstructure:"service_name"`
}

// ObservabilityConfig groups metrics and tracing.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
}

func (c *ObservabilityConfig) SetDefaults() {
	if c.Tracing.ExporterType == "" {
		c.Tracing.ExporterType = "stdout"
	}
	if c.Tracing.SamplingRate == 0 {
		c.Tracing.SamplingRate = 1.0
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "themis"
	}
}

func (c *ObservabilityConfig) Validate() error {
	switch c.Tracing.ExporterType {
	case "stdout", "otlp":
	default:
		return fmt.Errorf("observability: unknown tracing exporter %q", c.Tracing.ExporterType)
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return fmt.Errorf("observability: sampling_rate must be in [0, 1], got %v", c.Tracing.SamplingRate)
	}
	return nil
}

// SetDefaults fills every unset field with its default.
func (c *Config) SetDefaults() {
	c.LLM.SetDefaults()
	c.Embedding.SetDefaults()
	c.Chunking.SetDefaults()
	c.Upload.SetDefaults()
	c.VectorStore.SetDefaults()
	c.OCR.SetDefaults()
	c.Server.SetDefaults()
	c.Logging.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.Embedding.Validate(); err != nil {
		return err
	}
	if err := c.Chunking.Validate(); err != nil {
		return err
	}
	if err := c.Upload.Validate(); err != nil {
		return err
	}
	if err := c.VectorStore.Validate(); err != nil {
		return err
	}
	if err := c.OCR.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	return c.Observability.Validate()
}

// Load resolves configuration from an optional YAML file and the
// environment. A missing path loads from defaults and environment only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := cfg.loadYAML(data); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML decodes YAML into the config, expanding ${VAR} references in
// string values against the environment first.
func (c *Config) loadYAML(data []byte) error {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	expandEnvInMap(raw)

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           c,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create config decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return nil
}
