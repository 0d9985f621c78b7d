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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LLM_API_KEY", "test-key")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o", cfg.LLM.AnalysisModel)
	assert.InDelta(t, 0.3, cfg.LLM.AnalysisTemperature, 1e-9)
	assert.InDelta(t, 0.2, cfg.LLM.ExpertTemperature, 1e-9)
	assert.Equal(t, "text-embedding-ada-002", cfg.Embedding.Model)
	assert.Equal(t, 100, cfg.Embedding.BatchSize)
	assert.Equal(t, 500, cfg.Chunking.MaxTokens)
	assert.Equal(t, 50, cfg.Chunking.OverlapTokens)
	assert.Equal(t, 50, cfg.Upload.MaxMB)
	assert.Equal(t, int64(50*1024*1024), cfg.Upload.MaxBytes())
	assert.Equal(t, "chromem", cfg.VectorStore.Type)
	assert.Equal(t, "por", cfg.OCR.Language)
	assert.Equal(t, 300, cfg.OCR.DPI)
	assert.InDelta(t, 50, cfg.OCR.LowConfThreshold, 1e-9)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LLM_API_KEY", "test-key")
	t.Setenv("LLM_ANALYSIS_MODEL", "gpt-4.1")
	t.Setenv("LLM_ANALYSIS_TEMPERATURE", "0.5")
	t.Setenv("CHUNK_MAX_TOKENS", "800")
	t.Setenv("CHUNK_OVERLAP_TOKENS", "80")
	t.Setenv("UPLOAD_MAX_MB", "25")
	t.Setenv("OCR_LANGUAGE", "eng")
	t.Setenv("OCR_DPI", "150")
	t.Setenv("CORS_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "gpt-4.1", cfg.LLM.AnalysisModel)
	assert.InDelta(t, 0.5, cfg.LLM.AnalysisTemperature, 1e-9)
	assert.Equal(t, 800, cfg.Chunking.MaxTokens)
	assert.Equal(t, 80, cfg.Chunking.OverlapTokens)
	assert.Equal(t, 25, cfg.Upload.MaxMB)
	assert.Equal(t, "eng", cfg.OCR.Language)
	assert.Equal(t, 150, cfg.OCR.DPI)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadYAMLFileWithEnvExpansion(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("TEST_THEMIS_KEY", "yaml-key")

	dir := t.TempDir()
	path := filepath.Join(dir, "themis.yaml")
	content := `
llm:
  api_key: "${TEST_THEMIS_KEY}"
  provider: openai
  analysis_model: gpt-4o-mini
chunking:
  max_tokens: 600
server:
  port: 9090
  cors_origins:
    - http://localhost:3000
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "yaml-key", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.AnalysisModel)
	assert.Equal(t, 600, cfg.Chunking.MaxTokens)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
	// Unset sections still default.
	assert.Equal(t, 50, cfg.Chunking.OverlapTokens)
}

func TestEnvWinsOverFile(t *testing.T) {
	t.Setenv("LLM_API_KEY", "env-key")
	t.Setenv("CHUNK_MAX_TOKENS", "700")

	dir := t.TempDir()
	path := filepath.Join(dir, "themis.yaml")
	content := `
llm:
  api_key: file-key
chunking:
  max_tokens: 300
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.LLM.APIKey)
	assert.Equal(t, 700, cfg.Chunking.MaxTokens)
}

func TestChunkingValidation(t *testing.T) {
	c := ChunkingConfig{MaxTokens: 100, OverlapTokens: 100}
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlap_tokens")

	c = ChunkingConfig{MaxTokens: 100, OverlapTokens: 99}
	assert.NoError(t, c.Validate())
}

func TestVectorStoreValidation(t *testing.T) {
	c := VectorStoreConfig{}
	c.SetDefaults()
	assert.NoError(t, c.Validate())

	c.Type = "weaviate"
	assert.Error(t, c.Validate())

	c.Type = "pinecone"
	c.APIKey = ""
	assert.Error(t, c.Validate())

	c.APIKey = "pc-key"
	assert.NoError(t, c.Validate())
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("THEMIS_TEST_VALUE", "hello")

	assert.Equal(t, "hello", expandEnvVars("${THEMIS_TEST_VALUE}"))
	assert.Equal(t, "fallback", expandEnvVars("${THEMIS_TEST_UNSET:-fallback}"))
	assert.Equal(t, "plain", expandEnvVars("plain"))
}
