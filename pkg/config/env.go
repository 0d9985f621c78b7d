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
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var (
	envWithDefault = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*):-([^}]*)\}`)
	envBraced      = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`)
)

// expandEnvVars replaces ${VAR} and ${VAR:-default} references in s with
// environment values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}

	s = envWithDefault.ReplaceAllStringFunc(s, func(match string) string {
		parts := envWithDefault.FindStringSubmatch(match)
		if len(parts) == 3 {
			if val := os.Getenv(parts[1]); val != "" {
				return val
			}
			return parts[2]
		}
		return match
	})

	s = envBraced.ReplaceAllStringFunc(s, func(match string) string {
		parts := envBraced.FindStringSubmatch(match)
		if len(parts) == 2 {
			return os.Getenv(parts[1])
		}
		return match
	})

	return s
}

// expandEnvInMap walks a decoded YAML tree and expands env references in
// every string value.
func expandEnvInMap(m map[string]interface{}) {
	for k, v := range m {
		switch val := v.(type) {
		case string:
			m[k] = expandEnvVars(val)
		case map[string]interface{}:
			expandEnvInMap(val)
		case []interface{}:
			for i, item := range val {
				if s, ok := item.(string); ok {
					val[i] = expandEnvVars(s)
				} else if sub, ok := item.(map[string]interface{}); ok {
					expandEnvInMap(sub)
				}
			}
		}
	}
}

// LoadEnvFiles reads .env.local and .env into the environment. Missing
// files are fine; values already set in the environment are kept.
func LoadEnvFiles() error {
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

// applyEnv overrides config fields from the recognized environment
// variables. Environment wins over the config file.
func applyEnv(c *Config) {
	setString(&c.LLM.APIKey, "LLM_API_KEY")
	setString(&c.LLM.Provider, "LLM_PROVIDER")
	setString(&c.LLM.BaseURL, "LLM_BASE_URL")
	setString(&c.LLM.AnalysisModel, "LLM_ANALYSIS_MODEL")
	setFloat(&c.LLM.AnalysisTemperature, "LLM_ANALYSIS_TEMPERATURE")

	setString(&c.Embedding.Model, "LLM_EMBEDDING_MODEL")
	setString(&c.Embedding.CachePath, "EMBEDDING_CACHE_PATH")

	setInt(&c.Chunking.MaxTokens, "CHUNK_MAX_TOKENS")
	setInt(&c.Chunking.OverlapTokens, "CHUNK_OVERLAP_TOKENS")

	setInt(&c.Upload.MaxMB, "UPLOAD_MAX_MB")
	setString(&c.Upload.TempPath, "UPLOAD_TEMP_PATH")

	setString(&c.VectorStore.Type, "VECTOR_STORE_TYPE")
	setString(&c.VectorStore.Path, "VECTOR_STORE_PATH")

	setString(&c.OCR.Language, "OCR_LANGUAGE")
	setInt(&c.OCR.DPI, "OCR_DPI")
	setFloat(&c.OCR.LowConfThreshold, "OCR_LOW_CONF_THRESHOLD")

	setString(&c.Server.Host, "HOST")
	setInt(&c.Server.Port, "PORT")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		c.Server.CORSOrigins = origins
	}

	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("Ignoring non-integer environment value", "key", key, "value", v)
		return
	}
	*dst = n
}

func setFloat(dst *float64, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("Ignoring non-numeric environment value", "key", key, "value", v)
		return
	}
	*dst = f
}
