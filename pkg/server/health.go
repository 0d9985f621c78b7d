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

package server

import (
	"net/http"
	"time"

	themis "github.com/kadirpekel/themis"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	vectorStatus := "ok"
	chunkCount := 0
	if n, err := s.vectors.Count(r.Context()); err != nil {
		vectorStatus = "unreachable"
	} else {
		chunkCount = n
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"version":   themis.Version,
		"services": map[string]any{
			"vector_store":   vectorStatus,
			"vector_chunks":  chunkCount,
			"llm_configured": s.llmReady,
			"ocr_available":  s.ocrReady,
		},
		"upload_stats":   s.uploads.Stats(),
		"analysis_stats": s.orch.Store().Stats(),
	})
}
