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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/kadirpekel/themis/pkg/agent"
	"github.com/kadirpekel/themis/pkg/jobs"
	"github.com/kadirpekel/themis/pkg/orchestrator"
)

type analysisRequest struct {
	Prompt      string   `json:"prompt"`
	Experts     []string `json:"experts_selected"`
	Attorneys   []string `json:"attorneys_selected"`
	DocumentIDs []string `json:"document_ids"`
}

func (s *Server) decodeAnalysisRequest(w http.ResponseWriter, r *http.Request) (*analysisRequest, bool) {
	var req analysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return nil, false
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if n := utf8.RuneCountInString(req.Prompt); n < minPromptLen || n > maxPromptLen {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("prompt must be between %d and %d characters", minPromptLen, maxPromptLen))
		return nil, false
	}
	return &req, true
}

func (s *Server) handleStartAnalysis(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAnalysisRequest(w, r)
	if !ok {
		return
	}

	id, err := s.orch.Start(r.Context(), orchestrator.Request{
		Prompt:      req.Prompt,
		Experts:     req.Experts,
		Attorneys:   req.Attorneys,
		DocumentIDs: req.DocumentIDs,
	})
	if err != nil {
		var ve *orchestrator.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Msg)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to admit analysis")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"analysis_id": id,
		"status":      string(jobs.StateInitiated),
		"message":     "analysis admitted; poll status for progress",
	})
}

func (s *Server) handleAnalysisStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.orch.Store().Get(chi.URLParam(r, "analysisID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown analysis id")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		AnalysisID string `json:"analysis_id"`
		jobStatus
	}{job.ID, jobStatus{
		Status:       job.State,
		CurrentStage: job.Stage,
		Progress:     job.Progress,
		UpdatedAt:    job.UpdatedAt,
		ErrorMessage: job.ErrorMessage,
	}})
}

func (s *Server) handleAnalysisResult(w http.ResponseWriter, r *http.Request) {
	job, err := s.orch.Store().Get(chi.URLParam(r, "analysisID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown analysis id")
		return
	}
	switch job.State {
	case jobs.StateError:
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error_message": job.ErrorMessage,
		})
	case jobs.StateCompleted:
		writeJSON(w, http.StatusOK, struct {
			AnalysisID string     `json:"analysis_id"`
			Status     jobs.State `json:"status"`
			*resultView
		}{job.ID, job.State, newResultView(job)})
	default:
		writeError(w, StatusTooEarly, "analysis is still processing")
	}
}

// resultView flattens the analysis payload into the documented result
// shape.
type resultView struct {
	CompiledAnswer     string          `json:"compiled_answer"`
	ExpertOpinions     []agent.Opinion `json:"expert_opinions"`
	AttorneyOpinions   []agent.Opinion `json:"attorney_opinions"`
	DocumentsConsulted []string  `json:"documents_consulted"`
	ExpertsUsed        []string  `json:"experts_used"`
	AttorneysUsed      []string  `json:"attorneys_used"`
	Confidence         float64   `json:"confidence"`
	DurationSeconds    float64   `json:"duration_seconds"`
	StartedAt          time.Time `json:"started_at"`
	EndedAt            time.Time `json:"ended_at"`
}

func newResultView(job *jobs.AnalysisJob) *resultView {
	res := job.Result
	return &resultView{
		CompiledAnswer:     res.CompiledAnswer,
		ExpertOpinions:     res.ExpertOpinions,
		AttorneyOpinions:   res.AttorneyOpinions,
		DocumentsConsulted: res.DocumentsConsulted,
		ExpertsUsed:        res.ExpertsUsed,
		AttorneysUsed:      res.AttorneysUsed,
		Confidence:         res.Confidence,
		DurationSeconds:    res.DurationSeconds,
		StartedAt:          res.StartedAt,
		EndedAt:            res.EndedAt,
	}
}

func (s *Server) handleListExperts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"experts": s.orch.Registry().Experts(),
	})
}

func (s *Server) handleListAttorneys(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"attorneys": s.orch.Registry().Attorneys(),
	})
}

// handleMultiAgent is the deprecated synchronous analysis endpoint: the
// whole run happens inside the request and the full result is returned
// in one response.
func (s *Server) handleMultiAgent(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAnalysisRequest(w, r)
	if !ok {
		return
	}

	result, err := s.orch.Analyze(r.Context(), orchestrator.Request{
		Prompt:      req.Prompt,
		Experts:     req.Experts,
		Attorneys:   req.Attorneys,
		DocumentIDs: req.DocumentIDs,
	})
	if err != nil {
		var ve *orchestrator.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Msg)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}
