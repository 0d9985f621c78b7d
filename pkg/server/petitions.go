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
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kadirpekel/themis/pkg/orchestrator"
	"github.com/kadirpekel/themis/pkg/petition"
)

// handleStartPetition accepts the initial petition file, registers the
// workflow and kicks off ingestion. The petition is queryable before
// ingestion completes.
func (s *Server) handleStartPetition(w http.ResponseWriter, r *http.Request) {
	header, path, ok := s.acceptUpload(w, r, petitionExtensions)
	if !ok {
		return
	}
	actionType := r.FormValue("action_type")

	petitionID := uuid.NewString()
	uploadID := uuid.NewString()
	documentID := uuid.NewString()
	if _, err := s.uploads.Create(uploadID, header.Filename, header.Size); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to register upload")
		return
	}
	if _, err := s.petitions.Store().Create(petitionID, uploadID, documentID, actionType); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to register petition")
		return
	}
	go s.pipeline.Run(context.Background(), uploadID, documentID, path, header.Filename)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"petition_id": petitionID,
		"upload_id":   uploadID,
		"status":      string(petition.StateAwaitingDocuments),
	})
}

func (s *Server) handlePetitionStatus(w http.ResponseWriter, r *http.Request) {
	p, err := s.petitions.Store().Get(chi.URLParam(r, "petitionID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown petition id")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleAnalyzeDocuments starts the document relevance step in the
// background. Repeated calls are harmless: cached suggestions are
// reused. A call made before the petition document finished ingesting
// is rejected with 425 so the client retries instead of the petition
// failing.
func (s *Server) handleAnalyzeDocuments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "petitionID")
	p, err := s.petitions.Store().Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown petition id")
		return
	}
	if len(p.DocumentsSuggested) == 0 {
		chunks, err := s.vectors.GetByDocument(r.Context(), p.DocumentID)
		if err != nil || len(chunks) == 0 {
			writeError(w, StatusTooEarly, "petition document is still being processed")
			return
		}
	}

	go s.petitions.RunAnalyzeDocuments(id)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"petition_id": id,
		"status":      string(p.State),
		"message":     "document analysis admitted; poll petition status",
	})
}

// handleAddDocument ingests one supporting document and attaches it to
// the petition.
func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "petitionID")
	if _, err := s.petitions.Store().Get(id); err != nil {
		writeError(w, http.StatusNotFound, "unknown petition id")
		return
	}

	header, path, ok := s.acceptUpload(w, r, uploadExtensions)
	if !ok {
		return
	}

	uploadID := uuid.NewString()
	documentID := uuid.NewString()
	if _, err := s.uploads.Create(uploadID, header.Filename, header.Size); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to register upload")
		return
	}
	p, err := s.petitions.Store().AddDocument(id, documentID)
	if err != nil {
		// The document was never admitted; drop the job and the
		// temp file so nothing lingers in INITIATED.
		_ = s.uploads.Delete(uploadID)
		_ = os.Remove(path)
		var te *petition.TransitionError
		switch {
		case errors.As(err, &te), errors.Is(err, petition.ErrTerminal):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to attach document")
		}
		return
	}
	go s.pipeline.Run(context.Background(), uploadID, documentID, path, header.Filename)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"petition_id": id,
		"upload_id":   uploadID,
		"document_id": documentID,
		"status":      string(p.State),
	})
}

type petitionAnalysisRequest struct {
	Experts   []string `json:"experts_selected"`
	Attorneys []string `json:"attorneys_selected"`
}

// handleAnalyzePetition starts the final analysis chain: multi-agent
// run, prognosis, petition draft.
func (s *Server) handleAnalyzePetition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "petitionID")

	var req petitionAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	if err := s.petitions.StartAnalysis(id, req.Experts, req.Attorneys); err != nil {
		var ve *orchestrator.ValidationError
		var te *petition.TransitionError
		switch {
		case errors.Is(err, petition.ErrNotFound):
			writeError(w, http.StatusNotFound, "unknown petition id")
		case errors.As(err, &ve):
			writeError(w, http.StatusBadRequest, ve.Msg)
		case errors.As(err, &te), errors.Is(err, petition.ErrTerminal):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to start analysis")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"petition_id": id,
		"status":      string(petition.StateAnalysisInProgress),
		"message":     "analysis admitted; poll petition status",
	})
}
