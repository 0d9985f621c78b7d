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
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kadirpekel/themis/pkg/jobs"
)

// jobStatus is the polling view shared by uploads and analyses.
type jobStatus struct {
	Status       jobs.State `json:"status"`
	CurrentStage string     `json:"current_stage"`
	Progress     int        `json:"progress_percent"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

func (s *Server) handleStartUpload(w http.ResponseWriter, r *http.Request) {
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
	go s.pipeline.Run(context.Background(), uploadID, documentID, path, header.Filename)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"upload_id": uploadID,
		"status":    string(jobs.StateInitiated),
	})
}

// acceptUpload validates and persists the multipart file. On failure it
// has already written the error response.
func (s *Server) acceptUpload(w http.ResponseWriter, r *http.Request, allowed map[string]bool) (*multipart.FileHeader, string, bool) {
	maxBytes := int64(s.uploadCfg.MaxMB) << 20
	if r.ContentLength > maxBytes+1<<20 {
		// Fast reject before reading the body; the slack covers
		// multipart framing overhead.
		writeError(w, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
		return nil, "", false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
		} else {
			writeError(w, http.StatusBadRequest, "malformed multipart request")
		}
		return nil, "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return nil, "", false
	}
	defer func() { _ = file.Close() }()

	if header.Size > maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
		return nil, "", false
	}
	if !allowedExtension(header.Filename, allowed) {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported file type")
		return nil, "", false
	}

	if err := os.MkdirAll(s.uploadCfg.TempPath, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to prepare upload directory")
		return nil, "", false
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	path := filepath.Join(s.uploadCfg.TempPath, uuid.NewString()+ext)
	dst, err := os.Create(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return nil, "", false
	}
	defer func() { _ = dst.Close() }()
	if _, err := io.Copy(dst, file); err != nil {
		_ = os.Remove(path)
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return nil, "", false
	}
	return header, path, true
}

func (s *Server) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.uploads.Get(chi.URLParam(r, "uploadID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown upload id")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		UploadID string `json:"upload_id"`
		jobStatus
	}{job.ID, jobStatus{
		Status:       job.State,
		CurrentStage: job.Stage,
		Progress:     job.Progress,
		UpdatedAt:    job.UpdatedAt,
		ErrorMessage: job.ErrorMessage,
	}})
}

func (s *Server) handleUploadResult(w http.ResponseWriter, r *http.Request) {
	job, err := s.uploads.Get(chi.URLParam(r, "uploadID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown upload id")
		return
	}
	switch job.State {
	case jobs.StateError:
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error_message": job.ErrorMessage,
		})
	case jobs.StateCompleted:
		writeJSON(w, http.StatusOK, struct {
			*jobs.UploadResult
			Size      int64     `json:"size"`
			CreatedAt time.Time `json:"created_at"`
		}{job.Result, job.SizeBytes, job.CreatedAt})
	default:
		writeError(w, StatusTooEarly, "upload is still processing")
	}
}

func (s *Server) handleListUploads(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"uploads": s.uploads.List(),
		"stats":   s.uploads.Stats(),
	})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")
	chunks, err := s.vectors.GetByDocument(r.Context(), documentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to inspect document")
		return
	}
	if len(chunks) == 0 {
		writeError(w, http.StatusNotFound, "unknown document id")
		return
	}
	if err := s.vectors.DeleteDocument(r.Context(), documentID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
