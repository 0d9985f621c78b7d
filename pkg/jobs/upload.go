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

package jobs

import (
	"sort"
	"sync"
	"time"
)

// UploadResult is the payload of a completed ingestion.
type UploadResult struct {
	DocumentID   string `json:"document_id"`
	FileName     string `json:"name"`
	DocumentType string `json:"type"`
	Method       string `json:"method"`
	PageCount    int    `json:"page_count"`
	ChunkCount   int    `json:"chunk_count"`
	TextLength   int    `json:"text_length"`

	// OCR fields, present only when recognition ran.
	OCRAvgConfidence   *float64 `json:"ocr_avg_confidence,omitempty"`
	LowConfidencePages []int    `json:"low_confidence_pages,omitempty"`
}

// UploadJob tracks one document ingestion.
type UploadJob struct {
	ID        string    `json:"upload_id"`
	FileName  string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`
	State     State     `json:"status"`
	Stage     string    `json:"current_stage"`
	Progress  int       `json:"progress_percent"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Result       *UploadResult `json:"result,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	ErrorTag     string        `json:"error_tag,omitempty"`
	ErrorDetails string        `json:"error_details,omitempty"`
}

// UploadStore is the process-wide upload job table.
type UploadStore struct {
	mu   sync.Mutex
	jobs map[string]*UploadJob
}

// NewUploadStore creates an empty table.
func NewUploadStore() *UploadStore {
	return &UploadStore{jobs: make(map[string]*UploadJob)}
}

// Create admits a job in INITIATED. Duplicate ids are rejected.
func (s *UploadStore) Create(id, fileName string, sizeBytes int64) (*UploadJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; ok {
		return nil, ErrDuplicateID
	}
	t := now()
	job := &UploadJob{
		ID:        id,
		FileName:  fileName,
		SizeBytes: sizeBytes,
		State:     StateInitiated,
		Stage:     "Queued",
		CreatedAt: t,
		UpdatedAt: t,
	}
	s.jobs[id] = job
	cp := *job
	return &cp, nil
}

// MarkSaving moves a freshly admitted job to SAVING while the file is
// written to disk. A no-op once past INITIATED.
func (s *UploadStore) MarkSaving(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.State.Terminal() {
		return ErrTerminal
	}
	if job.State == StateInitiated {
		job.State = StateSaving
		job.Stage = "Saving file"
		job.UpdatedAt = now()
	}
	return nil
}

// UpdateStage sets the stage label and progress. Progress regression
// is absorbed (the stored value never decreases), and a nonzero
// percent upgrades INITIATED/SAVING to PROCESSING.
func (s *UploadStore) UpdateStage(id, stage string, percent int) error {
	if err := validPercent(percent); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.State.Terminal() {
		return ErrTerminal
	}

	job.Stage = stage
	if percent > job.Progress {
		job.Progress = percent
	}
	if job.Progress > 0 && (job.State == StateInitiated || job.State == StateSaving) {
		job.State = StateProcessing
	}
	job.UpdatedAt = now()
	return nil
}

// RecordResult completes the job.
func (s *UploadStore) RecordResult(id string, result *UploadResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.State.Terminal() {
		return ErrTerminal
	}

	job.State = StateCompleted
	job.Stage = "Completed"
	job.Progress = 100
	job.Result = result
	job.UpdatedAt = now()
	return nil
}

// RecordError fails the job. tag is the machine-readable error class.
func (s *UploadStore) RecordError(id, message, tag, details string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.State.Terminal() {
		return ErrTerminal
	}

	job.State = StateError
	job.ErrorMessage = message
	job.ErrorTag = tag
	job.ErrorDetails = details
	job.UpdatedAt = now()
	return nil
}

// Get returns a copy of the job.
func (s *UploadStore) Get(id string) (*UploadJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *job
	return &cp, nil
}

// List returns copies of all jobs, newest first.
func (s *UploadStore) List() []*UploadJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*UploadJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		cp := *job
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Delete removes a job regardless of state.
func (s *UploadStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return ErrNotFound
	}
	delete(s.jobs, id)
	return nil
}

// Stats counts jobs per state.
func (s *UploadStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{Total: len(s.jobs), ByState: make(map[State]int)}
	for _, job := range s.jobs {
		stats.ByState[job.State]++
	}
	return stats
}
