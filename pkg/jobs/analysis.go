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

	"github.com/kadirpekel/themis/pkg/agent"
)

// AnalysisJob tracks one multi-agent analysis run.
type AnalysisJob struct {
	ID          string   `json:"analysis_id"`
	Prompt      string   `json:"prompt"`
	Experts     []string `json:"experts_selected"`
	Attorneys   []string `json:"attorneys_selected"`
	DocumentIDs []string `json:"document_ids,omitempty"`

	State     State     `json:"status"`
	Stage     string    `json:"current_stage"`
	Progress  int       `json:"progress_percent"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Result       *agent.AnalysisResult `json:"result,omitempty"`
	ErrorMessage string                `json:"error_message,omitempty"`
	ErrorTag     string                `json:"error_tag,omitempty"`
	ErrorDetails string                `json:"error_details,omitempty"`
}

// AnalysisStore is the process-wide analysis job table. Same rules as
// UploadStore, plus: a COMPLETED result payload is immutable.
type AnalysisStore struct {
	mu   sync.Mutex
	jobs map[string]*AnalysisJob
}

// NewAnalysisStore creates an empty table.
func NewAnalysisStore() *AnalysisStore {
	return &AnalysisStore{jobs: make(map[string]*AnalysisJob)}
}

// Create admits a job in INITIATED. Duplicate ids are rejected.
func (s *AnalysisStore) Create(id, prompt string, experts, attorneys, documentIDs []string) (*AnalysisJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; ok {
		return nil, ErrDuplicateID
	}
	t := now()
	job := &AnalysisJob{
		ID:          id,
		Prompt:      prompt,
		Experts:     append([]string(nil), experts...),
		Attorneys:   append([]string(nil), attorneys...),
		DocumentIDs: append([]string(nil), documentIDs...),
		State:       StateInitiated,
		Stage:       "Queued",
		CreatedAt:   t,
		UpdatedAt:   t,
	}
	s.jobs[id] = job
	cp := *job
	return &cp, nil
}

// UpdateStage sets the stage label and progress with the same
// monotonicity and implicit-upgrade rules as uploads.
func (s *AnalysisStore) UpdateStage(id, stage string, percent int) error {
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
	if job.Progress > 0 && job.State == StateInitiated {
		job.State = StateProcessing
	}
	job.UpdatedAt = now()
	return nil
}

// RecordResult completes the job. The payload is frozen from here on.
func (s *AnalysisStore) RecordResult(id string, result *agent.AnalysisResult) error {
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

// RecordError fails the job.
func (s *AnalysisStore) RecordError(id, message, tag, details string) error {
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
func (s *AnalysisStore) Get(id string) (*AnalysisJob, error) {
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
func (s *AnalysisStore) List() []*AnalysisJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*AnalysisJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		cp := *job
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Delete removes a job regardless of state.
func (s *AnalysisStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return ErrNotFound
	}
	delete(s.jobs, id)
	return nil
}

// Stats counts jobs per state.
func (s *AnalysisStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{Total: len(s.jobs), ByState: make(map[State]int)}
	for _, job := range s.jobs {
		stats.ByState[job.State]++
	}
	return stats
}
