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

// Package jobs tracks background work in process-wide tables.
//
// Two tables exist: upload jobs (document ingestion) and analysis jobs
// (multi-agent runs). Both are mutex-guarded maps. Writers enforce the
// same rules: progress never regresses, terminal states are immutable,
// and a nonzero progress implicitly upgrades a freshly admitted job to
// PROCESSING. State lives in memory only; a restart loses in-flight
// jobs. Swapping the maps for an external key-value store keeps the
// same interface.
package jobs

import (
	"errors"
	"fmt"
	"time"
)

// State is a job lifecycle state.
type State string

const (
	StateInitiated  State = "INITIATED"
	StateSaving     State = "SAVING"
	StateProcessing State = "PROCESSING"
	StateCompleted  State = "COMPLETED"
	StateError      State = "ERROR"
)

// Terminal reports whether no further transitions are allowed.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateError
}

var (
	// ErrNotFound means the job id is unknown.
	ErrNotFound = errors.New("job not found")
	// ErrDuplicateID means a job with that id already exists.
	ErrDuplicateID = errors.New("job id already exists")
	// ErrTerminal means the job reached COMPLETED or ERROR and rejects writes.
	ErrTerminal = errors.New("job is in a terminal state")
)

// Stats counts jobs per state.
type Stats struct {
	Total   int           `json:"total"`
	ByState map[State]int `json:"by_state"`
}

func validPercent(percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("progress percent %d out of range [0, 100]", percent)
	}
	return nil
}

func now() time.Time { return time.Now().UTC() }
