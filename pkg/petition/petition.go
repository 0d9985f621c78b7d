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

// Package petition drives the per-case workflow: the petition is
// ingested, an LLM suggests which supporting documents the case needs,
// the user uploads them, and a full analysis with prognosis and a
// draft continuation closes the case.
package petition

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kadirpekel/themis/pkg/agent"
)

// State is a petition lifecycle state. Transitions only move forward
// in the declared order; ERROR is reachable from anywhere and
// terminal.
type State string

const (
	StateAwaitingDocuments      State = "AWAITING_DOCUMENTS"
	StateDocumentsBeingAnalyzed State = "DOCUMENTS_BEING_ANALYZED"
	StateReadyForAnalysis       State = "READY_FOR_ANALYSIS"
	StateAnalysisInProgress     State = "ANALYSIS_IN_PROGRESS"
	StateCompleted              State = "COMPLETED"
	StateError                  State = "ERROR"
)

// stateOrder positions each non-error state on the forward path.
var stateOrder = map[State]int{
	StateAwaitingDocuments:      0,
	StateDocumentsBeingAnalyzed: 1,
	StateReadyForAnalysis:       2,
	StateAnalysisInProgress:     3,
	StateCompleted:              4,
}

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool { return s == StateCompleted || s == StateError }

// Document suggestion priorities.
const (
	PriorityEssential = "essential"
	PriorityImportant = "important"
	PriorityDesirable = "desirable"
)

// SuggestedDocument is one entry of the relevance step's output.
type SuggestedDocument struct {
	Type          string `json:"type"`
	Justification string `json:"justification"`
	Priority      string `json:"priority"`
}

// Scenario names of the prognosis distribution.
const (
	ScenarioVictoryTotal   = "VICTORY_TOTAL"
	ScenarioVictoryPartial = "VICTORY_PARTIAL"
	ScenarioSettlement     = "SETTLEMENT"
	ScenarioDefeat         = "DEFEAT"
)

// Scenario is one outcome branch with its probability in [0,100].
type Scenario struct {
	Scenario       string  `json:"scenario"`
	Probability    float64 `json:"probability"`
	ValueRange     string  `json:"value_range,omitempty"`
	DurationMonths string  `json:"estimated_duration_months,omitempty"`
}

// Prognosis is the probabilistic outcome summary. Probabilities sum to
// 100 within rounding tolerance.
type Prognosis struct {
	Scenarios       []Scenario `json:"scenarios"`
	Recommendation  string     `json:"overall_recommendation"`
	CriticalFactors []string   `json:"critical_factors"`
}

// Result is the petition's final payload.
type Result struct {
	Analysis  *agent.AnalysisResult `json:"analysis"`
	Prognosis *Prognosis            `json:"prognosis"`
	Draft     string                `json:"draft"`
}

// Petition is one case moving through the workflow.
type Petition struct {
	ID         string `json:"petition_id"`
	UploadID   string `json:"upload_id"`
	DocumentID string `json:"document_id"`
	ActionType string `json:"action_type,omitempty"`
	State      State  `json:"status"`

	DocumentsSuggested   []SuggestedDocument `json:"documents_suggested,omitempty"`
	SuggestionWarnings   []string            `json:"suggestion_warnings,omitempty"`
	SubmittedDocumentIDs []string            `json:"submitted_document_ids,omitempty"`
	ExpertsSelected      []string            `json:"experts_selected,omitempty"`
	AttorneysSelected    []string            `json:"attorneys_selected,omitempty"`

	Result       *Result `json:"result,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
	ErrorDetails string  `json:"error_details,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// essentialCount counts suggestions marked essential.
func (p *Petition) essentialCount() int {
	n := 0
	for _, s := range p.DocumentsSuggested {
		if s.Priority == PriorityEssential {
			n++
		}
	}
	return n
}

var (
	ErrNotFound    = errors.New("petition not found")
	ErrDuplicateID = errors.New("petition id already exists")
	ErrTerminal    = errors.New("petition is in a terminal state")
)

// TransitionError reports an attempted backward or invalid transition.
type TransitionError struct {
	From, To State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid petition transition %s -> %s", e.From, e.To)
}

// Store is the process-wide petition table.
type Store struct {
	mu        sync.Mutex
	petitions map[string]*Petition
}

func NewStore() *Store {
	return &Store{petitions: map[string]*Petition{}}
}

// Create registers a new petition in AWAITING_DOCUMENTS.
func (s *Store) Create(id, uploadID, documentID, actionType string) (*Petition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.petitions[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	now := time.Now().UTC()
	p := &Petition{
		ID:         id,
		UploadID:   uploadID,
		DocumentID: documentID,
		ActionType: actionType,
		State:      StateAwaitingDocuments,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.petitions[id] = p
	return snapshot(p), nil
}

// Get returns a copy of the petition.
func (s *Store) Get(id string) (*Petition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.petitions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return snapshot(p), nil
}

// List returns copies of all petitions, newest first.
func (s *Store) List() []*Petition {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Petition, 0, len(s.petitions))
	for _, p := range s.petitions {
		out = append(out, snapshot(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// SetSuggestions records the relevance step's output and moves the
// petition to DOCUMENTS_BEING_ANALYZED.
func (s *Store) SetSuggestions(id string, docs []SuggestedDocument, warnings []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.mutable(id)
	if err != nil {
		return err
	}
	if err := checkTransition(p.State, StateDocumentsBeingAnalyzed); err != nil {
		return err
	}
	p.DocumentsSuggested = append([]SuggestedDocument(nil), docs...)
	p.SuggestionWarnings = append([]string(nil), warnings...)
	p.State = StateDocumentsBeingAnalyzed
	if p.essentialCount() == 0 {
		// Nothing essential to wait for.
		p.State = StateReadyForAnalysis
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// AddDocument associates an ingested document with the petition. Once
// the number of submitted documents covers every essential suggestion,
// the petition becomes READY_FOR_ANALYSIS.
func (s *Store) AddDocument(id, documentID string) (*Petition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.mutable(id)
	if err != nil {
		return nil, err
	}
	if p.State != StateDocumentsBeingAnalyzed && p.State != StateReadyForAnalysis {
		return nil, &TransitionError{From: p.State, To: StateReadyForAnalysis}
	}
	for _, existing := range p.SubmittedDocumentIDs {
		if existing == documentID {
			return snapshot(p), nil
		}
	}
	p.SubmittedDocumentIDs = append(p.SubmittedDocumentIDs, documentID)
	if len(p.SubmittedDocumentIDs) >= p.essentialCount() {
		p.State = StateReadyForAnalysis
	}
	p.UpdatedAt = time.Now().UTC()
	return snapshot(p), nil
}

// BeginAnalysis records the agent selection and moves the petition to
// ANALYSIS_IN_PROGRESS.
func (s *Store) BeginAnalysis(id string, experts, attorneys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.mutable(id)
	if err != nil {
		return err
	}
	if err := checkTransition(p.State, StateAnalysisInProgress); err != nil {
		return err
	}
	p.ExpertsSelected = append([]string(nil), experts...)
	p.AttorneysSelected = append([]string(nil), attorneys...)
	p.State = StateAnalysisInProgress
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// SetResult stores the final payload and completes the petition.
func (s *Store) SetResult(id string, result *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.mutable(id)
	if err != nil {
		return err
	}
	if err := checkTransition(p.State, StateCompleted); err != nil {
		return err
	}
	p.Result = result
	p.State = StateCompleted
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Fail moves the petition to ERROR with a message. Allowed from any
// non-terminal state.
func (s *Store) Fail(id, message, details string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.mutable(id)
	if err != nil {
		return err
	}
	p.State = StateError
	p.ErrorMessage = message
	p.ErrorDetails = details
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) mutable(id string) (*Petition, error) {
	p, ok := s.petitions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if p.State.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrTerminal, id, p.State)
	}
	return p, nil
}

// checkTransition enforces forward-only movement. Steps may be skipped
// (a petition with no essential suggestions goes straight to ready)
// but never reversed.
func checkTransition(from, to State) error {
	fi, ok := stateOrder[from]
	if !ok {
		return &TransitionError{From: from, To: to}
	}
	ti, ok := stateOrder[to]
	if !ok || ti <= fi {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

func snapshot(p *Petition) *Petition {
	cp := *p
	cp.DocumentsSuggested = append([]SuggestedDocument(nil), p.DocumentsSuggested...)
	cp.SuggestionWarnings = append([]string(nil), p.SuggestionWarnings...)
	cp.SubmittedDocumentIDs = append([]string(nil), p.SubmittedDocumentIDs...)
	cp.ExpertsSelected = append([]string(nil), p.ExpertsSelected...)
	cp.AttorneysSelected = append([]string(nil), p.AttorneysSelected...)
	return &cp
}
