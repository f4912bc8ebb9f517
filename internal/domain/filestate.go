package domain

import (
	"time"

	"github.com/google/uuid"
)

// FileState is the lifecycle state of an uploaded file.
type FileState string

const (
	StateUploaded   FileState = "uploaded"
	StateParsing    FileState = "parsing"
	StateParsed     FileState = "parsed"
	StateValidating FileState = "validating"
	StateValidated  FileState = "validated"
	StateLoading    FileState = "loading"
	StateLoaded     FileState = "loaded"
	StateFailed     FileState = "failed"
	StateCancelled  FileState = "cancelled"
)

// validTransitions is the static legality table for the file lifecycle.
// failed and cancelled may re-enter parsing (retry/reprocess); loaded
// is terminal.
var validTransitions = map[FileState][]FileState{
	StateUploaded:   {StateParsing, StateFailed, StateCancelled},
	StateParsing:    {StateParsed, StateFailed},
	StateParsed:     {StateValidating, StateFailed, StateCancelled},
	StateValidating: {StateValidated, StateFailed},
	StateValidated:  {StateLoading, StateFailed, StateCancelled},
	StateLoading:    {StateLoaded, StateFailed},
	StateLoaded:     {},
	StateFailed:     {StateParsing},
	StateCancelled:  {StateParsing},
}

// IsValidTransition reports whether moving from one state to another
// is allowed by the lifecycle table.
func IsValidTransition(from, to FileState) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidNextStates returns the states reachable from the given state.
// The slice is empty for terminal states.
func ValidNextStates(from FileState) []FileState {
	next := validTransitions[from]
	out := make([]FileState, len(next))
	copy(out, next)
	return out
}

// Terminal reports whether the state has no outgoing transitions.
func (s FileState) Terminal() bool {
	return len(validTransitions[s]) == 0
}

// FileProcessingState is the persistent record of one uploaded file.
// It is created on upload, mutated only through lifecycle transitions
// guarded by the optimistic-lock version, and never deleted.
type FileProcessingState struct {
	ID             uuid.UUID    `json:"id"`
	OrganizationID uuid.UUID    `json:"organization_id"`
	FileName       string       `json:"file_name"`
	Pipeline       PipelineType `json:"pipeline"`
	Checksum       string       `json:"checksum"`
	State          FileState    `json:"state"`
	RetryCount     int          `json:"retry_count"`
	Version        int64        `json:"version"`
	LastError      string       `json:"last_error,omitempty"`
	NextRetryAt    *time.Time   `json:"next_retry_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// NewFileProcessingState registers a freshly uploaded file.
func NewFileProcessingState(organizationID uuid.UUID, fileName string, pipeline PipelineType, checksum string) FileProcessingState {
	now := time.Now()
	return FileProcessingState{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		FileName:       fileName,
		Pipeline:       pipeline,
		Checksum:       checksum,
		State:          StateUploaded,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Transition returns a copy of the state record moved to the target
// state, or an IllegalTransitionError when the lifecycle table forbids
// the move. The caller persists the copy under the version it read.
func (f FileProcessingState) Transition(to FileState) (FileProcessingState, error) {
	if !IsValidTransition(f.State, to) {
		return f, &IllegalTransitionError{From: f.State, To: to}
	}
	f.State = to
	f.UpdatedAt = time.Now()
	return f, nil
}
