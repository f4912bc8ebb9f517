// Package lifecycle drives the file state machine: transitions under
// optimistic locking, bounded retries with backoff, dead-lettering and
// staging cleanup.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/feedyard/feedlot-etl/internal/domain"
	"github.com/feedyard/feedlot-etl/internal/repository"
)

// conflictRereads bounds how often a lost optimistic-lock race is
// re-read before giving up. Two concurrent runs settle within one
// re-read in practice.
const conflictRereads = 3

// Machine persists lifecycle transitions through the file-state
// repository. Transition legality is enforced in the domain; the
// machine adds the optimistic-lock write and conflict re-reads.
type Machine struct {
	files  repository.FileStateRepository
	logger *slog.Logger
}

// NewMachine wires a state machine over the repository.
func NewMachine(files repository.FileStateRepository, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{files: files, logger: logger}
}

// Transition moves a file to the target state and persists it under
// the version the caller read. On a version conflict the state is
// re-read and, when the transition is still legal from the fresh
// state, retried; an illegal transition after re-read means another
// run owns the file and the conflict is surfaced.
func (m *Machine) Transition(ctx context.Context, state domain.FileProcessingState, to domain.FileState) (domain.FileProcessingState, error) {
	current := state
	for attempt := 0; ; attempt++ {
		next, err := current.Transition(to)
		if err != nil {
			return current, err
		}

		updated, err := m.files.Update(ctx, next, current.Version)
		if err == nil {
			m.logger.Debug("file state transition",
				"file_id", updated.ID, "from", current.State, "to", to, "version", updated.Version)
			return updated, nil
		}

		var conflict *domain.ConcurrencyConflictError
		if !errors.As(err, &conflict) || attempt >= conflictRereads {
			return current, err
		}

		fresh, readErr := m.files.GetByID(ctx, state.ID)
		if readErr != nil {
			return current, fmt.Errorf("re-read after version conflict: %w", readErr)
		}
		current = fresh
	}
}

// Fail records a failure message and moves the file to failed state.
func (m *Machine) Fail(ctx context.Context, state domain.FileProcessingState, cause error) (domain.FileProcessingState, error) {
	state.LastError = cause.Error()
	return m.Transition(ctx, state, domain.StateFailed)
}

// Get re-reads the current persisted state of a file.
func (m *Machine) Get(ctx context.Context, id uuid.UUID) (domain.FileProcessingState, error) {
	return m.files.GetByID(ctx, id)
}
