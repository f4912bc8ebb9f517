package checksum

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/feedyard/feedlot-etl/internal/domain"
)

type stubFileRepo struct {
	byChecksum map[string]*domain.FileProcessingState
}

func (s *stubFileRepo) Create(_ context.Context, state domain.FileProcessingState) (domain.FileProcessingState, error) {
	return state, nil
}

func (s *stubFileRepo) GetByID(_ context.Context, _ uuid.UUID) (domain.FileProcessingState, error) {
	return domain.FileProcessingState{}, errors.New("not implemented")
}

func (s *stubFileRepo) GetByChecksum(_ context.Context, _ uuid.UUID, checksum string) (*domain.FileProcessingState, error) {
	return s.byChecksum[checksum], nil
}

func (s *stubFileRepo) Update(_ context.Context, state domain.FileProcessingState, _ int64) (domain.FileProcessingState, error) {
	return state, nil
}

func (s *stubFileRepo) ListRetryable(_ context.Context, _ time.Time, _ int) ([]domain.FileProcessingState, error) {
	return nil, nil
}

type stubAudit struct {
	actions []string
}

func (s *stubAudit) LogEvent(_ context.Context, _, action, _ string, _ map[string]any) error {
	s.actions = append(s.actions, action)
	return nil
}

func priorState(state domain.FileState, sum string) *domain.FileProcessingState {
	prior := domain.NewFileProcessingState(uuid.New(), "cargas.csv", domain.PipelineFeedDeviation, sum)
	prior.State = state
	return &prior
}

func TestSum(t *testing.T) {
	got := Sum([]byte("abc"))
	expected := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != expected {
		t.Fatalf("Sum(abc) = %s, expected %s", got, expected)
	}
	if Sum([]byte("abc")) != got {
		t.Fatalf("checksums must be deterministic")
	}
	if Sum([]byte("abd")) == got {
		t.Fatalf("different content must produce a different checksum")
	}
}

func TestGateUnseenContent(t *testing.T) {
	gate := NewGate(&stubFileRepo{byChecksum: map[string]*domain.FileProcessingState{}}, &stubAudit{})

	prior, err := gate.Check(context.Background(), uuid.New(), "cargas.csv", "deadbeef", Force{})
	if err != nil {
		t.Fatalf("unseen content must pass: %v", err)
	}
	if prior != nil {
		t.Fatalf("no prior record expected")
	}
}

func TestGateRejectsLoadedDuplicate(t *testing.T) {
	sum := "deadbeef"
	repo := &stubFileRepo{byChecksum: map[string]*domain.FileProcessingState{
		sum: priorState(domain.StateLoaded, sum),
	}}
	gate := NewGate(repo, &stubAudit{})

	_, err := gate.Check(context.Background(), uuid.New(), "cargas.csv", sum, Force{})
	var dup *domain.DuplicateFileError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateFileError, got %v", err)
	}
	if dup.State != domain.StateLoaded {
		t.Fatalf("error should carry the prior state, got %s", dup.State)
	}
}

func TestGateAllowsFailedReprocess(t *testing.T) {
	sum := "deadbeef"
	repo := &stubFileRepo{byChecksum: map[string]*domain.FileProcessingState{
		sum: priorState(domain.StateFailed, sum),
	}}
	audit := &stubAudit{}
	gate := NewGate(repo, audit)

	prior, err := gate.Check(context.Background(), uuid.New(), "cargas.csv", sum, Force{})
	if err != nil {
		t.Fatalf("failed files reprocess without force: %v", err)
	}
	if prior == nil || prior.State != domain.StateFailed {
		t.Fatalf("expected the prior failed record back")
	}
	if len(audit.actions) != 0 {
		t.Fatalf("unforced reprocessing needs no audit event, got %v", audit.actions)
	}
}

func TestGateAllowsCancelledReprocess(t *testing.T) {
	sum := "deadbeef"
	repo := &stubFileRepo{byChecksum: map[string]*domain.FileProcessingState{
		sum: priorState(domain.StateCancelled, sum),
	}}
	gate := NewGate(repo, &stubAudit{})

	if _, err := gate.Check(context.Background(), uuid.New(), "cargas.csv", sum, Force{}); err != nil {
		t.Fatalf("cancelled files reprocess without force: %v", err)
	}
}

func TestGateForcedReprocessRequiresReasonAndActor(t *testing.T) {
	sum := "deadbeef"
	repo := &stubFileRepo{byChecksum: map[string]*domain.FileProcessingState{
		sum: priorState(domain.StateLoaded, sum),
	}}
	gate := NewGate(repo, &stubAudit{})

	if _, err := gate.Check(context.Background(), uuid.New(), "cargas.csv", sum, Force{Enabled: true}); err == nil {
		t.Fatalf("force without reason and actor must fail")
	}
	if _, err := gate.Check(context.Background(), uuid.New(), "cargas.csv", sum, Force{Enabled: true, Reason: "corrigido"}); err == nil {
		t.Fatalf("force without actor must fail")
	}
}

func TestGateForcedReprocessIsAudited(t *testing.T) {
	sum := "deadbeef"
	repo := &stubFileRepo{byChecksum: map[string]*domain.FileProcessingState{
		sum: priorState(domain.StateLoaded, sum),
	}}
	audit := &stubAudit{}
	gate := NewGate(repo, audit)

	prior, err := gate.Check(context.Background(), uuid.New(), "cargas.csv", sum,
		Force{Enabled: true, Reason: "valores corrigidos no export", Actor: "maria"})
	if err != nil {
		t.Fatalf("forced reprocess failed: %v", err)
	}
	if prior == nil {
		t.Fatalf("expected the prior record back")
	}
	if len(audit.actions) != 1 || audit.actions[0] != "forced_reprocess" {
		t.Fatalf("expected one forced_reprocess event, got %v", audit.actions)
	}
}
