package dimension

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/feedyard/feedlot-etl/internal/domain"
)

type recordingAuditor struct {
	mu     sync.Mutex
	events []string
}

func (a *recordingAuditor) LogEvent(_ context.Context, _, action, _ string, _ map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, action)
	return nil
}

func TestResolveKnownCode(t *testing.T) {
	orgID := uuid.New()
	store := NewMemoryStore()
	penID := store.Seed(orgID, domain.DimensionPen, "C101")
	resolver := NewResolver(store)

	ref, err := resolver.Resolve(context.Background(), orgID, domain.DimensionPen, "C101")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !ref.Resolved() {
		t.Fatalf("seeded code should resolve")
	}
	if *ref.ID != penID {
		t.Fatalf("resolved to wrong id: %s", ref.ID)
	}
	if ref.PendingID != nil {
		t.Fatalf("resolved codes open no pending entry")
	}
}

func TestResolveUnknownCodeOpensOnePendingEntry(t *testing.T) {
	orgID := uuid.New()
	store := NewMemoryStore()
	resolver := NewResolver(store)

	first, err := resolver.Resolve(context.Background(), orgID, domain.DimensionPen, "C999")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if first.Resolved() {
		t.Fatalf("unknown code must not resolve")
	}
	if first.PendingID == nil {
		t.Fatalf("unknown code must reference a pending entry")
	}

	second, err := resolver.Resolve(context.Background(), orgID, domain.DimensionPen, "C999")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if *second.PendingID != *first.PendingID {
		t.Fatalf("repeated occurrences must share the pending entry")
	}
	if resolver.PendingCreated() != 1 {
		t.Fatalf("expected exactly one pending entry, got %d", resolver.PendingCreated())
	}

	pending, err := store.ListPending(context.Background(), orgID)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("store should hold one entry, got %d", len(pending))
	}
}

func TestResolveSameCodeDifferentType(t *testing.T) {
	orgID := uuid.New()
	resolver := NewResolver(NewMemoryStore())

	penRef, err := resolver.Resolve(context.Background(), orgID, domain.DimensionPen, "A1")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	dietRef, err := resolver.Resolve(context.Background(), orgID, domain.DimensionDiet, "A1")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if *penRef.PendingID == *dietRef.PendingID {
		t.Fatalf("the same code under different types needs distinct entries")
	}
	if resolver.PendingCreated() != 2 {
		t.Fatalf("expected two pending entries, got %d", resolver.PendingCreated())
	}
}

func TestResolveEmptyCode(t *testing.T) {
	resolver := NewResolver(NewMemoryStore())

	ref, err := resolver.Resolve(context.Background(), uuid.New(), domain.DimensionDiet, "  ")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if ref.Resolved() || ref.PendingID != nil {
		t.Fatalf("blank codes neither resolve nor open entries: %+v", ref)
	}
	if resolver.PendingCreated() != 0 {
		t.Fatalf("no pending entry expected")
	}
}

func TestResolveRecordSetsEnrichment(t *testing.T) {
	orgID := uuid.New()
	store := NewMemoryStore()
	store.Seed(orgID, domain.DimensionPen, "C101")
	resolver := NewResolver(store)

	record := &domain.ProcessedRecord{
		OrganizationID: orgID,
		PenCode:        "C101",
		EquipmentCode:  "vagao",
	}
	if err := resolver.ResolveRecord(context.Background(), record); err != nil {
		t.Fatalf("resolve record failed: %v", err)
	}
	if record.Enrichment != domain.EnrichmentPartial {
		t.Fatalf("one of two codes resolved should be PARTIAL, got %s", record.Enrichment)
	}
	if len(record.Dimensions) != 2 {
		t.Fatalf("expected 2 dimension references, got %d", len(record.Dimensions))
	}
}

func TestResolvePendingPromotesCode(t *testing.T) {
	orgID := uuid.New()
	store := NewMemoryStore()
	audit := &recordingAuditor{}
	resolver := NewResolver(store).WithAudit(audit)

	ref, err := resolver.Resolve(context.Background(), orgID, domain.DimensionPen, "C999")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	dimID := uuid.New()
	entry, err := resolver.ResolvePending(context.Background(), *ref.PendingID, dimID, "maria")
	if err != nil {
		t.Fatalf("resolve pending failed: %v", err)
	}
	if entry.Status != domain.PendingResolved {
		t.Fatalf("expected resolved, got %s", entry.Status)
	}

	// The stale negative cache entry is dropped, so the code now
	// resolves to the reviewer's value.
	after, err := resolver.Resolve(context.Background(), orgID, domain.DimensionPen, "C999")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !after.Resolved() || *after.ID != dimID {
		t.Fatalf("resolved code should map to the reviewer's id: %+v", after)
	}

	if len(audit.events) != 1 || audit.events[0] != "pending_resolved" {
		t.Fatalf("expected one pending_resolved audit event, got %v", audit.events)
	}
}

func TestResolvePendingTwiceFails(t *testing.T) {
	orgID := uuid.New()
	resolver := NewResolver(NewMemoryStore())

	ref, err := resolver.Resolve(context.Background(), orgID, domain.DimensionPen, "C999")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if _, err := resolver.ResolvePending(context.Background(), *ref.PendingID, uuid.New(), "maria"); err != nil {
		t.Fatalf("first resolution failed: %v", err)
	}
	if _, err := resolver.ResolvePending(context.Background(), *ref.PendingID, uuid.New(), "jose"); err == nil {
		t.Fatalf("second resolution must fail")
	}
}

func TestRejectPending(t *testing.T) {
	orgID := uuid.New()
	audit := &recordingAuditor{}
	resolver := NewResolver(NewMemoryStore()).WithAudit(audit)

	ref, err := resolver.Resolve(context.Background(), orgID, domain.DimensionEquipment, "trator")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	entry, err := resolver.RejectPending(context.Background(), *ref.PendingID, "maria")
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if entry.Status != domain.PendingRejected {
		t.Fatalf("expected rejected, got %s", entry.Status)
	}
	if len(audit.events) != 1 || audit.events[0] != "pending_rejected" {
		t.Fatalf("expected one pending_rejected audit event, got %v", audit.events)
	}
}
