// Package dimension resolves business codes (pen, diet, equipment,
// handler) to stable dimension identifiers, queueing unknown codes for
// human review instead of failing rows.
package dimension

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/feedyard/feedlot-etl/internal/domain"
)

// Store is the persistence collaborator behind the resolver. The
// in-memory implementation serves tests; the Postgres one production.
// Both are selected by construction.
type Store interface {
	// Lookup returns the dimension id for a code, or nil when unknown.
	Lookup(ctx context.Context, organizationID uuid.UUID, typ domain.DimensionType, code string) (*uuid.UUID, error)
	// CreatePending inserts a review entry unless one already exists
	// for (organization, type, code). The dedup must happen under the
	// store's uniqueness guarantee, not client-side check-then-act.
	// Returns the entry on file and whether this call created it.
	CreatePending(ctx context.Context, entry domain.PendingEntry) (domain.PendingEntry, bool, error)
	GetPending(ctx context.Context, id uuid.UUID) (domain.PendingEntry, error)
	ListPending(ctx context.Context, organizationID uuid.UUID) ([]domain.PendingEntry, error)
	UpdatePending(ctx context.Context, entry domain.PendingEntry) error
}

type cacheKey struct {
	org  uuid.UUID
	typ  domain.DimensionType
	code string
}

// Auditor records reviewer actions on the pending queue.
type Auditor interface {
	LogEvent(ctx context.Context, level, action, message string, details map[string]any) error
}

// Resolver memoizes code lookups for one process. The cache is safe
// to share read-only across concurrent row validations within a run.
type Resolver struct {
	store Store
	audit Auditor

	mu    sync.RWMutex
	cache map[cacheKey]*uuid.UUID

	pendingMu sync.Mutex
	created   int
}

// NewResolver wraps a store with a process-local cache.
func NewResolver(store Store) *Resolver {
	return &Resolver{
		store: store,
		cache: make(map[cacheKey]*uuid.UUID),
	}
}

// WithAudit attaches an audit log; reviewer resolutions and rejections
// then emit one event each.
func (r *Resolver) WithAudit(audit Auditor) *Resolver {
	r.audit = audit
	return r
}

// PendingCreated reports how many review entries this resolver has
// opened since construction.
func (r *Resolver) PendingCreated() int {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	return r.created
}

// Resolve maps one code to a dimension reference. Unknown codes open
// exactly one pending entry per (organization, type, code) and return
// an unresolved reference; the row is not failed.
func (r *Resolver) Resolve(ctx context.Context, organizationID uuid.UUID, typ domain.DimensionType, code string) (domain.DimensionReference, error) {
	ref := domain.DimensionReference{Type: typ, Code: code}
	code = strings.TrimSpace(code)
	if code == "" {
		return ref, nil
	}

	key := cacheKey{org: organizationID, typ: typ, code: code}
	r.mu.RLock()
	id, hit := r.cache[key]
	r.mu.RUnlock()

	if !hit {
		var err error
		id, err = r.store.Lookup(ctx, organizationID, typ, code)
		if err != nil {
			return ref, fmt.Errorf("dimension lookup %s/%s: %w", typ, code, err)
		}
		r.mu.Lock()
		r.cache[key] = id
		r.mu.Unlock()
	}

	if id != nil {
		ref.ID = id
		return ref, nil
	}

	entry, created, err := r.store.CreatePending(ctx, domain.NewPendingEntry(organizationID, typ, code))
	if err != nil {
		return ref, fmt.Errorf("create pending entry %s/%s: %w", typ, code, err)
	}
	if created {
		r.pendingMu.Lock()
		r.created++
		r.pendingMu.Unlock()
	}
	ref.PendingID = &entry.ID
	return ref, nil
}

// ResolveRecord resolves every dimension code a processed record
// carries and stamps the enrichment status.
func (r *Resolver) ResolveRecord(ctx context.Context, record *domain.ProcessedRecord) error {
	type dim struct {
		typ  domain.DimensionType
		code string
	}
	dims := []dim{{domain.DimensionPen, record.PenCode}}
	if record.DietCode != "" {
		dims = append(dims, dim{domain.DimensionDiet, record.DietCode})
	}
	if record.EquipmentCode != "" {
		dims = append(dims, dim{domain.DimensionEquipment, record.EquipmentCode})
	}
	if record.HandlerCode != "" {
		dims = append(dims, dim{domain.DimensionHandler, record.HandlerCode})
	}

	refs := make([]domain.DimensionReference, 0, len(dims))
	for _, d := range dims {
		ref, err := r.Resolve(ctx, record.OrganizationID, d.typ, d.code)
		if err != nil {
			return err
		}
		refs = append(refs, ref)
	}
	record.ApplyEnrichment(refs)
	return nil
}

// ListPending exposes the review backlog for an organization.
func (r *Resolver) ListPending(ctx context.Context, organizationID uuid.UUID) ([]domain.PendingEntry, error) {
	return r.store.ListPending(ctx, organizationID)
}

// ResolvePending applies a reviewer's resolution to an open entry.
func (r *Resolver) ResolvePending(ctx context.Context, id uuid.UUID, resolvedValue uuid.UUID, actor string) (domain.PendingEntry, error) {
	entry, err := r.store.GetPending(ctx, id)
	if err != nil {
		return domain.PendingEntry{}, err
	}
	resolved, err := entry.Resolve(resolvedValue, actor)
	if err != nil {
		return domain.PendingEntry{}, err
	}
	if err := r.store.UpdatePending(ctx, resolved); err != nil {
		return domain.PendingEntry{}, err
	}
	// The code now resolves; drop the stale negative cache entry.
	r.mu.Lock()
	delete(r.cache, cacheKey{org: resolved.OrganizationID, typ: resolved.Type, code: resolved.Code})
	r.mu.Unlock()

	if r.audit != nil {
		_ = r.audit.LogEvent(ctx, "info", "pending_resolved",
			fmt.Sprintf("code %s/%s resolved", resolved.Type, resolved.Code),
			map[string]any{
				"pending_id": resolved.ID.String(),
				"value":      resolvedValue.String(),
				"actor":      actor,
			})
	}
	return resolved, nil
}

// RejectPending marks an open entry rejected.
func (r *Resolver) RejectPending(ctx context.Context, id uuid.UUID, actor string) (domain.PendingEntry, error) {
	entry, err := r.store.GetPending(ctx, id)
	if err != nil {
		return domain.PendingEntry{}, err
	}
	rejected, err := entry.Reject(actor)
	if err != nil {
		return domain.PendingEntry{}, err
	}
	if err := r.store.UpdatePending(ctx, rejected); err != nil {
		return domain.PendingEntry{}, err
	}
	if r.audit != nil {
		_ = r.audit.LogEvent(ctx, "info", "pending_rejected",
			fmt.Sprintf("code %s/%s rejected", rejected.Type, rejected.Code),
			map[string]any{"pending_id": rejected.ID.String(), "actor": actor})
	}
	return rejected, nil
}
