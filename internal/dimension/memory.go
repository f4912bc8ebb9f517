package dimension

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/feedyard/feedlot-etl/internal/domain"
)

// MemoryStore is the in-memory Store used in tests and local runs.
// Seed known codes with Seed before processing.
type MemoryStore struct {
	mu      sync.Mutex
	known   map[cacheKey]uuid.UUID
	pending map[cacheKey]domain.PendingEntry
	byID    map[uuid.UUID]cacheKey
}

// NewMemoryStore creates an empty in-memory dimension store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		known:   make(map[cacheKey]uuid.UUID),
		pending: make(map[cacheKey]domain.PendingEntry),
		byID:    make(map[uuid.UUID]cacheKey),
	}
}

// Seed registers a known code and returns its dimension id.
func (s *MemoryStore) Seed(organizationID uuid.UUID, typ domain.DimensionType, code string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.known[cacheKey{org: organizationID, typ: typ, code: code}] = id
	return id
}

func (s *MemoryStore) Lookup(_ context.Context, organizationID uuid.UUID, typ domain.DimensionType, code string) (*uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.known[cacheKey{org: organizationID, typ: typ, code: code}]; ok {
		return &id, nil
	}
	return nil, nil
}

func (s *MemoryStore) CreatePending(_ context.Context, entry domain.PendingEntry) (domain.PendingEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := cacheKey{org: entry.OrganizationID, typ: entry.Type, code: entry.Code}
	if existing, ok := s.pending[key]; ok {
		return existing, false, nil
	}
	s.pending[key] = entry
	s.byID[entry.ID] = key
	return entry, true, nil
}

func (s *MemoryStore) GetPending(_ context.Context, id uuid.UUID) (domain.PendingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.byID[id]
	if !ok {
		return domain.PendingEntry{}, fmt.Errorf("pending entry %s not found", id)
	}
	return s.pending[key], nil
}

func (s *MemoryStore) ListPending(_ context.Context, organizationID uuid.UUID) ([]domain.PendingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PendingEntry
	for _, entry := range s.pending {
		if entry.OrganizationID == organizationID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdatePending(_ context.Context, entry domain.PendingEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.byID[entry.ID]
	if !ok {
		return fmt.Errorf("pending entry %s not found", entry.ID)
	}
	s.pending[key] = entry
	if entry.Status == domain.PendingResolved && entry.ResolvedValue != nil {
		s.known[key] = *entry.ResolvedValue
	}
	return nil
}
