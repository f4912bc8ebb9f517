package dimension

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/feedyard/feedlot-etl/internal/db"
	"github.com/feedyard/feedlot-etl/internal/domain"
)

// PgStore is the persistent Store backed by the dimension and
// pending-entry tables.
type PgStore struct {
	conn *db.Connection
}

// NewPgStore wires a store backed by pgxpool.
func NewPgStore(conn *db.Connection) *PgStore {
	return &PgStore{conn: conn}
}

func (s *PgStore) Lookup(ctx context.Context, organizationID uuid.UUID, typ domain.DimensionType, code string) (*uuid.UUID, error) {
	ctx, cancel := s.conn.QueryContext(ctx)
	defer cancel()

	var id uuid.UUID
	err := s.conn.Pool.QueryRow(
		ctx,
		`SELECT id FROM dimension_codes
		 WHERE organization_id = $1 AND dimension_type = $2 AND code = $3`,
		organizationID, typ, code,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up dimension code: %w", err)
	}
	return &id, nil
}

// CreatePending relies on the unique index over (organization_id,
// dimension_type, code) so concurrent batches cannot open duplicate
// entries: the insert is a no-op on conflict and the surviving row is
// read back.
func (s *PgStore) CreatePending(ctx context.Context, entry domain.PendingEntry) (domain.PendingEntry, bool, error) {
	ctx, cancel := s.conn.QueryContext(ctx)
	defer cancel()

	tag, err := s.conn.Pool.Exec(
		ctx,
		`INSERT INTO pending_entries (id, organization_id, dimension_type, code, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (organization_id, dimension_type, code) DO NOTHING`,
		entry.ID, entry.OrganizationID, entry.Type, entry.Code, entry.Status, entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return domain.PendingEntry{}, false, fmt.Errorf("failed to create pending entry: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return entry, true, nil
	}

	existing, err := s.getPendingByKey(ctx, entry.OrganizationID, entry.Type, entry.Code)
	if err != nil {
		return domain.PendingEntry{}, false, err
	}
	return existing, false, nil
}

func (s *PgStore) getPendingByKey(ctx context.Context, organizationID uuid.UUID, typ domain.DimensionType, code string) (domain.PendingEntry, error) {
	row := s.conn.Pool.QueryRow(
		ctx,
		`SELECT id, organization_id, dimension_type, code, status, resolved_by, resolved_value, created_at, updated_at
		 FROM pending_entries
		 WHERE organization_id = $1 AND dimension_type = $2 AND code = $3`,
		organizationID, typ, code,
	)
	return scanPending(row)
}

func (s *PgStore) GetPending(ctx context.Context, id uuid.UUID) (domain.PendingEntry, error) {
	ctx, cancel := s.conn.QueryContext(ctx)
	defer cancel()

	row := s.conn.Pool.QueryRow(
		ctx,
		`SELECT id, organization_id, dimension_type, code, status, resolved_by, resolved_value, created_at, updated_at
		 FROM pending_entries WHERE id = $1`,
		id,
	)
	return scanPending(row)
}

func (s *PgStore) ListPending(ctx context.Context, organizationID uuid.UUID) ([]domain.PendingEntry, error) {
	ctx, cancel := s.conn.QueryContext(ctx)
	defer cancel()

	rows, err := s.conn.Pool.Query(
		ctx,
		`SELECT id, organization_id, dimension_type, code, status, resolved_by, resolved_value, created_at, updated_at
		 FROM pending_entries
		 WHERE organization_id = $1 AND status = $2
		 ORDER BY created_at`,
		organizationID, domain.PendingOpen,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.PendingEntry
	for rows.Next() {
		entry, err := scanPending(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// UpdatePending writes the review outcome and, on resolution, promotes
// the code into dimension_codes in the same transaction so a crash
// between the two writes cannot leave a resolved entry without its
// code.
func (s *PgStore) UpdatePending(ctx context.Context, entry domain.PendingEntry) error {
	var resolvedBy any
	if entry.ResolvedBy != "" {
		resolvedBy = entry.ResolvedBy
	}
	var resolvedValue any
	if entry.ResolvedValue != nil {
		resolvedValue = *entry.ResolvedValue
	}
	return s.conn.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(
			ctx,
			`UPDATE pending_entries
			 SET status = $2, resolved_by = $3, resolved_value = $4, updated_at = $5
			 WHERE id = $1`,
			entry.ID, entry.Status, resolvedBy, resolvedValue, entry.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update pending entry: %w", err)
		}
		if entry.Status == domain.PendingResolved && entry.ResolvedValue != nil {
			// Promote the resolution so future lookups hit the code.
			_, err = tx.Exec(
				ctx,
				`INSERT INTO dimension_codes (id, organization_id, dimension_type, code)
				 VALUES ($1, $2, $3, $4)
				 ON CONFLICT (organization_id, dimension_type, code) DO NOTHING`,
				*entry.ResolvedValue, entry.OrganizationID, entry.Type, entry.Code,
			)
			if err != nil {
				return fmt.Errorf("failed to promote resolved code: %w", err)
			}
		}
		return nil
	})
}

func scanPending(row pgx.Row) (domain.PendingEntry, error) {
	var entry domain.PendingEntry
	var resolvedBy *string
	var resolvedValue *uuid.UUID
	if err := row.Scan(
		&entry.ID, &entry.OrganizationID, &entry.Type, &entry.Code, &entry.Status,
		&resolvedBy, &resolvedValue, &entry.CreatedAt, &entry.UpdatedAt,
	); err != nil {
		return domain.PendingEntry{}, fmt.Errorf("failed to scan pending entry: %w", err)
	}
	if resolvedBy != nil {
		entry.ResolvedBy = *resolvedBy
	}
	entry.ResolvedValue = resolvedValue
	return entry, nil
}
