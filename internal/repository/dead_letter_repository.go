package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/feedyard/feedlot-etl/internal/db"
)

type deadLetterRepository struct {
	conn *db.Connection
}

// NewDeadLetterRepository wires the dead-letter log backed by pgxpool.
func NewDeadLetterRepository(conn *db.Connection) DeadLetterRepository {
	return &deadLetterRepository{conn: conn}
}

func (r *deadLetterRepository) Record(ctx context.Context, fileID uuid.UUID, organizationID uuid.UUID, reason string, rows int) error {
	ctx, cancel := r.conn.QueryContext(ctx)
	defer cancel()

	_, err := r.conn.Pool.Exec(
		ctx,
		`INSERT INTO dead_letters (file_id, organization_id, reason, row_count)
		 VALUES ($1, $2, $3, $4)`,
		fileID, organizationID, reason, rows,
	)
	if err != nil {
		return fmt.Errorf("failed to record dead letter: %w", err)
	}
	return nil
}
