package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/feedyard/feedlot-etl/internal/db"
)

type auditRepository struct {
	conn *db.Connection
}

// NewAuditRepository wires the audit event log backed by pgxpool.
func NewAuditRepository(conn *db.Connection) AuditRepository {
	return &auditRepository{conn: conn}
}

func (r *auditRepository) LogEvent(ctx context.Context, level, action, message string, details map[string]any) error {
	var payload []byte
	if details != nil {
		var err error
		payload, err = json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to marshal audit details: %w", err)
		}
	}
	ctx, cancel := r.conn.QueryContext(ctx)
	defer cancel()

	_, err := r.conn.Pool.Exec(
		ctx,
		`INSERT INTO audit_events (level, action, message, details)
		 VALUES ($1, $2, $3, $4)`,
		level, action, message, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}
