package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/feedyard/feedlot-etl/internal/db"
	"github.com/feedyard/feedlot-etl/internal/domain"
)

type stagingRepository struct {
	conn *db.Connection
}

// NewStagingRepository wires the staging/fact writer backed by pgxpool.
func NewStagingRepository(conn *db.Connection) StagingRepository {
	return &stagingRepository{conn: conn}
}

// upsertSQL inserts one processed record, overwriting on natural-key
// conflict. xmax = 0 distinguishes a fresh insert from an update so
// the outcome can report both counts from a single statement.
const upsertSQL = `
INSERT INTO staging_records
 (organization_id, natural_key, file_id, pipeline, row_number, reference_date,
  pen_code, diet_code, equipment_code, handler_code, shift,
  kg_planejado, kg_real, desvio_kg, desvio_perc,
  treatment_product, treatment_route, head_count,
  enrichment_status, suspicious, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, now())
ON CONFLICT (organization_id, natural_key) DO UPDATE SET
 file_id = EXCLUDED.file_id,
 row_number = EXCLUDED.row_number,
 reference_date = EXCLUDED.reference_date,
 pen_code = EXCLUDED.pen_code,
 diet_code = EXCLUDED.diet_code,
 equipment_code = EXCLUDED.equipment_code,
 handler_code = EXCLUDED.handler_code,
 shift = EXCLUDED.shift,
 kg_planejado = EXCLUDED.kg_planejado,
 kg_real = EXCLUDED.kg_real,
 desvio_kg = EXCLUDED.desvio_kg,
 desvio_perc = EXCLUDED.desvio_perc,
 treatment_product = EXCLUDED.treatment_product,
 treatment_route = EXCLUDED.treatment_route,
 head_count = EXCLUDED.head_count,
 enrichment_status = EXCLUDED.enrichment_status,
 suspicious = EXCLUDED.suspicious,
 updated_at = now()
RETURNING (xmax = 0) AS inserted`

func (r *stagingRepository) UpsertBatch(ctx context.Context, fileID uuid.UUID, records []domain.ProcessedRecord) (UpsertOutcome, error) {
	outcome := UpsertOutcome{}
	if len(records) == 0 {
		return outcome, nil
	}

	err := r.conn.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, record := range records {
			batch.Queue(upsertSQL,
				record.OrganizationID, record.NaturalKey, fileID, record.Pipeline,
				record.RowNumber, record.ReferenceDate,
				record.PenCode, nullString(record.DietCode), nullString(record.EquipmentCode),
				nullString(record.HandlerCode), record.Shift,
				record.PlannedKg, record.ActualKg, record.DeviationKg, record.DeviationPct,
				nullString(record.TreatmentProduct), nullString(record.TreatmentRoute), record.HeadCount,
				record.Enrichment, record.Suspicious,
			)
		}

		results := tx.SendBatch(ctx, batch)
		for _, record := range records {
			var inserted bool
			if err := results.QueryRow().Scan(&inserted); err != nil {
				outcome.Failed++
				outcome.Errors = append(outcome.Errors, domain.RowIssue{
					RowNumber: record.RowNumber,
					Message:   fmt.Sprintf("upsert failed: %v", err),
				})
				continue
			}
			if inserted {
				outcome.Inserted++
			} else {
				outcome.Updated++
			}
		}
		return results.Close()
	})
	if err != nil {
		return UpsertOutcome{}, &domain.StorageError{Op: "upsert batch", Transient: true, Err: err}
	}
	return outcome, nil
}

func (r *stagingRepository) DeleteByFile(ctx context.Context, fileID uuid.UUID) (int64, error) {
	ctx, cancel := r.conn.QueryContext(ctx)
	defer cancel()

	tag, err := r.conn.Pool.Exec(ctx, `DELETE FROM staging_records WHERE file_id = $1`, fileID)
	if err != nil {
		return 0, &domain.StorageError{Op: "staging delete", Transient: true, Err: err}
	}
	return tag.RowsAffected(), nil
}

func (r *stagingRepository) CountByFile(ctx context.Context, fileID uuid.UUID) (int64, error) {
	ctx, cancel := r.conn.QueryContext(ctx)
	defer cancel()

	var count int64
	err := r.conn.Pool.QueryRow(ctx, `SELECT count(*) FROM staging_records WHERE file_id = $1`, fileID).Scan(&count)
	if err != nil {
		return 0, &domain.StorageError{Op: "staging count", Transient: true, Err: err}
	}
	return count, nil
}
