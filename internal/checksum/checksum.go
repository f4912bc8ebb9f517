// Package checksum fingerprints uploaded content and gates duplicate
// re-uploads.
package checksum

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"github.com/feedyard/feedlot-etl/internal/domain"
	"github.com/feedyard/feedlot-etl/internal/repository"
)

// Sum returns the content-addressed fingerprint of a file payload.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Force is an explicit reprocessing override. Reason and Actor are
// mandatory and land in the audit trail.
type Force struct {
	Enabled bool
	Reason  string
	Actor   string
}

// Gate decides whether an upload may be processed given its checksum
// history within the organization.
type Gate struct {
	files repository.FileStateRepository
	audit repository.AuditRepository
}

// NewGate wires the duplicate gate.
func NewGate(files repository.FileStateRepository, audit repository.AuditRepository) *Gate {
	return &Gate{files: files, audit: audit}
}

// Check returns the prior file record for identical content, if any.
// Reprocessing a known checksum is allowed only when the prior record
// is failed or cancelled, or when the caller forces with a reason and
// actor; anything else is a DuplicateFileError. Forced reprocesses
// are audited before the gate opens.
func (g *Gate) Check(ctx context.Context, organizationID uuid.UUID, fileName, sum string, force Force) (*domain.FileProcessingState, error) {
	prior, err := g.files.GetByChecksum(ctx, organizationID, sum)
	if err != nil {
		return nil, fmt.Errorf("checksum lookup: %w", err)
	}
	if prior == nil {
		return nil, nil
	}

	switch prior.State {
	case domain.StateFailed, domain.StateCancelled:
		return prior, nil
	}

	if !force.Enabled {
		return nil, &domain.DuplicateFileError{FileName: fileName, Checksum: sum, State: prior.State}
	}
	if force.Reason == "" || force.Actor == "" {
		return nil, fmt.Errorf("forced reprocessing requires a reason and an actor")
	}

	if err := g.audit.LogEvent(ctx, "warn", "forced_reprocess",
		fmt.Sprintf("forced reprocessing of %s", fileName),
		map[string]any{
			"file_id":  prior.ID.String(),
			"checksum": sum,
			"state":    string(prior.State),
			"reason":   force.Reason,
			"actor":    force.Actor,
		},
	); err != nil {
		return nil, fmt.Errorf("audit forced reprocess: %w", err)
	}
	return prior, nil
}
