package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PendingStatus is the review state of an unresolved dimension code.
type PendingStatus string

const (
	PendingOpen     PendingStatus = "pending"
	PendingResolved PendingStatus = "resolved"
	PendingRejected PendingStatus = "rejected"
)

// PendingEntry is the review-queue record created the first time an
// unknown dimension code is seen. One entry exists per
// (organization, type, code); it is mutated only through Resolve or
// Reject, performed by an external reviewer, never by the pipeline.
type PendingEntry struct {
	ID             uuid.UUID     `json:"id"`
	OrganizationID uuid.UUID     `json:"organization_id"`
	Type           DimensionType `json:"type"`
	Code           string        `json:"code"`
	Status         PendingStatus `json:"status"`
	ResolvedBy     string        `json:"resolved_by,omitempty"`
	ResolvedValue  *uuid.UUID    `json:"resolved_value,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// NewPendingEntry opens a review entry for an unknown code.
func NewPendingEntry(organizationID uuid.UUID, typ DimensionType, code string) PendingEntry {
	now := time.Now()
	return PendingEntry{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		Type:           typ,
		Code:           code,
		Status:         PendingOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Resolve marks the entry resolved to a dimension id. Only open
// entries can be resolved.
func (p PendingEntry) Resolve(resolvedValue uuid.UUID, actor string) (PendingEntry, error) {
	if p.Status != PendingOpen {
		return p, fmt.Errorf("pending entry %s is %s, not open for resolution", p.ID, p.Status)
	}
	p.Status = PendingResolved
	p.ResolvedValue = &resolvedValue
	p.ResolvedBy = actor
	p.UpdatedAt = time.Now()
	return p, nil
}

// Reject marks the entry rejected. Only open entries can be rejected.
func (p PendingEntry) Reject(actor string) (PendingEntry, error) {
	if p.Status != PendingOpen {
		return p, fmt.Errorf("pending entry %s is %s, not open for rejection", p.ID, p.Status)
	}
	p.Status = PendingRejected
	p.ResolvedBy = actor
	p.UpdatedAt = time.Now()
	return p, nil
}
