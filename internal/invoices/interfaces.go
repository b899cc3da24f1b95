package invoices

import (
	"context"

	"github.com/google/uuid"

	"github.com/dealdesk/dealdesk-backend/pkg/db/models"
)

// Filter narrows invoice listings. Zero values mean no constraint.
type Filter struct {
	SubjectID uuid.UUID
	BookingID *uuid.UUID
}

// Repository persists invoices. Like snapshots and confirmations, the only
// write is an atomic create-if-absent on (subject_id, snapshot_hash).
type Repository interface {
	CreateIfAbsent(ctx context.Context, invoice *models.Invoice) (created bool, existing *models.Invoice, err error)
	FindBySubjectAndHash(ctx context.Context, subjectID uuid.UUID, snapshotHash string) (*models.Invoice, error)
	// List returns matching invoices in storage order; callers sort.
	List(ctx context.Context, filter Filter) ([]models.Invoice, error)
}
