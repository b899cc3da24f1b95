package confirmations

import (
	"context"

	"github.com/google/uuid"

	"github.com/dealdesk/dealdesk-backend/pkg/db/models"
)

// Repository persists confirmation batons. Like snapshots, the only write is
// an atomic create-if-absent on (subject_id, snapshot_hash).
type Repository interface {
	CreateIfAbsent(ctx context.Context, conf *models.Confirmation) (created bool, existing *models.Confirmation, err error)
	FindBySubjectAndHash(ctx context.Context, subjectID uuid.UUID, snapshotHash string) (*models.Confirmation, error)
	ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]models.Confirmation, error)
}
