package snapshots

import (
	"context"

	"github.com/google/uuid"

	"github.com/dealdesk/dealdesk-backend/pkg/db/models"
)

// Repository defines persistence operations for snapshot rows. CreateIfAbsent
// is the only write: it must be atomic against concurrent identical writes
// and must never overwrite an existing row.
type Repository interface {
	// CreateIfAbsent writes snap unless a row with the same
	// (subject_id, hash) already exists. It returns created=false and the
	// pre-existing row when the key is taken, including when a concurrent
	// writer won the race.
	CreateIfAbsent(ctx context.Context, snap *models.Snapshot) (created bool, existing *models.Snapshot, err error)
	FindBySubjectAndHash(ctx context.Context, subjectID uuid.UUID, hash string) (*models.Snapshot, error)
	// ListBySubject returns all snapshots for the subject in storage order;
	// callers are responsible for sorting.
	ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]models.Snapshot, error)
}
