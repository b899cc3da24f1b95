package bookings

import (
	"context"

	"github.com/google/uuid"

	"github.com/dealdesk/dealdesk-backend/pkg/db/models"
)

// Repository persists bookings. Create must surface a unique violation on the
// booking number so a replayed derivation can resolve to the existing row.
type Repository interface {
	Create(ctx context.Context, booking *models.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	FindByNumber(ctx context.Context, number string) (*models.Booking, error)
	ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]models.Booking, error)
	// UpdateMutable writes status and schedule only; all other columns are
	// frozen at derivation.
	UpdateMutable(ctx context.Context, booking *models.Booking) error
}
