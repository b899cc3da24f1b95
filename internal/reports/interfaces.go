package reports

import (
	"context"

	"github.com/google/uuid"

	"github.com/dealdesk/dealdesk-backend/pkg/db/models"
)

// Repository persists execution reports, one row per subject.
type Repository interface {
	Create(ctx context.Context, report *models.Report) error
	Update(ctx context.Context, report *models.Report) error
	FindBySubject(ctx context.Context, subjectID uuid.UUID) (*models.Report, error)
}
