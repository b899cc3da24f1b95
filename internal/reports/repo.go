package reports

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dealdesk/dealdesk-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a reports repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, report *models.Report) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *repository) Update(ctx context.Context, report *models.Report) error {
	return r.db.WithContext(ctx).
		Model(&models.Report{}).
		Where("id = ?", report.ID).
		Updates(map[string]any{
			"booking_id":  report.BookingID,
			"adjustments": report.Adjustments,
			"variances":   report.Variances,
			"notes":       report.Notes,
			"status":      report.Status,
		}).Error
}

func (r *repository) FindBySubject(ctx context.Context, subjectID uuid.UUID) (*models.Report, error) {
	var report models.Report
	err := r.db.WithContext(ctx).Where("subject_id = ?", subjectID).First(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}
