package invoices

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dealdesk/dealdesk-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an invoices repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateIfAbsent(ctx context.Context, invoice *models.Invoice) (bool, *models.Invoice, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "subject_id"}, {Name: "snapshot_hash"}},
			DoNothing: true,
		}).
		Create(invoice)
	if res.Error != nil {
		return false, nil, res.Error
	}
	if res.RowsAffected == 1 {
		return true, invoice, nil
	}

	existing, err := r.FindBySubjectAndHash(ctx, invoice.SubjectID, invoice.SnapshotHash)
	if err != nil {
		return false, nil, err
	}
	return false, existing, nil
}

func (r *repository) FindBySubjectAndHash(ctx context.Context, subjectID uuid.UUID, snapshotHash string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Where("subject_id = ? AND snapshot_hash = ?", subjectID, snapshotHash).
		First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) List(ctx context.Context, filter Filter) ([]models.Invoice, error) {
	query := r.db.WithContext(ctx).Model(&models.Invoice{})
	if filter.SubjectID != uuid.Nil {
		query = query.Where("subject_id = ?", filter.SubjectID)
	}
	if filter.BookingID != nil {
		query = query.Where("booking_id = ?", *filter.BookingID)
	}

	var invoices []models.Invoice
	if err := query.Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}
