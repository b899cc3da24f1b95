package confirmations

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

// NewRepository builds a confirmations repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateIfAbsent(ctx context.Context, conf *models.Confirmation) (bool, *models.Confirmation, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "subject_id"}, {Name: "snapshot_hash"}},
			DoNothing: true,
		}).
		Create(conf)
	if res.Error != nil {
		return false, nil, res.Error
	}
	if res.RowsAffected == 1 {
		return true, conf, nil
	}

	existing, err := r.FindBySubjectAndHash(ctx, conf.SubjectID, conf.SnapshotHash)
	if err != nil {
		return false, nil, err
	}
	return false, existing, nil
}

func (r *repository) FindBySubjectAndHash(ctx context.Context, subjectID uuid.UUID, snapshotHash string) (*models.Confirmation, error) {
	var conf models.Confirmation
	err := r.db.WithContext(ctx).
		Where("subject_id = ? AND snapshot_hash = ?", subjectID, snapshotHash).
		First(&conf).Error
	if err != nil {
		return nil, err
	}
	return &conf, nil
}

func (r *repository) ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]models.Confirmation, error) {
	var confs []models.Confirmation
	err := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("at DESC").
		Find(&confs).Error
	if err != nil {
		return nil, err
	}
	return confs, nil
}
