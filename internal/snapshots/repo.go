package snapshots

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

// NewRepository builds a snapshots repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateIfAbsent(ctx context.Context, snap *models.Snapshot) (bool, *models.Snapshot, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "subject_id"}, {Name: "hash"}},
			DoNothing: true,
		}).
		Create(snap)
	if res.Error != nil {
		return false, nil, res.Error
	}
	if res.RowsAffected == 1 {
		return true, snap, nil
	}

	// Lost the insert: either the row predates us or a concurrent identical
	// write landed first. Both read back as the same record.
	existing, err := r.FindBySubjectAndHash(ctx, snap.SubjectID, snap.Hash)
	if err != nil {
		return false, nil, err
	}
	return false, existing, nil
}

func (r *repository) FindBySubjectAndHash(ctx context.Context, subjectID uuid.UUID, hash string) (*models.Snapshot, error) {
	var snap models.Snapshot
	err := r.db.WithContext(ctx).
		Where("subject_id = ? AND hash = ?", subjectID, hash).
		First(&snap).Error
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (r *repository) ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]models.Snapshot, error) {
	var snaps []models.Snapshot
	err := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Find(&snaps).Error
	if err != nil {
		return nil, err
	}
	return snaps, nil
}
