package models

import (
	"time"

	"github.com/google/uuid"
)

// Confirmation is a signed approval baton chained to a snapshot hash. It
// references its snapshot but never modifies it; one row per approval event,
// immutable once written.
type Confirmation struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SubjectID    uuid.UUID `gorm:"column:subject_id;type:uuid;not null;uniqueIndex:idx_confirmations_subject_hash"`
	SnapshotHash string    `gorm:"column:snapshot_hash;size:64;not null;uniqueIndex:idx_confirmations_subject_hash"`
	ApprovedBy   string    `gorm:"column:approved_by;not null"`
	Signature    string    `gorm:"column:signature;size:64;not null"`
	StorageRef   string    `gorm:"column:storage_ref;not null"`
	Version      int       `gorm:"column:version;not null;default:1"`
	At           time.Time `gorm:"column:at;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName overrides the default pluralization.
func (Confirmation) TableName() string {
	return "confirmations"
}
