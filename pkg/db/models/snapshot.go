package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dealdesk/dealdesk-backend/pkg/enums"
)

// Snapshot is the immutable, content-addressed record of a sealed commitment.
// Payload holds the canonical serialized commitment as text (not jsonb, which
// would re-normalize the bytes and break hash re-verification); Hash is the
// SHA-256 of exactly those bytes. Rows are created once and never updated or
// deleted.
type Snapshot struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SubjectID uuid.UUID       `gorm:"column:subject_id;type:uuid;not null;uniqueIndex:idx_snapshots_subject_hash"`
	Hash      string          `gorm:"column:hash;size:64;not null;uniqueIndex:idx_snapshots_subject_hash"`
	Number    string          `gorm:"column:number;not null"`
	Stage     enums.Stage     `gorm:"column:stage;not null"`
	Currency  enums.Currency  `gorm:"column:currency;size:3;not null"`
	Payload   string          `gorm:"column:payload;type:text;not null"`
	Version   int             `gorm:"column:version;not null;default:1"`
	At        time.Time       `gorm:"column:at;not null;index:idx_snapshots_at"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// TableName overrides the default pluralization.
func (Snapshot) TableName() string {
	return "snapshots"
}
