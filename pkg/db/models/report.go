package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dealdesk/dealdesk-backend/pkg/enums"
)

// Report is the append-style execution record for a subject. Its adjustments
// feed invoice computation but never alter the snapshot or the price lock.
// One row per subject, updated in place on resubmission.
type Report struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	SubjectID   uuid.UUID          `gorm:"column:subject_id;type:uuid;not null;uniqueIndex:idx_reports_subject"`
	BookingID   *uuid.UUID         `gorm:"column:booking_id;type:uuid"`
	Adjustments json.RawMessage    `gorm:"column:adjustments;not null"`
	Variances   json.RawMessage    `gorm:"column:variances"`
	Notes       *string            `gorm:"column:notes"`
	Status      enums.ReportStatus `gorm:"column:status;not null"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides the default pluralization.
func (Report) TableName() string {
	return "reports"
}
