package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dealdesk/dealdesk-backend/pkg/enums"
)

// Booking is derived from a snapshot. Status and the schedule window are the
// only mutable fields; CommercialSummary carries the lock and totals verbatim
// from the snapshot and is frozen at creation.
type Booking struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SubjectID         uuid.UUID           `gorm:"column:subject_id;type:uuid;not null;index:idx_bookings_subject"`
	SnapshotHash      string              `gorm:"column:snapshot_hash;size:64;not null"`
	Number            string              `gorm:"column:number;not null;uniqueIndex:idx_bookings_number"`
	Status            enums.BookingStatus `gorm:"column:status;not null"`
	ScheduleStart     time.Time           `gorm:"column:schedule_start;not null"`
	ScheduleEnd       time.Time           `gorm:"column:schedule_end;not null"`
	ResourceID        *uuid.UUID          `gorm:"column:resource_id;type:uuid"`
	Capacity          *int                `gorm:"column:capacity"`
	Notes             *string             `gorm:"column:notes"`
	CommercialSummary json.RawMessage     `gorm:"column:commercial_summary;not null"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides the default pluralization.
func (Booking) TableName() string {
	return "bookings"
}
