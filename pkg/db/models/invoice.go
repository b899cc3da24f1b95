package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dealdesk/dealdesk-backend/pkg/enums"
)

// Invoice is entirely derived from a snapshot's price lock plus report
// adjustments; it is never entered by hand. Recomputing from the same inputs
// always reproduces the same row, so (subject_id, snapshot_hash) is unique.
type Invoice struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SubjectID        uuid.UUID       `gorm:"column:subject_id;type:uuid;not null;uniqueIndex:idx_invoices_subject_hash"`
	SnapshotHash     string          `gorm:"column:snapshot_hash;size:64;not null;uniqueIndex:idx_invoices_subject_hash"`
	BookingID        *uuid.UUID      `gorm:"column:booking_id;type:uuid;index:idx_invoices_booking"`
	Currency         enums.Currency  `gorm:"column:currency;size:3;not null"`
	Subtotal         decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null"`
	AdjustmentsTotal decimal.Decimal `gorm:"column:adjustments_total;type:numeric(12,2);not null"`
	Tax              decimal.Decimal `gorm:"column:tax;type:numeric(12,2);not null"`
	Total            decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null"`
	At               time.Time       `gorm:"column:at;not null;index:idx_invoices_at"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// TableName overrides the default pluralization.
func (Invoice) TableName() string {
	return "invoices"
}
