package bookings

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dealdesk/dealdesk-backend/internal/pricelock"
	"github.com/dealdesk/dealdesk-backend/pkg/db/models"
	"github.com/dealdesk/dealdesk-backend/pkg/enums"
	pkgerrors "github.com/dealdesk/dealdesk-backend/pkg/errors"
)

// DeriveInput requests a booking draft for a subject. SnapshotHash may be
// empty to derive from the newest snapshot; StartAt/EndAt override the
// default schedule window.
type DeriveInput struct {
	SubjectID    uuid.UUID
	SnapshotHash string
	StartAt      *time.Time
	EndAt        *time.Time
	ResourceID   *uuid.UUID
	Capacity     *int
	Notes        *string
}

// UpdateInput mutates the only mutable booking fields: status and schedule.
type UpdateInput struct {
	Status  *enums.BookingStatus
	StartAt *time.Time
	EndAt   *time.Time
}

// SummaryLine is one line item carried read-only into the booking summary.
type SummaryLine struct {
	SKU       *string         `json:"sku"`
	ItemName  string          `json:"item_name"`
	Qty       decimal.Decimal `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// SummaryTotals mirrors the snapshot totals byte-for-byte.
type SummaryTotals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	TaxTotal decimal.Decimal `json:"tax_total"`
	Total    decimal.Decimal `json:"total"`
}

// CommercialSummary is the frozen commercial view embedded in a booking:
// the price lock plus totals and leading line items from the snapshot. It is
// written once at derivation and never updated.
type CommercialSummary struct {
	Lock   *pricelock.Lock `json:"lock"`
	Totals SummaryTotals   `json:"totals"`
	Lines  []SummaryLine   `json:"lines"`
}

// CurrentLock implements pricelock.Target.
func (s *CommercialSummary) CurrentLock() *pricelock.Lock {
	return s.Lock
}

// StampLock implements pricelock.Target.
func (s *CommercialSummary) StampLock(lock pricelock.Lock) {
	s.Lock = &lock
}

// ParseSummary decodes a booking's frozen commercial summary.
func ParseSummary(booking *models.Booking) (*CommercialSummary, error) {
	var summary CommercialSummary
	if err := json.Unmarshal(booking.CommercialSummary, &summary); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeIntegrity, err, "stored commercial summary cannot be parsed").
			WithDetails(map[string]any{"booking_id": booking.ID.String()})
	}
	return &summary, nil
}
