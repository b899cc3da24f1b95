package bookings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dealdesk/dealdesk-backend/internal/pricelock"
	"github.com/dealdesk/dealdesk-backend/internal/snapshots"
	"github.com/dealdesk/dealdesk-backend/pkg/config"
	"github.com/dealdesk/dealdesk-backend/pkg/db"
	"github.com/dealdesk/dealdesk-backend/pkg/db/models"
	"github.com/dealdesk/dealdesk-backend/pkg/enums"
	pkgerrors "github.com/dealdesk/dealdesk-backend/pkg/errors"
)

// summaryLineCap limits how many leading line items the frozen summary keeps.
const summaryLineCap = 3

// Service derives bookings from snapshots and manages their mutable fields.
// Derivation is deterministic for the same snapshot and the same clock value;
// the clock is always injected.
type Service interface {
	Derive(ctx context.Context, input DeriveInput, now time.Time) (*models.Booking, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]models.Booking, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Booking, error)
}

type service struct {
	repo  Repository
	snaps snapshots.Service
	cfg   config.BookingConfig
}

// NewService wires a bookings service.
func NewService(repo Repository, snaps snapshots.Service, cfg config.BookingConfig) (Service, error) {
	if repo == nil || snaps == nil {
		return nil, fmt.Errorf("bookings service requires repo and snapshots service")
	}
	return &service{repo: repo, snaps: snaps, cfg: cfg}, nil
}

func (s *service) Derive(ctx context.Context, input DeriveInput, now time.Time) (*models.Booking, error) {
	if input.SubjectID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subject id is required")
	}

	snap, err := s.resolveSnapshot(ctx, input)
	if err != nil {
		return nil, err
	}

	lock, err := pricelock.Extract(snap)
	if err != nil {
		return nil, err
	}

	summary, err := buildSummary(snap, lock)
	if err != nil {
		return nil, err
	}
	rawSummary, err := json.Marshal(summary)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode commercial summary")
	}

	start, end, err := s.scheduleWindow(input, now)
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		ID:                uuid.New(),
		SubjectID:         input.SubjectID,
		SnapshotHash:      snap.Hash,
		Number:            bookingNumber(snap.Number, now),
		Status:            enums.BookingStatusTentative,
		ScheduleStart:     start,
		ScheduleEnd:       end,
		ResourceID:        input.ResourceID,
		Capacity:          input.Capacity,
		Notes:             input.Notes,
		CommercialSummary: rawSummary,
	}

	if err := s.repo.Create(ctx, booking); err != nil {
		if db.IsUniqueViolation(err, "") {
			// Replay with the same clock lands on the same number; resolve to
			// the row the first derivation wrote.
			existing, findErr := s.repo.FindByNumber(ctx, booking.Number)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load existing booking")
			}
			return existing, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist booking")
	}
	return booking, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found").
				WithDetails(map[string]any{"booking_id": id.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
	}
	return booking, nil
}

func (s *service) ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]models.Booking, error) {
	if subjectID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subject id is required")
	}
	bookings, err := s.repo.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bookings")
	}
	return bookings, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Booking, error) {
	booking, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Status != nil {
		if err := assertStatusChange(booking.Status, *input.Status); err != nil {
			return nil, err
		}
		booking.Status = *input.Status
	}
	if input.StartAt != nil {
		booking.ScheduleStart = input.StartAt.UTC()
	}
	if input.EndAt != nil {
		booking.ScheduleEnd = input.EndAt.UTC()
	}
	if !booking.ScheduleEnd.After(booking.ScheduleStart) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "schedule end must be after schedule start").
			WithDetails(map[string]any{"field": "schedule"})
	}

	if err := s.repo.UpdateMutable(ctx, booking); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update booking")
	}
	return booking, nil
}

func (s *service) resolveSnapshot(ctx context.Context, input DeriveInput) (*models.Snapshot, error) {
	if strings.TrimSpace(input.SnapshotHash) == "" {
		return s.snaps.Newest(ctx, input.SubjectID)
	}
	return s.snaps.Get(ctx, input.SubjectID, input.SnapshotHash)
}

func (s *service) scheduleWindow(input DeriveInput, now time.Time) (time.Time, time.Time, error) {
	switch {
	case input.StartAt == nil && input.EndAt == nil:
		start := now.UTC().Add(s.cfg.DefaultWindowLead)
		return start, start.Add(s.cfg.DefaultWindowDuration), nil
	case input.StartAt == nil || input.EndAt == nil:
		return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation,
			"schedule hint must provide both start_at and end_at").
			WithDetails(map[string]any{"field": "schedule"})
	}
	start, end := input.StartAt.UTC(), input.EndAt.UTC()
	if !end.After(start) {
		return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation,
			"schedule end must be after schedule start").
			WithDetails(map[string]any{"field": "schedule"})
	}
	return start, end, nil
}

// bookingNumber derives a human-readable number from the snapshot number plus
// a timestamp suffix, so repeated derivations at distinct times stay unique.
func bookingNumber(snapshotNumber string, now time.Time) string {
	return fmt.Sprintf("%s-BK%s", snapshotNumber, now.UTC().Format("20060102T150405"))
}

func buildSummary(snap *models.Snapshot, lock *pricelock.Lock) (*CommercialSummary, error) {
	tree, err := snapshots.ParsePayload(snap)
	if err != nil {
		return nil, err
	}

	summary := &CommercialSummary{}
	if err := pricelock.Propagate(lock, summary); err != nil {
		return nil, err
	}

	totals, ok := tree["totals"].(map[string]any)
	if !ok {
		return nil, corrupt(snap, "totals")
	}
	for field, dst := range map[string]*decimal.Decimal{
		"subtotal":  &summary.Totals.Subtotal,
		"tax_total": &summary.Totals.TaxTotal,
		"total":     &summary.Totals.Total,
	} {
		value, err := requireDecimal(totals, field)
		if err != nil {
			return nil, corrupt(snap, "totals."+field)
		}
		*dst = value
	}

	lines, ok := tree["lines"].([]any)
	if !ok || len(lines) == 0 {
		return nil, corrupt(snap, "lines")
	}
	for i, raw := range lines {
		if i == summaryLineCap {
			break
		}
		line, ok := raw.(map[string]any)
		if !ok {
			return nil, corrupt(snap, fmt.Sprintf("lines[%d]", i))
		}
		entry := SummaryLine{}
		if sku, ok := line["sku"].(string); ok {
			entry.SKU = &sku
		}
		if name, ok := line["item_name"].(string); ok {
			entry.ItemName = name
		}
		qty, err := requireDecimal(line, "qty")
		if err != nil {
			return nil, corrupt(snap, fmt.Sprintf("lines[%d].qty", i))
		}
		entry.Qty = qty
		price, err := requireDecimal(line, "unit_price")
		if err != nil {
			return nil, corrupt(snap, fmt.Sprintf("lines[%d].unit_price", i))
		}
		entry.UnitPrice = price
		summary.Lines = append(summary.Lines, entry)
	}

	return summary, nil
}

func requireDecimal(m map[string]any, key string) (decimal.Decimal, error) {
	num, ok := m[key].(json.Number)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("field %s is not numeric", key)
	}
	return decimal.NewFromString(num.String())
}

func corrupt(snap *models.Snapshot, field string) error {
	return pkgerrors.New(pkgerrors.CodeIntegrity, "snapshot payload is missing field "+field).
		WithDetails(map[string]any{"subject_id": snap.SubjectID.String(), "hash": snap.Hash})
}

// assertStatusChange guards the booking status machine: tentative bookings
// confirm or cancel, confirmed bookings complete or cancel, completed and
// canceled bookings never move again.
func assertStatusChange(from, to enums.BookingStatus) error {
	if !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid booking status %q", to)).
			WithDetails(map[string]any{"field": "status"})
	}
	if from == to {
		return nil
	}
	allowed := map[enums.BookingStatus][]enums.BookingStatus{
		enums.BookingStatusTentative: {enums.BookingStatusConfirmed, enums.BookingStatusCanceled},
		enums.BookingStatusConfirmed: {enums.BookingStatusCompleted, enums.BookingStatusCanceled},
	}
	for _, next := range allowed[from] {
		if next == to {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("booking status cannot move from %s to %s", from, to)).
		WithDetails(map[string]any{"from": from.String(), "to": to.String()})
}
