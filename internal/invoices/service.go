package invoices

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dealdesk/dealdesk-backend/internal/pricelock"
	"github.com/dealdesk/dealdesk-backend/internal/reports"
	"github.com/dealdesk/dealdesk-backend/internal/snapshots"
	"github.com/dealdesk/dealdesk-backend/pkg/db/models"
	pkgerrors "github.com/dealdesk/dealdesk-backend/pkg/errors"
	"github.com/dealdesk/dealdesk-backend/pkg/pagination"
)

// IssueInput requests an invoice for a subject. SnapshotHash may be empty to
// bill against the newest snapshot; Quantity defaults to the first line's
// quantity from the snapshot.
type IssueInput struct {
	SubjectID    uuid.UUID
	SnapshotHash string
	Quantity     *decimal.Decimal
}

// Page wraps one page of invoices plus the next page cursor.
type Page struct {
	Items      []models.Invoice `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// Service issues and lists invoices. Issuing recomputes amounts from the
// price lock and the subject's report adjustments; re-issuing against the
// same snapshot returns the stored invoice unchanged.
type Service interface {
	Issue(ctx context.Context, input IssueInput, now time.Time) (*models.Invoice, error)
	List(ctx context.Context, filter Filter, params pagination.Params) (*Page, error)
}

type service struct {
	repo    Repository
	snaps   snapshots.Service
	reports reports.Service
}

// NewService wires an invoices service.
func NewService(repo Repository, snaps snapshots.Service, reportSvc reports.Service) (Service, error) {
	if repo == nil || snaps == nil || reportSvc == nil {
		return nil, fmt.Errorf("invoices service requires repo, snapshots and reports services")
	}
	return &service{repo: repo, snaps: snaps, reports: reportSvc}, nil
}

func (s *service) Issue(ctx context.Context, input IssueInput, now time.Time) (*models.Invoice, error) {
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

	quantity, err := s.resolveQuantity(input, snap)
	if err != nil {
		return nil, err
	}

	adjustments, bookingID, err := s.loadReportInputs(ctx, input.SubjectID)
	if err != nil {
		return nil, err
	}

	amounts, err := Compute(lock, quantity, adjustments)
	if err != nil {
		return nil, err
	}

	invoice := &models.Invoice{
		ID:               uuid.New(),
		SubjectID:        input.SubjectID,
		SnapshotHash:     snap.Hash,
		BookingID:        bookingID,
		Currency:         lock.Currency,
		Subtotal:         amounts.Subtotal,
		AdjustmentsTotal: amounts.AdjustmentsTotal,
		Tax:              amounts.Tax,
		Total:            amounts.Total,
		At:               now.UTC(),
	}

	created, existing, err := s.repo.CreateIfAbsent(ctx, invoice)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist invoice")
	}
	if created {
		return invoice, nil
	}
	// The snapshot was already billed; the stored invoice stands even if the
	// report was amended since issuance.
	return existing, nil
}

func (s *service) List(ctx context.Context, filter Filter, params pagination.Params) (*Page, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	invoices, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invoices")
	}

	// Storage iteration order is never trusted; ordering is imposed here.
	sort.SliceStable(invoices, func(i, j int) bool {
		if !invoices[i].At.Equal(invoices[j].At) {
			return invoices[i].At.After(invoices[j].At)
		}
		return invoices[i].SnapshotHash > invoices[j].SnapshotHash
	})

	if cursor != nil {
		invoices = afterCursor(invoices, *cursor)
	}

	limit := pagination.NormalizeLimit(params.Limit)
	page := &Page{Items: invoices}
	if len(invoices) > limit {
		page.Items = invoices[:limit]
		last := page.Items[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{At: last.At, Hash: last.SnapshotHash})
	}
	return page, nil
}

func (s *service) resolveSnapshot(ctx context.Context, input IssueInput) (*models.Snapshot, error) {
	if strings.TrimSpace(input.SnapshotHash) == "" {
		return s.snaps.Newest(ctx, input.SubjectID)
	}
	return s.snaps.Get(ctx, input.SubjectID, input.SnapshotHash)
}

func (s *service) resolveQuantity(input IssueInput, snap *models.Snapshot) (decimal.Decimal, error) {
	if input.Quantity != nil {
		return *input.Quantity, nil
	}

	tree, err := snapshots.ParsePayload(snap)
	if err != nil {
		return decimal.Decimal{}, err
	}
	lines, ok := tree["lines"].([]any)
	if !ok || len(lines) == 0 {
		return decimal.Decimal{}, corruptQuantity(snap)
	}
	first, ok := lines[0].(map[string]any)
	if !ok {
		return decimal.Decimal{}, corruptQuantity(snap)
	}
	num, ok := first["qty"].(json.Number)
	if !ok {
		return decimal.Decimal{}, corruptQuantity(snap)
	}
	qty, err := decimal.NewFromString(num.String())
	if err != nil {
		return decimal.Decimal{}, corruptQuantity(snap)
	}
	return qty, nil
}

// loadReportInputs fetches the subject's report adjustments; a subject with
// no report bills with zero adjustments.
func (s *service) loadReportInputs(ctx context.Context, subjectID uuid.UUID) ([]reports.Adjustment, *uuid.UUID, error) {
	report, err := s.reports.Get(ctx, subjectID)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	adjustments, err := reports.ParseAdjustments(report)
	if err != nil {
		return nil, nil, err
	}
	return adjustments, report.BookingID, nil
}

func afterCursor(invoices []models.Invoice, cursor pagination.Cursor) []models.Invoice {
	for i, invoice := range invoices {
		if invoice.At.Before(cursor.At) ||
			(invoice.At.Equal(cursor.At) && invoice.SnapshotHash < cursor.Hash) {
			return invoices[i:]
		}
	}
	return nil
}

func corruptQuantity(snap *models.Snapshot) error {
	return pkgerrors.New(pkgerrors.CodeIntegrity, "snapshot payload has no billable quantity").
		WithDetails(map[string]any{"subject_id": snap.SubjectID.String(), "hash": snap.Hash})
}
