package snapshots

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dealdesk/dealdesk-backend/internal/stages"
	"github.com/dealdesk/dealdesk-backend/pkg/canonical"
	"github.com/dealdesk/dealdesk-backend/pkg/db/models"
	"github.com/dealdesk/dealdesk-backend/pkg/enums"
	pkgerrors "github.com/dealdesk/dealdesk-backend/pkg/errors"
	"github.com/dealdesk/dealdesk-backend/pkg/pagination"
)

// Service seals commitments into immutable, content-addressed snapshots and
// reads them back. Finalize is idempotent on identical payloads; a snapshot
// row is never updated after creation.
type Service interface {
	Finalize(ctx context.Context, input FinalizeInput, now time.Time) (*models.Snapshot, error)
	Get(ctx context.Context, subjectID uuid.UUID, hash string) (*models.Snapshot, error)
	Newest(ctx context.Context, subjectID uuid.UUID) (*models.Snapshot, error)
	List(ctx context.Context, subjectID uuid.UUID, params pagination.Params) (*Page, error)
}

type service struct {
	repo Repository
}

// NewService wires a snapshots service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("snapshots repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Finalize(ctx context.Context, input FinalizeInput, now time.Time) (*models.Snapshot, error) {
	if err := validateFinalizeInput(input); err != nil {
		return nil, err
	}

	payload, err := canonical.Marshal(buildPayload(input))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "canonicalize commitment")
	}
	hash := canonical.Hash(payload)

	snap := &models.Snapshot{
		ID:        uuid.New(),
		SubjectID: input.SubjectID,
		Hash:      hash,
		Number:    input.Number,
		Stage:     input.Stage,
		Currency:  input.Currency,
		Payload:   string(payload),
		Version:   1,
		At:        now.UTC(),
	}

	created, existing, err := s.repo.CreateIfAbsent(ctx, snap)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist snapshot")
	}
	if created {
		return snap, nil
	}

	// Duplicate content: idempotent success, but re-verify the stored row
	// before handing it out.
	if err := VerifyIntegrity(existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *service) Get(ctx context.Context, subjectID uuid.UUID, hash string) (*models.Snapshot, error) {
	if subjectID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subject id is required")
	}
	if len(hash) != canonical.HashLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "snapshot hash must be 64 hex characters").
			WithDetails(map[string]any{"field": "hash"})
	}

	snap, err := s.repo.FindBySubjectAndHash(ctx, subjectID, hash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "snapshot not found").
				WithDetails(map[string]any{"subject_id": subjectID.String(), "hash": hash})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load snapshot")
	}
	if err := VerifyIntegrity(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *service) Newest(ctx context.Context, subjectID uuid.UUID) (*models.Snapshot, error) {
	if subjectID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subject id is required")
	}

	snaps, err := s.repo.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list snapshots")
	}
	if len(snaps) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no snapshot for subject").
			WithDetails(map[string]any{"subject_id": subjectID.String()})
	}

	SortNewestFirst(snaps)
	newest := snaps[0]
	if err := VerifyIntegrity(&newest); err != nil {
		return nil, err
	}
	return &newest, nil
}

func (s *service) List(ctx context.Context, subjectID uuid.UUID, params pagination.Params) (*Page, error) {
	if subjectID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subject id is required")
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	snaps, err := s.repo.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list snapshots")
	}

	// Storage iteration order is never trusted; ordering is imposed here.
	SortNewestFirst(snaps)

	if cursor != nil {
		snaps = afterCursor(snaps, *cursor)
	}

	limit := pagination.NormalizeLimit(params.Limit)
	page := &Page{Items: snaps}
	if len(snaps) > limit {
		page.Items = snaps[:limit]
		last := page.Items[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{At: last.At, Hash: last.Hash})
	}
	return page, nil
}

// SortNewestFirst orders snapshots by timestamp descending, tie-breaking on
// hash descending so the order is total even when timestamps collide.
func SortNewestFirst(snaps []models.Snapshot) {
	sort.SliceStable(snaps, func(i, j int) bool {
		if !snaps[i].At.Equal(snaps[j].At) {
			return snaps[i].At.After(snaps[j].At)
		}
		return snaps[i].Hash > snaps[j].Hash
	})
}

func afterCursor(snaps []models.Snapshot, cursor pagination.Cursor) []models.Snapshot {
	for i, snap := range snaps {
		if snap.At.Before(cursor.At) || (snap.At.Equal(cursor.At) && snap.Hash < cursor.Hash) {
			return snaps[i:]
		}
	}
	return nil
}

// VerifyIntegrity recomputes the content hash of a stored snapshot and fails
// when it no longer matches. A mismatch means persistence corruption; it is
// surfaced, never repaired.
func VerifyIntegrity(snap *models.Snapshot) error {
	if snap == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "nil snapshot")
	}
	if recomputed := canonical.Hash([]byte(snap.Payload)); recomputed != snap.Hash {
		return pkgerrors.New(pkgerrors.CodeIntegrity, "snapshot payload does not match stored hash").
			WithDetails(map[string]any{
				"subject_id": snap.SubjectID.String(),
				"stored":     snap.Hash,
				"recomputed": recomputed,
			})
	}
	return nil
}

// ParsePayload decodes a snapshot's canonical payload back into a generic
// tree, preserving numeric literals.
func ParsePayload(snap *models.Snapshot) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(snap.Payload)))
	dec.UseNumber()
	var tree map[string]any
	if err := dec.Decode(&tree); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeIntegrity, err, "stored payload cannot be parsed").
			WithDetails(map[string]any{"subject_id": snap.SubjectID.String(), "hash": snap.Hash})
	}
	return tree, nil
}

func validateFinalizeInput(input FinalizeInput) error {
	if input.SubjectID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "subject id is required")
	}
	if strings.TrimSpace(input.Number) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "commitment number is required")
	}
	if !stages.CanSeal(input.Stage) {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("commitment stage %s is not sealable", input.Stage)).
			WithDetails(map[string]any{"field": "stage", "sealed_stage": enums.StageSealed.String()})
	}
	if !input.Status.Sealable() {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("commitment status %s cannot be finalized", input.Status)).
			WithDetails(map[string]any{"field": "status"})
	}
	if !input.Currency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid currency %q", input.Currency)).
			WithDetails(map[string]any{"field": "currency"})
	}
	if len(input.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one line item is required").
			WithDetails(map[string]any{"field": "lines"})
	}
	for i, line := range input.Lines {
		if strings.TrimSpace(line.ItemName) == "" {
			return lineError(i, "item_name is required")
		}
		if !line.Qty.IsPositive() {
			return lineError(i, "qty must be positive")
		}
		if line.UnitPrice.IsNegative() {
			return lineError(i, "unit_price must not be negative")
		}
		if line.TaxRate != nil && line.TaxRate.IsNegative() {
			return lineError(i, "tax_rate must not be negative")
		}
	}
	for field, value := range map[string]decimal.Decimal{
		"subtotal":  input.Totals.Subtotal,
		"tax_total": input.Totals.TaxTotal,
		"total":     input.Totals.Total,
	} {
		if value.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("totals.%s must not be negative", field)).
				WithDetails(map[string]any{"field": "totals." + field})
		}
	}
	return nil
}

func lineError(index int, msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid line item: "+msg).
		WithDetails(map[string]any{"field": fmt.Sprintf("lines[%d]", index)})
}

// buildPayload projects the commitment draft into the canonical payload tree.
// Volatile fields (timestamps, row ids) are excluded; optional fields are
// defaulted to explicit nulls so presence never varies between equal drafts.
func buildPayload(input FinalizeInput) map[string]any {
	lines := make([]any, 0, len(input.Lines))
	for _, line := range input.Lines {
		lines = append(lines, map[string]any{
			"sku":        nullableString(line.SKU),
			"item_name":  line.ItemName,
			"qty":        line.Qty,
			"unit":       nullableString(line.Unit),
			"unit_price": line.UnitPrice,
			"tax_rate":   nullableDecimal(line.TaxRate),
		})
	}

	var parties any
	if input.Parties != nil {
		parties = map[string]any{
			"customer_id": nullableUUID(input.Parties.CustomerID),
			"vendor_id":   nullableUUID(input.Parties.VendorID),
		}
	}

	var meta any
	if len(input.Meta) > 0 {
		bag := make(map[string]any, len(input.Meta))
		for k, v := range input.Meta {
			bag[k] = v
		}
		meta = bag
	}

	return map[string]any{
		"subject_id":    input.SubjectID.String(),
		"number":        input.Number,
		"stage":         input.Stage.String(),
		"status":        input.Status.String(),
		"currency":      input.Currency.String(),
		"payment_terms": nullableString(input.PaymentTerms),
		"parties":       parties,
		"lines":         lines,
		"totals": map[string]any{
			"subtotal":  input.Totals.Subtotal,
			"tax_total": input.Totals.TaxTotal,
			"total":     input.Totals.Total,
		},
		"meta":    meta,
		"version": 1,
	}
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return *d
}

func nullableUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}
