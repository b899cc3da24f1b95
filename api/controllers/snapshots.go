package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dealdesk/dealdesk-backend/api/responses"
	"github.com/dealdesk/dealdesk-backend/api/validators"
	"github.com/dealdesk/dealdesk-backend/internal/snapshots"
	"github.com/dealdesk/dealdesk-backend/pkg/db/models"
	"github.com/dealdesk/dealdesk-backend/pkg/enums"
	pkgerrors "github.com/dealdesk/dealdesk-backend/pkg/errors"
	"github.com/dealdesk/dealdesk-backend/pkg/logger"
	"github.com/dealdesk/dealdesk-backend/pkg/pagination"
)

// timeNow is swapped in tests.
var timeNow = time.Now

type snapshotLineRequest struct {
	SKU       *string          `json:"sku"`
	ItemName  string           `json:"item_name" validate:"required"`
	Qty       decimal.Decimal  `json:"qty" validate:"required"`
	Unit      *string          `json:"unit"`
	UnitPrice decimal.Decimal  `json:"unit_price"`
	TaxRate   *decimal.Decimal `json:"tax_rate"`
}

type snapshotTotalsRequest struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	TaxTotal decimal.Decimal `json:"tax_total"`
	Total    decimal.Decimal `json:"total"`
}

type snapshotPartiesRequest struct {
	CustomerID *uuid.UUID `json:"customer_id"`
	VendorID   *uuid.UUID `json:"vendor_id"`
}

type snapshotFinalizeRequest struct {
	Stage        string                  `json:"stage" validate:"required"`
	Status       string                  `json:"status" validate:"required"`
	Number       string                  `json:"number" validate:"required"`
	Currency     string                  `json:"currency" validate:"required"`
	PaymentTerms *string                 `json:"payment_terms"`
	Parties      *snapshotPartiesRequest `json:"parties"`
	Lines        []snapshotLineRequest   `json:"lines" validate:"required,min=1,dive"`
	Totals       snapshotTotalsRequest   `json:"totals"`
	Meta         map[string]string       `json:"meta"`
}

func (r snapshotFinalizeRequest) toInput(subjectID uuid.UUID) (snapshots.FinalizeInput, error) {
	stage, err := enums.ParseStage(strings.TrimSpace(r.Stage))
	if err != nil {
		return snapshots.FinalizeInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid stage").
			WithDetails(map[string]any{"field": "stage"})
	}
	status, err := enums.ParseCommitmentStatus(strings.TrimSpace(r.Status))
	if err != nil {
		return snapshots.FinalizeInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid status").
			WithDetails(map[string]any{"field": "status"})
	}
	currency, err := enums.ParseCurrency(strings.TrimSpace(r.Currency))
	if err != nil {
		return snapshots.FinalizeInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid currency").
			WithDetails(map[string]any{"field": "currency"})
	}

	lines := make([]snapshots.LineItemInput, 0, len(r.Lines))
	for _, line := range r.Lines {
		lines = append(lines, snapshots.LineItemInput{
			SKU:       line.SKU,
			ItemName:  strings.TrimSpace(line.ItemName),
			Qty:       line.Qty,
			Unit:      line.Unit,
			UnitPrice: line.UnitPrice,
			TaxRate:   line.TaxRate,
		})
	}

	input := snapshots.FinalizeInput{
		SubjectID:    subjectID,
		Stage:        stage,
		Status:       status,
		Number:       strings.TrimSpace(r.Number),
		Currency:     currency,
		PaymentTerms: r.PaymentTerms,
		Lines:        lines,
		Totals: snapshots.TotalsInput{
			Subtotal: r.Totals.Subtotal,
			TaxTotal: r.Totals.TaxTotal,
			Total:    r.Totals.Total,
		},
		Meta: r.Meta,
	}
	if r.Parties != nil {
		input.Parties = &snapshots.PartiesInput{
			CustomerID: r.Parties.CustomerID,
			VendorID:   r.Parties.VendorID,
		}
	}
	return input, nil
}

type snapshotResponse struct {
	ID        uuid.UUID      `json:"id"`
	SubjectID uuid.UUID      `json:"subject_id"`
	Hash      string         `json:"hash"`
	Number    string         `json:"number"`
	Stage     enums.Stage    `json:"stage"`
	Currency  enums.Currency `json:"currency"`
	Version   int            `json:"version"`
	At        time.Time      `json:"at"`
}

func snapshotResponseFromModel(m *models.Snapshot) snapshotResponse {
	return snapshotResponse{
		ID:        m.ID,
		SubjectID: m.SubjectID,
		Hash:      m.Hash,
		Number:    m.Number,
		Stage:     m.Stage,
		Currency:  m.Currency,
		Version:   m.Version,
		At:        m.At,
	}
}

type snapshotDetailResponse struct {
	snapshotResponse
	Payload string `json:"payload"`
}

type snapshotPageResponse struct {
	Items      []snapshotResponse `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

// SnapshotFinalize seals a commitment draft into an immutable snapshot.
// Replaying the identical draft returns the stored snapshot with 200 instead
// of 201.
func SnapshotFinalize(svc snapshots.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subjectID, err := validators.ParseUUIDParam(r, "subjectId")
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		var payload snapshotFinalizeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		input, err := payload.toInput(subjectID)
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		now := timeNow()
		snap, err := svc.Finalize(r.Context(), input, now)
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		status := http.StatusCreated
		if !snap.At.Equal(now.UTC()) {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(r.Context(), w, logg, status, snapshotResponseFromModel(snap))
	}
}

// SnapshotList returns a cursor page of a subject's snapshots, newest first.
func SnapshotList(svc snapshots.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subjectID, err := validators.ParseUUIDParam(r, "subjectId")
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0)
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		page, err := svc.List(r.Context(), subjectID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		out := snapshotPageResponse{
			Items:      make([]snapshotResponse, 0, len(page.Items)),
			NextCursor: page.NextCursor,
		}
		for i := range page.Items {
			out.Items = append(out.Items, snapshotResponseFromModel(&page.Items[i]))
		}
		responses.WriteSuccess(r.Context(), w, logg, out)
	}
}

// SnapshotGet returns one snapshot by hash, re-verifying its content hash
// before handing it out.
func SnapshotGet(svc snapshots.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subjectID, err := validators.ParseUUIDParam(r, "subjectId")
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		hash := chi.URLParam(r, "hash")
		snap, err := svc.Get(r.Context(), subjectID, hash)
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		responses.WriteSuccess(r.Context(), w, logg, snapshotDetailResponse{
			snapshotResponse: snapshotResponseFromModel(snap),
			Payload:          snap.Payload,
		})
	}
}
