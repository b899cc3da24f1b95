package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dealdesk/dealdesk-backend/api/responses"
	"github.com/dealdesk/dealdesk-backend/api/validators"
	"github.com/dealdesk/dealdesk-backend/internal/invoices"
	"github.com/dealdesk/dealdesk-backend/pkg/db/models"
	"github.com/dealdesk/dealdesk-backend/pkg/enums"
	pkgerrors "github.com/dealdesk/dealdesk-backend/pkg/errors"
	"github.com/dealdesk/dealdesk-backend/pkg/logger"
	"github.com/dealdesk/dealdesk-backend/pkg/pagination"
)

type invoiceIssueRequest struct {
	SnapshotHash string           `json:"snapshot_hash" validate:"omitempty,len=64,hexadecimal"`
	Quantity     *decimal.Decimal `json:"quantity"`
}

type invoiceResponse struct {
	ID               uuid.UUID       `json:"id"`
	SubjectID        uuid.UUID       `json:"subject_id"`
	SnapshotHash     string          `json:"snapshot_hash"`
	BookingID        *uuid.UUID      `json:"booking_id,omitempty"`
	Currency         enums.Currency  `json:"currency"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	AdjustmentsTotal decimal.Decimal `json:"adjustments_total"`
	Tax              decimal.Decimal `json:"tax"`
	Total            decimal.Decimal `json:"total"`
	At               time.Time       `json:"at"`
}

func invoiceResponseFromModel(m *models.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:               m.ID,
		SubjectID:        m.SubjectID,
		SnapshotHash:     m.SnapshotHash,
		BookingID:        m.BookingID,
		Currency:         m.Currency,
		Subtotal:         m.Subtotal,
		AdjustmentsTotal: m.AdjustmentsTotal,
		Tax:              m.Tax,
		Total:            m.Total,
		At:               m.At,
	}
}

type invoicePageResponse struct {
	Items      []invoiceResponse `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

// InvoiceIssue computes and persists an invoice from the snapshot's price
// lock plus the subject's report adjustments. Re-issuing against an already
// billed snapshot returns the stored invoice.
func InvoiceIssue(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subjectID, err := validators.ParseUUIDParam(r, "subjectId")
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		var payload invoiceIssueRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		invoice, err := svc.Issue(r.Context(), invoices.IssueInput{
			SubjectID:    subjectID,
			SnapshotHash: strings.TrimSpace(payload.SnapshotHash),
			Quantity:     payload.Quantity,
		}, timeNow())
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		responses.WriteSuccessStatus(r.Context(), w, logg, http.StatusCreated, invoiceResponseFromModel(invoice))
	}
}

// InvoiceList returns a cursor page of invoices filtered by subject and
// optionally by booking.
func InvoiceList(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		rawSubject := strings.TrimSpace(query.Get("subject_id"))
		if rawSubject == "" {
			responses.WriteError(r.Context(), w, logg,
				pkgerrors.New(pkgerrors.CodeValidation, "subject_id query parameter is required"))
			return
		}
		subjectID, err := uuid.Parse(rawSubject)
		if err != nil {
			responses.WriteError(r.Context(), w, logg,
				pkgerrors.New(pkgerrors.CodeValidation, "subject_id must be a valid UUID"))
			return
		}

		filter := invoices.Filter{SubjectID: subjectID}
		if rawBooking := strings.TrimSpace(query.Get("booking_id")); rawBooking != "" {
			bookingID, parseErr := uuid.Parse(rawBooking)
			if parseErr != nil {
				responses.WriteError(r.Context(), w, logg,
					pkgerrors.New(pkgerrors.CodeValidation, "booking_id must be a valid UUID"))
				return
			}
			filter.BookingID = &bookingID
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0)
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		page, err := svc.List(r.Context(), filter, pagination.Params{
			Limit:  limit,
			Cursor: query.Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		out := invoicePageResponse{
			Items:      make([]invoiceResponse, 0, len(page.Items)),
			NextCursor: page.NextCursor,
		}
		for i := range page.Items {
			out.Items = append(out.Items, invoiceResponseFromModel(&page.Items[i]))
		}
		responses.WriteSuccess(r.Context(), w, logg, out)
	}
}
