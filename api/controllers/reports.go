package controllers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dealdesk/dealdesk-backend/api/responses"
	"github.com/dealdesk/dealdesk-backend/api/validators"
	"github.com/dealdesk/dealdesk-backend/internal/reports"
	"github.com/dealdesk/dealdesk-backend/pkg/db/models"
	"github.com/dealdesk/dealdesk-backend/pkg/enums"
	pkgerrors "github.com/dealdesk/dealdesk-backend/pkg/errors"
	"github.com/dealdesk/dealdesk-backend/pkg/logger"
)

type reportSubmitRequest struct {
	BookingID   *uuid.UUID           `json:"booking_id"`
	Adjustments []reports.Adjustment `json:"adjustments" validate:"omitempty,dive"`
	Variances   []reports.Variance   `json:"variances" validate:"omitempty,dive"`
	Notes       *string              `json:"notes"`
	Status      string               `json:"status" validate:"required"`
}

type reportResponse struct {
	ID          uuid.UUID          `json:"id"`
	SubjectID   uuid.UUID          `json:"subject_id"`
	BookingID   *uuid.UUID         `json:"booking_id,omitempty"`
	Adjustments json.RawMessage    `json:"adjustments"`
	Variances   json.RawMessage    `json:"variances"`
	Notes       *string            `json:"notes,omitempty"`
	Status      enums.ReportStatus `json:"status"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func reportResponseFromModel(m *models.Report) reportResponse {
	return reportResponse{
		ID:          m.ID,
		SubjectID:   m.SubjectID,
		BookingID:   m.BookingID,
		Adjustments: m.Adjustments,
		Variances:   m.Variances,
		Notes:       m.Notes,
		Status:      m.Status,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// ReportSubmit creates or amends the subject's execution report.
func ReportSubmit(svc reports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subjectID, err := validators.ParseUUIDParam(r, "subjectId")
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		var payload reportSubmitRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		status, err := enums.ParseReportStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), w, logg,
				pkgerrors.New(pkgerrors.CodeValidation, "invalid report status").
					WithDetails(map[string]any{"field": "status"}))
			return
		}

		report, err := svc.Submit(r.Context(), reports.SubmitInput{
			SubjectID:   subjectID,
			BookingID:   payload.BookingID,
			Adjustments: payload.Adjustments,
			Variances:   payload.Variances,
			Notes:       payload.Notes,
			Status:      status,
		})
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		responses.WriteSuccess(r.Context(), w, logg, reportResponseFromModel(report))
	}
}

// ReportGet returns the subject's execution report.
func ReportGet(svc reports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subjectID, err := validators.ParseUUIDParam(r, "subjectId")
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		report, err := svc.Get(r.Context(), subjectID)
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		responses.WriteSuccess(r.Context(), w, logg, reportResponseFromModel(report))
	}
}
