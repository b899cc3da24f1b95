package controllers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dealdesk/dealdesk-backend/api/responses"
	"github.com/dealdesk/dealdesk-backend/api/validators"
	"github.com/dealdesk/dealdesk-backend/internal/bookings"
	"github.com/dealdesk/dealdesk-backend/pkg/db/models"
	"github.com/dealdesk/dealdesk-backend/pkg/enums"
	pkgerrors "github.com/dealdesk/dealdesk-backend/pkg/errors"
	"github.com/dealdesk/dealdesk-backend/pkg/logger"
)

type bookingDeriveRequest struct {
	SnapshotHash string     `json:"snapshot_hash" validate:"omitempty,len=64,hexadecimal"`
	StartAt      *time.Time `json:"start_at"`
	EndAt        *time.Time `json:"end_at"`
	ResourceID   *uuid.UUID `json:"resource_id"`
	Capacity     *int       `json:"capacity"`
	Notes        *string    `json:"notes"`
}

type bookingUpdateRequest struct {
	Status  *string    `json:"status"`
	StartAt *time.Time `json:"start_at"`
	EndAt   *time.Time `json:"end_at"`
}

type bookingResponse struct {
	ID                uuid.UUID           `json:"id"`
	SubjectID         uuid.UUID           `json:"subject_id"`
	SnapshotHash      string              `json:"snapshot_hash"`
	Number            string              `json:"number"`
	Status            enums.BookingStatus `json:"status"`
	ScheduleStart     time.Time           `json:"schedule_start"`
	ScheduleEnd       time.Time           `json:"schedule_end"`
	ResourceID        *uuid.UUID          `json:"resource_id,omitempty"`
	Capacity          *int                `json:"capacity,omitempty"`
	Notes             *string             `json:"notes,omitempty"`
	CommercialSummary json.RawMessage     `json:"commercial_summary"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

func bookingResponseFromModel(m *models.Booking) bookingResponse {
	return bookingResponse{
		ID:                m.ID,
		SubjectID:         m.SubjectID,
		SnapshotHash:      m.SnapshotHash,
		Number:            m.Number,
		Status:            m.Status,
		ScheduleStart:     m.ScheduleStart,
		ScheduleEnd:       m.ScheduleEnd,
		ResourceID:        m.ResourceID,
		Capacity:          m.Capacity,
		Notes:             m.Notes,
		CommercialSummary: m.CommercialSummary,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// BookingDerive derives a tentative booking from a snapshot, freezing the
// commercial summary under the price lock.
func BookingDerive(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subjectID, err := validators.ParseUUIDParam(r, "subjectId")
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		var payload bookingDeriveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		booking, err := svc.Derive(r.Context(), bookings.DeriveInput{
			SubjectID:    subjectID,
			SnapshotHash: strings.TrimSpace(payload.SnapshotHash),
			StartAt:      payload.StartAt,
			EndAt:        payload.EndAt,
			ResourceID:   payload.ResourceID,
			Capacity:     payload.Capacity,
			Notes:        payload.Notes,
		}, timeNow())
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		responses.WriteSuccessStatus(r.Context(), w, logg, http.StatusCreated, bookingResponseFromModel(booking))
	}
}

// BookingList returns every booking derived for a subject.
func BookingList(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subjectID, err := validators.ParseUUIDParam(r, "subjectId")
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		items, err := svc.ListBySubject(r.Context(), subjectID)
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		out := make([]bookingResponse, 0, len(items))
		for i := range items {
			out = append(out, bookingResponseFromModel(&items[i]))
		}
		responses.WriteSuccess(r.Context(), w, logg, out)
	}
}

// BookingUpdate mutates a booking's status or schedule window. The commercial
// summary is not updatable.
func BookingUpdate(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookingID, err := validators.ParseUUIDParam(r, "bookingId")
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		var payload bookingUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		input := bookings.UpdateInput{
			StartAt: payload.StartAt,
			EndAt:   payload.EndAt,
		}
		if payload.Status != nil {
			status, parseErr := enums.ParseBookingStatus(strings.TrimSpace(*payload.Status))
			if parseErr != nil {
				responses.WriteError(r.Context(), w, logg,
					pkgerrors.New(pkgerrors.CodeValidation, "invalid booking status").
						WithDetails(map[string]any{"field": "status"}))
				return
			}
			input.Status = &status
		}

		booking, err := svc.Update(r.Context(), bookingID, input)
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		responses.WriteSuccess(r.Context(), w, logg, bookingResponseFromModel(booking))
	}
}
