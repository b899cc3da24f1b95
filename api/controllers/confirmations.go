package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dealdesk/dealdesk-backend/api/responses"
	"github.com/dealdesk/dealdesk-backend/api/validators"
	"github.com/dealdesk/dealdesk-backend/internal/confirmations"
	"github.com/dealdesk/dealdesk-backend/pkg/db/models"
	"github.com/dealdesk/dealdesk-backend/pkg/logger"
)

type confirmationSealRequest struct {
	SnapshotHash string `json:"snapshot_hash" validate:"omitempty,len=64,hexadecimal"`
	ApprovedBy   string `json:"approved_by" validate:"required"`
}

type confirmationResponse struct {
	ID           uuid.UUID `json:"id"`
	SubjectID    uuid.UUID `json:"subject_id"`
	SnapshotHash string    `json:"snapshot_hash"`
	ApprovedBy   string    `json:"approved_by"`
	Signature    string    `json:"signature"`
	StorageRef   string    `json:"storage_ref"`
	At           time.Time `json:"at"`
}

func confirmationResponseFromModel(m *models.Confirmation) confirmationResponse {
	return confirmationResponse{
		ID:           m.ID,
		SubjectID:    m.SubjectID,
		SnapshotHash: m.SnapshotHash,
		ApprovedBy:   m.ApprovedBy,
		Signature:    m.Signature,
		StorageRef:   m.StorageRef,
		At:           m.At,
	}
}

// ConfirmationSeal signs an approval baton against a snapshot. Omitting
// snapshot_hash seals the subject's newest snapshot.
func ConfirmationSeal(svc confirmations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subjectID, err := validators.ParseUUIDParam(r, "subjectId")
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		var payload confirmationSealRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		conf, _, err := svc.Seal(r.Context(), confirmations.SealInput{
			SubjectID:    subjectID,
			SnapshotHash: strings.TrimSpace(payload.SnapshotHash),
			ApprovedBy:   strings.TrimSpace(payload.ApprovedBy),
		}, timeNow())
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		responses.WriteSuccessStatus(r.Context(), w, logg, http.StatusCreated, confirmationResponseFromModel(conf))
	}
}

// ConfirmationList returns every approval baton sealed for a subject.
func ConfirmationList(svc confirmations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subjectID, err := validators.ParseUUIDParam(r, "subjectId")
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		confs, err := svc.List(r.Context(), subjectID)
		if err != nil {
			responses.WriteError(r.Context(), w, logg, err)
			return
		}

		out := make([]confirmationResponse, 0, len(confs))
		for i := range confs {
			out = append(out, confirmationResponseFromModel(&confs[i]))
		}
		responses.WriteSuccess(r.Context(), w, logg, out)
	}
}
