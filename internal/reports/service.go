package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dealdesk/dealdesk-backend/internal/bookings"
	"github.com/dealdesk/dealdesk-backend/internal/stages"
	"github.com/dealdesk/dealdesk-backend/pkg/db"
	"github.com/dealdesk/dealdesk-backend/pkg/db/models"
	"github.com/dealdesk/dealdesk-backend/pkg/enums"
	pkgerrors "github.com/dealdesk/dealdesk-backend/pkg/errors"
)

// Service maintains the per-subject execution report. Submit is
// create-or-update: the report row is mutable, unlike snapshots, but its
// adjustments never reach back into the snapshot or the price lock.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*models.Report, error)
	Get(ctx context.Context, subjectID uuid.UUID) (*models.Report, error)
}

type service struct {
	repo     Repository
	bookings bookings.Service
}

// NewService wires a reports service.
func NewService(repo Repository, bookingSvc bookings.Service) (Service, error) {
	if repo == nil || bookingSvc == nil {
		return nil, fmt.Errorf("reports service requires repo and bookings service")
	}
	return &service{repo: repo, bookings: bookingSvc}, nil
}

func (s *service) Submit(ctx context.Context, input SubmitInput) (*models.Report, error) {
	subjectID, bookingID, err := s.resolveSubject(ctx, input)
	if err != nil {
		return nil, err
	}
	if err := validateSubmitInput(input); err != nil {
		return nil, err
	}

	if err := s.assertStageAdvance(ctx, subjectID, bookingID, input.Status); err != nil {
		return nil, err
	}

	adjustments, variances, err := encodeBags(input)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindBySubject(ctx, subjectID)
	if err != nil && !db.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load report")
	}

	if existing == nil {
		report := &models.Report{
			ID:          uuid.New(),
			SubjectID:   subjectID,
			BookingID:   bookingID,
			Adjustments: adjustments,
			Variances:   variances,
			Notes:       input.Notes,
			Status:      input.Status,
		}
		if err := s.repo.Create(ctx, report); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist report")
		}
		return report, nil
	}

	if err := assertStatusChange(existing.Status, input.Status); err != nil {
		return nil, err
	}

	existing.BookingID = bookingID
	existing.Adjustments = adjustments
	existing.Variances = variances
	existing.Notes = input.Notes
	existing.Status = input.Status
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update report")
	}
	return existing, nil
}

func (s *service) Get(ctx context.Context, subjectID uuid.UUID) (*models.Report, error) {
	if subjectID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subject id is required")
	}
	report, err := s.repo.FindBySubject(ctx, subjectID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no report for subject").
				WithDetails(map[string]any{"subject_id": subjectID.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load report")
	}
	return report, nil
}

// resolveSubject accepts either a subject id or a booking reference. A
// booking reference must exist and, when both are given, must belong to the
// subject.
func (s *service) resolveSubject(ctx context.Context, input SubmitInput) (uuid.UUID, *uuid.UUID, error) {
	if input.SubjectID == uuid.Nil && input.BookingID == nil {
		return uuid.Nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "subject id or booking id is required")
	}
	if input.BookingID == nil {
		return input.SubjectID, nil, nil
	}

	booking, err := s.bookings.Get(ctx, *input.BookingID)
	if err != nil {
		return uuid.Nil, nil, err
	}
	if input.SubjectID != uuid.Nil && input.SubjectID != booking.SubjectID {
		return uuid.Nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "booking does not belong to subject").
			WithDetails(map[string]any{
				"subject_id": input.SubjectID.String(),
				"booking_id": booking.ID.String(),
			})
	}
	return booking.SubjectID, input.BookingID, nil
}

// assertStageAdvance guards the pipeline move into REPORT. A submitted report
// advances the subject out of ACTIVE, so the subject must have at least one
// booking; draft reports may be parked at any point.
func (s *service) assertStageAdvance(ctx context.Context, subjectID uuid.UUID, bookingID *uuid.UUID, status enums.ReportStatus) error {
	if status != enums.ReportStatusSubmitted {
		return nil
	}

	from := enums.StageSealed
	if bookingID != nil {
		from = enums.StageActive
	} else {
		list, err := s.bookings.ListBySubject(ctx, subjectID)
		if err != nil {
			return err
		}
		if len(list) > 0 {
			from = enums.StageActive
		}
	}
	return stages.AssertTransition(from, enums.StageReport)
}

func validateSubmitInput(input SubmitInput) error {
	if !input.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid report status %q", input.Status)).
			WithDetails(map[string]any{"field": "status"})
	}
	for i, adj := range input.Adjustments {
		if strings.TrimSpace(adj.Reason) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "adjustment reason is required").
				WithDetails(map[string]any{"field": fmt.Sprintf("adjustments[%d].reason", i)})
		}
	}
	for i, v := range input.Variances {
		if strings.TrimSpace(v.Metric) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "variance metric is required").
				WithDetails(map[string]any{"field": fmt.Sprintf("variances[%d].metric", i)})
		}
	}
	return nil
}

func encodeBags(input SubmitInput) (json.RawMessage, json.RawMessage, error) {
	adjustments := input.Adjustments
	if adjustments == nil {
		adjustments = []Adjustment{}
	}
	rawAdjustments, err := json.Marshal(adjustments)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode adjustments")
	}

	variances := input.Variances
	if variances == nil {
		variances = []Variance{}
	}
	rawVariances, err := json.Marshal(variances)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode variances")
	}
	return rawAdjustments, rawVariances, nil
}

// assertStatusChange: a submitted report may be amended (submitted →
// submitted) but never demoted back to draft.
func assertStatusChange(from, to enums.ReportStatus) error {
	if from == enums.ReportStatusSubmitted && to == enums.ReportStatusDraft {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "submitted report cannot return to draft").
			WithDetails(map[string]any{
				"from":          from.String(),
				"to":            to.String(),
				"expected_next": enums.ReportStatusSubmitted.String(),
			})
	}
	return nil
}

// ParseAdjustments decodes the stored adjustment bag.
func ParseAdjustments(report *models.Report) ([]Adjustment, error) {
	var adjustments []Adjustment
	if err := json.Unmarshal(report.Adjustments, &adjustments); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeIntegrity, err, "stored adjustments cannot be parsed").
			WithDetails(map[string]any{"subject_id": report.SubjectID.String()})
	}
	return adjustments, nil
}
