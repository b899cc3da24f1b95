package reports

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dealdesk/dealdesk-backend/internal/bookings"
	"github.com/dealdesk/dealdesk-backend/pkg/db/models"
	"github.com/dealdesk/dealdesk-backend/pkg/enums"
	pkgerrors "github.com/dealdesk/dealdesk-backend/pkg/errors"
)

type fakeReportRepo struct {
	bySubject map[uuid.UUID]*models.Report
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{bySubject: map[uuid.UUID]*models.Report{}}
}

func (f *fakeReportRepo) Create(ctx context.Context, report *models.Report) error {
	stored := *report
	f.bySubject[report.SubjectID] = &stored
	return nil
}

func (f *fakeReportRepo) Update(ctx context.Context, report *models.Report) error {
	stored := *report
	f.bySubject[report.SubjectID] = &stored
	return nil
}

func (f *fakeReportRepo) FindBySubject(ctx context.Context, subjectID uuid.UUID) (*models.Report, error) {
	if report, ok := f.bySubject[subjectID]; ok {
		copied := *report
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeBookings struct {
	byID map[uuid.UUID]*models.Booking
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{byID: map[uuid.UUID]*models.Booking{}}
}

func (f *fakeBookings) add(subjectID uuid.UUID) uuid.UUID {
	id := uuid.New()
	f.byID[id] = &models.Booking{ID: id, SubjectID: subjectID}
	return id
}

func (f *fakeBookings) Derive(ctx context.Context, input bookings.DeriveInput, now time.Time) (*models.Booking, error) {
	panic("not used")
}

func (f *fakeBookings) Get(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	if booking, ok := f.byID[id]; ok {
		return booking, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
}

func (f *fakeBookings) ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]models.Booking, error) {
	var out []models.Booking
	for _, booking := range f.byID {
		if booking.SubjectID == subjectID {
			out = append(out, *booking)
		}
	}
	return out, nil
}

func (f *fakeBookings) Update(ctx context.Context, id uuid.UUID, input bookings.UpdateInput) (*models.Booking, error) {
	panic("not used")
}

func newTestService(t *testing.T) (Service, *fakeReportRepo, *fakeBookings) {
	t.Helper()
	repo := newFakeReportRepo()
	bookingSvc := newFakeBookings()
	svc, err := NewService(repo, bookingSvc)
	require.NoError(t, err)
	return svc, repo, bookingSvc
}

func TestSubmitCreatesReport(t *testing.T) {
	svc, repo, _ := newTestService(t)

	subjectID := uuid.New()
	report, err := svc.Submit(context.Background(), SubmitInput{
		SubjectID: subjectID,
		Adjustments: []Adjustment{
			{Reason: "shortage", Amount: decimal.RequireFromString("-10.50")},
		},
		Status: enums.ReportStatusDraft,
	})
	require.NoError(t, err)

	assert.Equal(t, subjectID, report.SubjectID)
	assert.Equal(t, enums.ReportStatusDraft, report.Status)
	assert.Len(t, repo.bySubject, 1)

	adjustments, err := ParseAdjustments(report)
	require.NoError(t, err)
	require.Len(t, adjustments, 1)
	assert.Equal(t, "shortage", adjustments[0].Reason)
	assert.True(t, adjustments[0].Amount.Equal(decimal.RequireFromString("-10.5")))
}

func TestSubmitUpdatesInPlace(t *testing.T) {
	svc, repo, bookingSvc := newTestService(t)

	subjectID := uuid.New()
	bookingSvc.add(subjectID)
	first, err := svc.Submit(context.Background(), SubmitInput{
		SubjectID: subjectID,
		Status:    enums.ReportStatusDraft,
	})
	require.NoError(t, err)

	second, err := svc.Submit(context.Background(), SubmitInput{
		SubjectID: subjectID,
		Adjustments: []Adjustment{
			{Reason: "rebate", Amount: decimal.RequireFromString("-5.00")},
		},
		Status: enums.ReportStatusSubmitted,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "one report row per subject")
	assert.Equal(t, enums.ReportStatusSubmitted, second.Status)
	assert.Len(t, repo.bySubject, 1)
}

func TestSubmittedReportCannotReturnToDraft(t *testing.T) {
	svc, _, bookingSvc := newTestService(t)

	subjectID := uuid.New()
	bookingSvc.add(subjectID)
	_, err := svc.Submit(context.Background(), SubmitInput{
		SubjectID: subjectID,
		Status:    enums.ReportStatusSubmitted,
	})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), SubmitInput{
		SubjectID: subjectID,
		Status:    enums.ReportStatusDraft,
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestSubmitAmendsSubmittedReport(t *testing.T) {
	svc, _, bookingSvc := newTestService(t)

	subjectID := uuid.New()
	bookingSvc.add(subjectID)
	_, err := svc.Submit(context.Background(), SubmitInput{
		SubjectID: subjectID,
		Status:    enums.ReportStatusSubmitted,
	})
	require.NoError(t, err)

	amended, err := svc.Submit(context.Background(), SubmitInput{
		SubjectID: subjectID,
		Adjustments: []Adjustment{
			{Reason: "late delivery", Amount: decimal.RequireFromString("-2.25")},
		},
		Status: enums.ReportStatusSubmitted,
	})
	require.NoError(t, err)

	adjustments, err := ParseAdjustments(amended)
	require.NoError(t, err)
	assert.Len(t, adjustments, 1)
}

func TestSubmitResolvesSubjectFromBooking(t *testing.T) {
	svc, _, bookingSvc := newTestService(t)

	subjectID := uuid.New()
	bookingID := uuid.New()
	bookingSvc.byID[bookingID] = &models.Booking{ID: bookingID, SubjectID: subjectID}

	report, err := svc.Submit(context.Background(), SubmitInput{
		BookingID: &bookingID,
		Status:    enums.ReportStatusDraft,
	})
	require.NoError(t, err)
	assert.Equal(t, subjectID, report.SubjectID)
	require.NotNil(t, report.BookingID)
	assert.Equal(t, bookingID, *report.BookingID)
}

func TestSubmitRejectsForeignBooking(t *testing.T) {
	svc, _, bookingSvc := newTestService(t)

	bookingID := uuid.New()
	bookingSvc.byID[bookingID] = &models.Booking{ID: bookingID, SubjectID: uuid.New()}

	_, err := svc.Submit(context.Background(), SubmitInput{
		SubjectID: uuid.New(),
		BookingID: &bookingID,
		Status:    enums.ReportStatusDraft,
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestSubmitWithoutBookingCannotBeSubmitted(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Submit(context.Background(), SubmitInput{
		SubjectID: uuid.New(),
		Status:    enums.ReportStatusSubmitted,
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, enums.StageActive.String(), details["expected_next"])
}

func TestSubmitValidation(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Submit(context.Background(), SubmitInput{Status: enums.ReportStatusDraft})
	require.Error(t, err, "subject or booking required")

	_, err = svc.Submit(context.Background(), SubmitInput{
		SubjectID: uuid.New(),
		Status:    "reviewed",
	})
	require.Error(t, err, "unknown status")

	_, err = svc.Submit(context.Background(), SubmitInput{
		SubjectID:   uuid.New(),
		Adjustments: []Adjustment{{Amount: decimal.NewFromInt(1)}},
		Status:      enums.ReportStatusDraft,
	})
	require.Error(t, err, "adjustment reason required")
}
