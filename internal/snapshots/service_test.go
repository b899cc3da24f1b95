package snapshots

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dealdesk/dealdesk-backend/pkg/canonical"
	"github.com/dealdesk/dealdesk-backend/pkg/db/models"
	"github.com/dealdesk/dealdesk-backend/pkg/enums"
	pkgerrors "github.com/dealdesk/dealdesk-backend/pkg/errors"
	"github.com/dealdesk/dealdesk-backend/pkg/pagination"
)

type fakeRepository struct {
	rows      map[string]*models.Snapshot
	createErr error
	listErr   error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{rows: map[string]*models.Snapshot{}}
}

func (f *fakeRepository) key(subjectID uuid.UUID, hash string) string {
	return subjectID.String() + "/" + hash
}

func (f *fakeRepository) CreateIfAbsent(ctx context.Context, snap *models.Snapshot) (bool, *models.Snapshot, error) {
	if f.createErr != nil {
		return false, nil, f.createErr
	}
	k := f.key(snap.SubjectID, snap.Hash)
	if existing, ok := f.rows[k]; ok {
		return false, existing, nil
	}
	stored := *snap
	f.rows[k] = &stored
	return true, snap, nil
}

func (f *fakeRepository) FindBySubjectAndHash(ctx context.Context, subjectID uuid.UUID, hash string) (*models.Snapshot, error) {
	if snap, ok := f.rows[f.key(subjectID, hash)]; ok {
		return snap, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]models.Snapshot, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Snapshot
	for _, snap := range f.rows {
		if snap.SubjectID == subjectID {
			out = append(out, *snap)
		}
	}
	return out, nil
}

func validInput(subjectID uuid.UUID) FinalizeInput {
	sku := "PEPSI-500"
	taxRate := decimal.NewFromInt(5)
	return FinalizeInput{
		SubjectID: subjectID,
		Stage:     enums.StageOrderBooking,
		Status:    enums.CommitmentStatusApproved,
		Number:    "BDO-2025-0042",
		Currency:  enums.CurrencyUSD,
		Lines: []LineItemInput{
			{
				SKU:       &sku,
				ItemName:  "Pepsi 500ml",
				Qty:       decimal.NewFromInt(120),
				UnitPrice: decimal.RequireFromString("3.50"),
				TaxRate:   &taxRate,
			},
		},
		Totals: TotalsInput{
			Subtotal: decimal.RequireFromString("420.00"),
			TaxTotal: decimal.RequireFromString("21.00"),
			Total:    decimal.RequireFromString("441.00"),
		},
	}
}

func TestFinalizeCreatesSnapshot(t *testing.T) {
	repo := newFakeRepository()
	svc, err := NewService(repo)
	require.NoError(t, err)

	subjectID := uuid.New()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	snap, err := svc.Finalize(context.Background(), validInput(subjectID), now)
	require.NoError(t, err)

	assert.Equal(t, subjectID, snap.SubjectID)
	assert.Len(t, snap.Hash, canonical.HashLength)
	assert.Equal(t, now, snap.At)
	assert.Equal(t, 1, snap.Version)
	assert.Equal(t, canonical.Hash([]byte(snap.Payload)), snap.Hash)
	assert.Len(t, repo.rows, 1)
}

func TestFinalizeIsIdempotentOnIdenticalContent(t *testing.T) {
	repo := newFakeRepository()
	svc, err := NewService(repo)
	require.NoError(t, err)

	subjectID := uuid.New()
	first, err := svc.Finalize(context.Background(), validInput(subjectID), time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	// Same content later: no new row, same hash, original timestamp.
	second, err := svc.Finalize(context.Background(), validInput(subjectID), time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, first.Hash, second.Hash)
	assert.Equal(t, first.At, second.At)
	assert.Len(t, repo.rows, 1)
}

func TestFinalizeEquivalentDecimalFormsShareHash(t *testing.T) {
	repo := newFakeRepository()
	svc, err := NewService(repo)
	require.NoError(t, err)

	subjectID := uuid.New()
	input := validInput(subjectID)
	first, err := svc.Finalize(context.Background(), input, time.Now().UTC())
	require.NoError(t, err)

	input.Lines[0].UnitPrice = decimal.RequireFromString("3.5")
	input.Totals.Subtotal = decimal.RequireFromString("420")
	second, err := svc.Finalize(context.Background(), input, time.Now().UTC())
	require.NoError(t, err)

	assert.Equal(t, first.Hash, second.Hash)
	assert.Len(t, repo.rows, 1)
}

func TestFinalizeTamperChangesHash(t *testing.T) {
	repo := newFakeRepository()
	svc, err := NewService(repo)
	require.NoError(t, err)

	subjectID := uuid.New()
	first, err := svc.Finalize(context.Background(), validInput(subjectID), time.Now().UTC())
	require.NoError(t, err)

	tampered := validInput(subjectID)
	tampered.Lines[0].ItemName = "Pepsi 500ml " // trailing space
	second, err := svc.Finalize(context.Background(), tampered, time.Now().UTC())
	require.NoError(t, err)

	assert.NotEqual(t, first.Hash, second.Hash)
	assert.Len(t, repo.rows, 2)
}

func TestFinalizeValidation(t *testing.T) {
	repo := newFakeRepository()
	svc, err := NewService(repo)
	require.NoError(t, err)

	subjectID := uuid.New()

	tests := []struct {
		name   string
		mutate func(*FinalizeInput)
	}{
		{"missing subject", func(in *FinalizeInput) { in.SubjectID = uuid.Nil }},
		{"missing number", func(in *FinalizeInput) { in.Number = "  " }},
		{"not at sealed stage", func(in *FinalizeInput) { in.Stage = enums.StagePrep }},
		{"draft status", func(in *FinalizeInput) { in.Status = enums.CommitmentStatusDraft }},
		{"bad currency", func(in *FinalizeInput) { in.Currency = "XXX" }},
		{"no lines", func(in *FinalizeInput) { in.Lines = nil }},
		{"zero qty", func(in *FinalizeInput) { in.Lines[0].Qty = decimal.Zero }},
		{"negative price", func(in *FinalizeInput) { in.Lines[0].UnitPrice = decimal.NewFromInt(-1) }},
		{"negative total", func(in *FinalizeInput) { in.Totals.Total = decimal.NewFromInt(-1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput(subjectID)
			tt.mutate(&input)
			_, err := svc.Finalize(context.Background(), input, time.Now().UTC())
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
		})
	}
	assert.Empty(t, repo.rows)
}

func TestGetVerifiesIntegrity(t *testing.T) {
	repo := newFakeRepository()
	svc, err := NewService(repo)
	require.NoError(t, err)

	subjectID := uuid.New()
	snap, err := svc.Finalize(context.Background(), validInput(subjectID), time.Now().UTC())
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), subjectID, snap.Hash)
	require.NoError(t, err)
	assert.Equal(t, snap.Hash, got.Hash)

	// Corrupt the stored payload; the hash no longer recomputes.
	repo.rows[repo.key(subjectID, snap.Hash)].Payload += " "
	_, err = svc.Get(context.Background(), subjectID, snap.Hash)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeIntegrity, typed.Code())
}

func TestGetNotFound(t *testing.T) {
	repo := newFakeRepository()
	svc, err := NewService(repo)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), uuid.New(), canonical.Hash([]byte("nope")))
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestNewestPicksLatestByTimestampThenHash(t *testing.T) {
	repo := newFakeRepository()
	svc, err := NewService(repo)
	require.NoError(t, err)

	subjectID := uuid.New()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	older := validInput(subjectID)
	_, err = svc.Finalize(context.Background(), older, base)
	require.NoError(t, err)

	newer := validInput(subjectID)
	newer.Number = "BDO-2025-0043"
	latest, err := svc.Finalize(context.Background(), newer, base.Add(time.Hour))
	require.NoError(t, err)

	got, err := svc.Newest(context.Background(), subjectID)
	require.NoError(t, err)
	assert.Equal(t, latest.Hash, got.Hash)
}

func TestNewestNoSnapshot(t *testing.T) {
	repo := newFakeRepository()
	svc, err := NewService(repo)
	require.NoError(t, err)

	_, err = svc.Newest(context.Background(), uuid.New())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestListPaginationRoundTrip(t *testing.T) {
	repo := newFakeRepository()
	svc, err := NewService(repo)
	require.NoError(t, err)

	subjectID := uuid.New()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		input := validInput(subjectID)
		input.Number = fmt.Sprintf("BDO-2025-%04d", i)
		_, err := svc.Finalize(context.Background(), input, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}

	var seen []string
	params := pagination.Params{Limit: 2}
	for page := 0; page < 3; page++ {
		result, err := svc.List(context.Background(), subjectID, params)
		require.NoError(t, err)
		for _, item := range result.Items {
			seen = append(seen, item.Hash)
		}
		if page < 2 {
			require.NotEmpty(t, result.NextCursor, "page %d should continue", page)
			params.Cursor = result.NextCursor
		} else {
			assert.Empty(t, result.NextCursor)
			assert.Len(t, result.Items, 1)
		}
	}

	require.Len(t, seen, 5)
	unique := map[string]bool{}
	for _, hash := range seen {
		unique[hash] = true
	}
	assert.Len(t, unique, 5, "pages must not overlap")
}

func TestListTieBreakOnHash(t *testing.T) {
	repo := newFakeRepository()
	svc, err := NewService(repo)
	require.NoError(t, err)

	subjectID := uuid.New()
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		input := validInput(subjectID)
		input.Number = fmt.Sprintf("BDO-TIE-%d", i)
		_, err := svc.Finalize(context.Background(), input, at)
		require.NoError(t, err)
	}

	result, err := svc.List(context.Background(), subjectID, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, result.Items, 3)
	assert.Greater(t, result.Items[0].Hash, result.Items[1].Hash)
	assert.Greater(t, result.Items[1].Hash, result.Items[2].Hash)
}
