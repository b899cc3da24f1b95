package confirmations

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealdesk/dealdesk-backend/internal/snapshots"
	"github.com/dealdesk/dealdesk-backend/pkg/canonical"
	"github.com/dealdesk/dealdesk-backend/pkg/db/models"
	pkgerrors "github.com/dealdesk/dealdesk-backend/pkg/errors"
	"github.com/dealdesk/dealdesk-backend/pkg/pagination"
	"github.com/dealdesk/dealdesk-backend/pkg/signing"
)

type fakeConfirmationRepo struct {
	rows map[string]*models.Confirmation
}

func newFakeConfirmationRepo() *fakeConfirmationRepo {
	return &fakeConfirmationRepo{rows: map[string]*models.Confirmation{}}
}

func (f *fakeConfirmationRepo) key(subjectID uuid.UUID, hash string) string {
	return subjectID.String() + "/" + hash
}

func (f *fakeConfirmationRepo) CreateIfAbsent(ctx context.Context, conf *models.Confirmation) (bool, *models.Confirmation, error) {
	k := f.key(conf.SubjectID, conf.SnapshotHash)
	if existing, ok := f.rows[k]; ok {
		return false, existing, nil
	}
	stored := *conf
	f.rows[k] = &stored
	return true, conf, nil
}

func (f *fakeConfirmationRepo) FindBySubjectAndHash(ctx context.Context, subjectID uuid.UUID, hash string) (*models.Confirmation, error) {
	if conf, ok := f.rows[f.key(subjectID, hash)]; ok {
		return conf, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "confirmation not found")
}

func (f *fakeConfirmationRepo) ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]models.Confirmation, error) {
	var out []models.Confirmation
	for _, conf := range f.rows {
		if conf.SubjectID == subjectID {
			out = append(out, *conf)
		}
	}
	return out, nil
}

// fakeSnapshots serves canned snapshots ordered newest-first.
type fakeSnapshots struct {
	bySubject map[uuid.UUID][]models.Snapshot
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{bySubject: map[uuid.UUID][]models.Snapshot{}}
}

func (f *fakeSnapshots) add(snap models.Snapshot) {
	f.bySubject[snap.SubjectID] = append(f.bySubject[snap.SubjectID], snap)
}

func (f *fakeSnapshots) Finalize(ctx context.Context, input snapshots.FinalizeInput, now time.Time) (*models.Snapshot, error) {
	panic("not used")
}

func (f *fakeSnapshots) Get(ctx context.Context, subjectID uuid.UUID, hash string) (*models.Snapshot, error) {
	for _, snap := range f.bySubject[subjectID] {
		if snap.Hash == hash {
			return &snap, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "snapshot not found")
}

func (f *fakeSnapshots) Newest(ctx context.Context, subjectID uuid.UUID) (*models.Snapshot, error) {
	snaps := append([]models.Snapshot(nil), f.bySubject[subjectID]...)
	if len(snaps) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no snapshot for subject")
	}
	snapshots.SortNewestFirst(snaps)
	return &snaps[0], nil
}

func (f *fakeSnapshots) List(ctx context.Context, subjectID uuid.UUID, params pagination.Params) (*snapshots.Page, error) {
	panic("not used")
}

func testSnapshot(subjectID uuid.UUID, payload string, at time.Time) models.Snapshot {
	return models.Snapshot{
		ID:        uuid.New(),
		SubjectID: subjectID,
		Hash:      canonical.Hash([]byte(payload)),
		Number:    "BDO-2025-0042",
		Payload:   payload,
		Version:   1,
		At:        at,
	}
}

func newTestService(t *testing.T) (Service, *fakeConfirmationRepo, *fakeSnapshots, *signing.Signer) {
	t.Helper()
	repo := newFakeConfirmationRepo()
	snaps := newFakeSnapshots()
	signer, err := signing.NewSigner("test-secret-key-0123456789abcdef")
	require.NoError(t, err)
	svc, err := NewService(repo, snaps, signer)
	require.NoError(t, err)
	return svc, repo, snaps, signer
}

func TestSealSignsAndPersists(t *testing.T) {
	svc, repo, snaps, signer := newTestService(t)

	subjectID := uuid.New()
	snap := testSnapshot(subjectID, `{"number":"BDO-2025-0042"}`, time.Now().UTC())
	snaps.add(snap)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	conf, sealed, err := svc.Seal(context.Background(), SealInput{
		SubjectID:    subjectID,
		SnapshotHash: snap.Hash,
		ApprovedBy:   "ops@dealdesk.io",
	}, now)
	require.NoError(t, err)

	assert.Equal(t, snap.Hash, conf.SnapshotHash)
	assert.Equal(t, snap.Hash, sealed.Hash)
	assert.Equal(t, now, conf.At)
	assert.True(t, signer.VerifyBaton(subjectID.String(), snap.Hash, "ops@dealdesk.io", conf.Signature))
	assert.Contains(t, conf.StorageRef, snap.Hash[:12])
	assert.Len(t, repo.rows, 1)
}

func TestSealPicksNewestWhenHashOmitted(t *testing.T) {
	svc, _, snaps, _ := newTestService(t)

	subjectID := uuid.New()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	snaps.add(testSnapshot(subjectID, `{"v":1}`, base))
	latest := testSnapshot(subjectID, `{"v":2}`, base.Add(time.Hour))
	snaps.add(latest)

	conf, _, err := svc.Seal(context.Background(), SealInput{
		SubjectID:  subjectID,
		ApprovedBy: "ops@dealdesk.io",
	}, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, latest.Hash, conf.SnapshotHash)
}

func TestSealIsIdempotent(t *testing.T) {
	svc, repo, snaps, _ := newTestService(t)

	subjectID := uuid.New()
	snap := testSnapshot(subjectID, `{"v":1}`, time.Now().UTC())
	snaps.add(snap)

	input := SealInput{SubjectID: subjectID, SnapshotHash: snap.Hash, ApprovedBy: "ops@dealdesk.io"}
	first, _, err := svc.Seal(context.Background(), input, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	second, _, err := svc.Seal(context.Background(), input, time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.At, second.At)
	assert.Len(t, repo.rows, 1)
}

func TestSealUnknownSnapshot(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, _, err := svc.Seal(context.Background(), SealInput{
		SubjectID:  uuid.New(),
		ApprovedBy: "ops@dealdesk.io",
	}, time.Now().UTC())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestSealRequiresApprover(t *testing.T) {
	svc, _, snaps, _ := newTestService(t)

	subjectID := uuid.New()
	snap := testSnapshot(subjectID, `{"v":1}`, time.Now().UTC())
	snaps.add(snap)

	_, _, err := svc.Seal(context.Background(), SealInput{
		SubjectID:    subjectID,
		SnapshotHash: snap.Hash,
	}, time.Now().UTC())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestSealDetectsTamperedStoredBaton(t *testing.T) {
	svc, repo, snaps, _ := newTestService(t)

	subjectID := uuid.New()
	snap := testSnapshot(subjectID, `{"v":1}`, time.Now().UTC())
	snaps.add(snap)

	input := SealInput{SubjectID: subjectID, SnapshotHash: snap.Hash, ApprovedBy: "ops@dealdesk.io"}
	_, _, err := svc.Seal(context.Background(), input, time.Now().UTC())
	require.NoError(t, err)

	// Flip the stored approver; replay must refuse to hand the baton back.
	repo.rows[repo.key(subjectID, snap.Hash)].ApprovedBy = "intruder@dealdesk.io"
	_, _, err = svc.Seal(context.Background(), input, time.Now().UTC())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeIntegrity, typed.Code())
}
