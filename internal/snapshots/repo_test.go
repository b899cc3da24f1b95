package snapshots

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dealdesk/dealdesk-backend/pkg/canonical"
	"github.com/dealdesk/dealdesk-backend/pkg/db/models"
	"github.com/dealdesk/dealdesk-backend/pkg/enums"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Snapshot{}))
	return db
}

func storedSnapshot(subjectID uuid.UUID, payload string, at time.Time) *models.Snapshot {
	return &models.Snapshot{
		ID:        uuid.New(),
		SubjectID: subjectID,
		Hash:      canonical.Hash([]byte(payload)),
		Number:    "BDO-2025-0042",
		Stage:     enums.StageOrderBooking,
		Currency:  enums.CurrencyUSD,
		Payload:   payload,
		Version:   1,
		At:        at,
	}
}

func TestRepoCreateIfAbsentInserts(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	subjectID := uuid.New()
	snap := storedSnapshot(subjectID, `{"number":"BDO-2025-0042"}`, time.Now().UTC())

	created, existing, err := repo.CreateIfAbsent(ctx, snap)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, snap.ID, existing.ID)
}

func TestRepoCreateIfAbsentReturnsExistingRow(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	subjectID := uuid.New()
	payload := `{"number":"BDO-2025-0042"}`
	first := storedSnapshot(subjectID, payload, time.Now().UTC())
	created, _, err := repo.CreateIfAbsent(ctx, first)
	require.NoError(t, err)
	require.True(t, created)

	// Same key, fresh row id: the insert is dropped and the original returned.
	second := storedSnapshot(subjectID, payload, time.Now().UTC().Add(time.Hour))
	created, existing, err := repo.CreateIfAbsent(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, existing.ID)

	snaps, err := repo.ListBySubject(ctx, subjectID)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestRepoSameHashDifferentSubjects(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	payload := `{"number":"BDO-2025-0042"}`
	first := storedSnapshot(uuid.New(), payload, time.Now().UTC())
	second := storedSnapshot(uuid.New(), payload, time.Now().UTC())

	created, _, err := repo.CreateIfAbsent(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	created, _, err = repo.CreateIfAbsent(ctx, second)
	require.NoError(t, err)
	assert.True(t, created, "uniqueness is scoped per subject")
}

func TestRepoFindBySubjectAndHash(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	subjectID := uuid.New()
	snap := storedSnapshot(subjectID, `{"number":"BDO-2025-0042"}`, time.Now().UTC())
	_, _, err := repo.CreateIfAbsent(ctx, snap)
	require.NoError(t, err)

	found, err := repo.FindBySubjectAndHash(ctx, subjectID, snap.Hash)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, found.ID)
	assert.Equal(t, snap.Payload, found.Payload)

	_, err = repo.FindBySubjectAndHash(ctx, uuid.New(), snap.Hash)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
