package confirmations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dealdesk/dealdesk-backend/internal/snapshots"
	"github.com/dealdesk/dealdesk-backend/pkg/db/models"
	pkgerrors "github.com/dealdesk/dealdesk-backend/pkg/errors"
	"github.com/dealdesk/dealdesk-backend/pkg/signing"
)

// Service seals approval batons against existing snapshots. A baton signs
// (subject, snapshot hash, approver) and is written exactly once per pair;
// re-sealing the same snapshot is an idempotent success.
type Service interface {
	Seal(ctx context.Context, input SealInput, now time.Time) (*models.Confirmation, *models.Snapshot, error)
	List(ctx context.Context, subjectID uuid.UUID) ([]models.Confirmation, error)
}

// SealInput carries one approval event. SnapshotHash may be empty, in which
// case the newest snapshot for the subject is sealed.
type SealInput struct {
	SubjectID    uuid.UUID
	SnapshotHash string
	ApprovedBy   string
}

type service struct {
	repo   Repository
	snaps  snapshots.Service
	signer *signing.Signer
}

// NewService wires a confirmations service.
func NewService(repo Repository, snaps snapshots.Service, signer *signing.Signer) (Service, error) {
	if repo == nil || snaps == nil || signer == nil {
		return nil, fmt.Errorf("confirmations service requires repo, snapshots service and signer")
	}
	return &service{repo: repo, snaps: snaps, signer: signer}, nil
}

func (s *service) Seal(ctx context.Context, input SealInput, now time.Time) (*models.Confirmation, *models.Snapshot, error) {
	if input.SubjectID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "subject id is required")
	}
	if strings.TrimSpace(input.ApprovedBy) == "" {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "approved_by is required").
			WithDetails(map[string]any{"field": "approved_by"})
	}

	snap, err := s.resolveSnapshot(ctx, input)
	if err != nil {
		return nil, nil, err
	}

	conf := &models.Confirmation{
		ID:           uuid.New(),
		SubjectID:    input.SubjectID,
		SnapshotHash: snap.Hash,
		ApprovedBy:   input.ApprovedBy,
		Signature:    s.signer.SignBaton(input.SubjectID.String(), snap.Hash, input.ApprovedBy),
		StorageRef:   storageRef(input.SubjectID, snap.Hash),
		Version:      1,
		At:           now.UTC(),
	}

	created, existing, err := s.repo.CreateIfAbsent(ctx, conf)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist confirmation")
	}
	if created {
		return conf, snap, nil
	}

	// Idempotent replay: the stored baton must still verify against its own
	// approver before it is handed back.
	if !s.signer.VerifyBaton(existing.SubjectID.String(), existing.SnapshotHash, existing.ApprovedBy, existing.Signature) {
		return nil, nil, pkgerrors.New(pkgerrors.CodeIntegrity, "stored confirmation signature does not verify").
			WithDetails(map[string]any{
				"subject_id":    existing.SubjectID.String(),
				"snapshot_hash": existing.SnapshotHash,
			})
	}
	return existing, snap, nil
}

func (s *service) List(ctx context.Context, subjectID uuid.UUID) ([]models.Confirmation, error) {
	if subjectID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subject id is required")
	}
	confs, err := s.repo.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list confirmations")
	}
	return confs, nil
}

func (s *service) resolveSnapshot(ctx context.Context, input SealInput) (*models.Snapshot, error) {
	if strings.TrimSpace(input.SnapshotHash) == "" {
		return s.snaps.Newest(ctx, input.SubjectID)
	}
	return s.snaps.Get(ctx, input.SubjectID, input.SnapshotHash)
}

// storageRef is the stable key a baton is filed under: subject plus a short
// prefix of the snapshot hash, enough to locate the snapshot it chains to.
func storageRef(subjectID uuid.UUID, snapshotHash string) string {
	return fmt.Sprintf("confirmations/%s/%s", subjectID, snapshotHash[:12])
}
