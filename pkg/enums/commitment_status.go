package enums

import "fmt"

// CommitmentStatus tracks a commitment draft on its way to being sealed.
type CommitmentStatus string

const (
	CommitmentStatusDraft     CommitmentStatus = "draft"
	CommitmentStatusProposed  CommitmentStatus = "proposed"
	CommitmentStatusApproved  CommitmentStatus = "approved"
	CommitmentStatusConfirmed CommitmentStatus = "confirmed"
)

var validCommitmentStatuses = []CommitmentStatus{
	CommitmentStatusDraft,
	CommitmentStatusProposed,
	CommitmentStatusApproved,
	CommitmentStatusConfirmed,
}

// String implements fmt.Stringer.
func (s CommitmentStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is recognized.
func (s CommitmentStatus) IsValid() bool {
	for _, candidate := range validCommitmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Sealable reports whether a commitment in this status may be finalized.
// Drafts are never sealed.
func (s CommitmentStatus) Sealable() bool {
	switch s {
	case CommitmentStatusProposed, CommitmentStatusApproved, CommitmentStatusConfirmed:
		return true
	default:
		return false
	}
}

// ParseCommitmentStatus converts a raw string into a CommitmentStatus.
func ParseCommitmentStatus(value string) (CommitmentStatus, error) {
	for _, candidate := range validCommitmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid commitment status %q", value)
}
