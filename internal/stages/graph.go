// Package stages guards the forward-only deal pipeline. The graph is one
// linear path; every stage-advancing operation consults AssertTransition
// before touching persistence.
package stages

import (
	"fmt"

	"github.com/dealdesk/dealdesk-backend/pkg/enums"
	pkgerrors "github.com/dealdesk/dealdesk-backend/pkg/errors"
)

// AssertTransition validates a stage move. Re-entering the current stage is
// an idempotent no-op; anything other than the immediate successor is
// rejected with the expected next stage in the error details.
func AssertTransition(from, to enums.Stage) error {
	if !from.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown stage %q", from)).
			WithDetails(map[string]any{"field": "from"})
	}
	if !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown stage %q", to)).
			WithDetails(map[string]any{"field": "to"})
	}
	if from == to {
		return nil
	}

	next, ok := from.Next()
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("stage %s is terminal", from)).
			WithDetails(map[string]any{"from": from.String(), "to": to.String()})
	}
	if to != next {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move from %s to %s", from, to)).
			WithDetails(map[string]any{
				"from":          from.String(),
				"to":            to.String(),
				"expected_next": next.String(),
			})
	}
	return nil
}

// CanSeal reports whether a commitment at the given stage may be finalized
// into a snapshot.
func CanSeal(stage enums.Stage) bool {
	return stage == enums.StageSealed
}
