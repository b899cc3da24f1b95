package stages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealdesk/dealdesk-backend/pkg/enums"
	pkgerrors "github.com/dealdesk/dealdesk-backend/pkg/errors"
)

func TestAssertTransitionForwardStep(t *testing.T) {
	assert.NoError(t, AssertTransition(enums.StagePrep, enums.StageSchedule))
	assert.NoError(t, AssertTransition(enums.StageOrderBooking, enums.StageActive))
	assert.NoError(t, AssertTransition(enums.StageReport, enums.StageInvoice))
}

func TestAssertTransitionSameStageIsNoOp(t *testing.T) {
	for _, stage := range []enums.Stage{
		enums.StagePrep,
		enums.StageActive,
		enums.StageInvoice,
	} {
		assert.NoError(t, AssertTransition(stage, stage), stage)
	}
}

func TestAssertTransitionRejectsSkip(t *testing.T) {
	err := AssertTransition(enums.StagePrep, enums.StageOrderBooking)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, enums.StageSchedule.String(), details["expected_next"])
}

func TestAssertTransitionRejectsBackward(t *testing.T) {
	err := AssertTransition(enums.StageActive, enums.StageOrderBooking)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestAssertTransitionTerminalStage(t *testing.T) {
	err := AssertTransition(enums.StageInvoice, enums.StagePrep)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestAssertTransitionUnknownStage(t *testing.T) {
	err := AssertTransition("LIMBO", enums.StagePrep)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestCanSeal(t *testing.T) {
	assert.True(t, CanSeal(enums.StageOrderBooking))
	assert.False(t, CanSeal(enums.StagePrep))
	assert.False(t, CanSeal(enums.StageInvoice))
}
