package enums

import "fmt"

// Stage is one node in the forward-only deal pipeline. The order below is the
// only legal path; transitions may never skip ahead or move backward.
type Stage string

const (
	StagePrep         Stage = "PREP"
	StageSchedule     Stage = "SCHEDULE"
	StageOrderBooking Stage = "ORDER_BOOKING"
	StageActive       Stage = "ACTIVE"
	StageReport       Stage = "REPORT"
	StageInvoice      Stage = "INVOICE"
)

// orderedStages is the strict total order of the pipeline.
var orderedStages = []Stage{
	StagePrep,
	StageSchedule,
	StageOrderBooking,
	StageActive,
	StageReport,
	StageInvoice,
}

// StageInitial is where every subject starts.
const StageInitial = StagePrep

// StageSealed is the only stage at which a commitment may be finalized into
// a snapshot.
const StageSealed = StageOrderBooking

// StageTerminal ends the pipeline.
const StageTerminal = StageInvoice

// String implements fmt.Stringer.
func (s Stage) String() string {
	return string(s)
}

// IsValid reports whether the stage is part of the pipeline.
func (s Stage) IsValid() bool {
	for _, candidate := range orderedStages {
		if candidate == s {
			return true
		}
	}
	return false
}

// Index returns the stage's position in the pipeline order, or -1.
func (s Stage) Index() int {
	for i, candidate := range orderedStages {
		if candidate == s {
			return i
		}
	}
	return -1
}

// Next returns the immediate successor stage, or false at the terminal stage.
func (s Stage) Next() (Stage, bool) {
	idx := s.Index()
	if idx < 0 || idx == len(orderedStages)-1 {
		return "", false
	}
	return orderedStages[idx+1], true
}

// ParseStage converts a raw string into a Stage.
func ParseStage(value string) (Stage, error) {
	for _, candidate := range orderedStages {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stage %q", value)
}
