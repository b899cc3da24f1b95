package reports

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dealdesk/dealdesk-backend/pkg/enums"
)

// Adjustment is one signed amount applied on top of the locked commercials,
// e.g. a shortage or a spot rebate. Amounts may be negative.
type Adjustment struct {
	Reason string          `json:"reason"`
	Amount decimal.Decimal `json:"amount"`
}

// Variance records an expected-versus-actual gap observed during execution.
// Variances are informational; only adjustments feed invoicing.
type Variance struct {
	Metric   string          `json:"metric"`
	Expected decimal.Decimal `json:"expected"`
	Actual   decimal.Decimal `json:"actual"`
}

// SubmitInput creates or updates the subject's execution report. Either
// SubjectID or BookingID must be set; when only BookingID is given, the
// subject is resolved from the booking.
type SubmitInput struct {
	SubjectID   uuid.UUID
	BookingID   *uuid.UUID
	Adjustments []Adjustment
	Variances   []Variance
	Notes       *string
	Status      enums.ReportStatus
}
