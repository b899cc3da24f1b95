package snapshots

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dealdesk/dealdesk-backend/pkg/db/models"
	"github.com/dealdesk/dealdesk-backend/pkg/enums"
)

// LineItemInput is one commercial line of a commitment draft.
type LineItemInput struct {
	SKU       *string          `json:"sku,omitempty"`
	ItemName  string           `json:"item_name"`
	Qty       decimal.Decimal  `json:"qty"`
	Unit      *string          `json:"unit,omitempty"`
	UnitPrice decimal.Decimal  `json:"unit_price"`
	TaxRate   *decimal.Decimal `json:"tax_rate,omitempty"`
}

// TotalsInput carries the commitment's pre-computed totals.
type TotalsInput struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	TaxTotal decimal.Decimal `json:"tax_total"`
	Total    decimal.Decimal `json:"total"`
}

// PartiesInput identifies the customer and vendor sides of the deal.
type PartiesInput struct {
	CustomerID *uuid.UUID `json:"customer_id,omitempty"`
	VendorID   *uuid.UUID `json:"vendor_id,omitempty"`
}

// FinalizeInput is the commitment draft handed to Finalize. Meta is a bounded
// scalar key/value bag; nested structures are rejected at the API boundary so
// canonicalization stays total.
type FinalizeInput struct {
	SubjectID    uuid.UUID
	Stage        enums.Stage
	Status       enums.CommitmentStatus
	Number       string
	Currency     enums.Currency
	PaymentTerms *string
	Parties      *PartiesInput
	Lines        []LineItemInput
	Totals       TotalsInput
	Meta         map[string]string
}

// Page wraps one page of snapshots plus the next page cursor.
type Page struct {
	Items      []models.Snapshot `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}
