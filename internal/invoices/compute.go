package invoices

import (
	"github.com/shopspring/decimal"

	"github.com/dealdesk/dealdesk-backend/internal/pricelock"
	"github.com/dealdesk/dealdesk-backend/internal/reports"
	pkgerrors "github.com/dealdesk/dealdesk-backend/pkg/errors"
)

// Amounts is the computed money breakdown of an invoice.
type Amounts struct {
	Subtotal         decimal.Decimal `json:"subtotal"`
	AdjustmentsTotal decimal.Decimal `json:"adjustments_total"`
	Tax              decimal.Decimal `json:"tax"`
	Total            decimal.Decimal `json:"total"`
}

// Compute derives invoice amounts from a price lock, a quantity and report
// adjustments. Pure and total: no I/O, same inputs always produce the same
// amounts. Each intermediate value is rounded to two decimal places, half
// away from zero.
func Compute(lock *pricelock.Lock, quantity decimal.Decimal, adjustments []reports.Adjustment) (Amounts, error) {
	if lock == nil {
		return Amounts{}, pkgerrors.New(pkgerrors.CodeInternal, "nil lock")
	}
	if !quantity.IsPositive() {
		return Amounts{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
			WithDetails(map[string]any{"field": "quantity"})
	}

	subtotal := round2(lock.UnitPrice.Mul(quantity))

	adjustmentsTotal := decimal.Zero
	for _, adj := range adjustments {
		adjustmentsTotal = adjustmentsTotal.Add(adj.Amount)
	}
	adjustmentsTotal = round2(adjustmentsTotal)

	base := round2(subtotal.Add(adjustmentsTotal))

	taxRate := decimal.Zero
	if lock.TaxRate != nil {
		taxRate = *lock.TaxRate
	}
	tax := round2(base.Mul(taxRate).Div(decimal.NewFromInt(100)))

	return Amounts{
		Subtotal:         subtotal,
		AdjustmentsTotal: adjustmentsTotal,
		Tax:              tax,
		Total:            round2(base.Add(tax)),
	}, nil
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
