package pricelock

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dealdesk/dealdesk-backend/internal/snapshots"
	"github.com/dealdesk/dealdesk-backend/pkg/db/models"
	"github.com/dealdesk/dealdesk-backend/pkg/enums"
	pkgerrors "github.com/dealdesk/dealdesk-backend/pkg/errors"
)

// Lock is the read-only commercial subset of a snapshot carried unchanged
// into every booking and invoice derived from it. Two artifacts referencing
// the same snapshot hash must carry identical lock values.
type Lock struct {
	SnapshotHash string           `json:"snapshot_hash"`
	Currency     enums.Currency   `json:"currency"`
	UnitPrice    decimal.Decimal  `json:"unit_price"`
	Unit         *string          `json:"unit"`
	TaxRate      *decimal.Decimal `json:"tax_rate"`
	PaymentTerms *string          `json:"payment_terms"`
	CustomerID   *string          `json:"customer_id"`
	VendorID     *string          `json:"vendor_id"`
}

// Target is any derived record with lock-designated fields. CurrentLock
// reports the lock already stamped on the record, if any.
type Target interface {
	CurrentLock() *Lock
	StampLock(Lock)
}

// Extract projects the lock fields out of a snapshot's stored payload. The
// unit price, unit and tax rate come from the first line item. Parse failures
// are integrity errors: the payload passed hash verification, so malformed
// content means the writer broke the canonical form.
func Extract(snap *models.Snapshot) (*Lock, error) {
	tree, err := snapshots.ParsePayload(snap)
	if err != nil {
		return nil, err
	}

	lock := &Lock{SnapshotHash: snap.Hash}

	currency, ok := tree["currency"].(string)
	if !ok {
		return nil, corrupt(snap, "currency")
	}
	lock.Currency = enums.Currency(currency)

	if terms, ok := tree["payment_terms"].(string); ok {
		lock.PaymentTerms = &terms
	}
	if parties, ok := tree["parties"].(map[string]any); ok {
		if id, ok := parties["customer_id"].(string); ok {
			lock.CustomerID = &id
		}
		if id, ok := parties["vendor_id"].(string); ok {
			lock.VendorID = &id
		}
	}

	lines, ok := tree["lines"].([]any)
	if !ok || len(lines) == 0 {
		return nil, corrupt(snap, "lines")
	}
	first, ok := lines[0].(map[string]any)
	if !ok {
		return nil, corrupt(snap, "lines[0]")
	}

	unitPrice, err := decimalField(first, "unit_price")
	if err != nil || unitPrice == nil {
		return nil, corrupt(snap, "lines[0].unit_price")
	}
	lock.UnitPrice = *unitPrice

	if unit, ok := first["unit"].(string); ok {
		lock.Unit = &unit
	}
	taxRate, err := decimalField(first, "tax_rate")
	if err != nil {
		return nil, corrupt(snap, "lines[0].tax_rate")
	}
	lock.TaxRate = taxRate

	return lock, nil
}

// Propagate stamps lock onto target. Locks are write-once: a target that
// already carries a differing lock is refused, an identical lock is an
// idempotent no-op.
func Propagate(lock *Lock, target Target) error {
	if lock == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "nil lock")
	}
	existing := target.CurrentLock()
	if existing == nil {
		target.StampLock(*lock)
		return nil
	}
	if fields := diff(existing, lock); len(fields) > 0 {
		return pkgerrors.New(pkgerrors.CodeLockViolation, "target already carries a different lock").
			WithDetails(map[string]any{
				"snapshot_hash":     lock.SnapshotHash,
				"existing_hash":     existing.SnapshotHash,
				"conflicting_field": fields,
			})
	}
	return nil
}

// Equal reports whether two locks carry identical values. Decimal fields
// compare by value, not representation.
func (l *Lock) Equal(other *Lock) bool {
	if other == nil {
		return false
	}
	return len(diff(l, other)) == 0
}

func diff(a, b *Lock) []string {
	var fields []string
	if a.SnapshotHash != b.SnapshotHash {
		fields = append(fields, "snapshot_hash")
	}
	if a.Currency != b.Currency {
		fields = append(fields, "currency")
	}
	if !a.UnitPrice.Equal(b.UnitPrice) {
		fields = append(fields, "unit_price")
	}
	if !stringPtrEqual(a.Unit, b.Unit) {
		fields = append(fields, "unit")
	}
	if !decimalPtrEqual(a.TaxRate, b.TaxRate) {
		fields = append(fields, "tax_rate")
	}
	if !stringPtrEqual(a.PaymentTerms, b.PaymentTerms) {
		fields = append(fields, "payment_terms")
	}
	if !stringPtrEqual(a.CustomerID, b.CustomerID) {
		fields = append(fields, "customer_id")
	}
	if !stringPtrEqual(a.VendorID, b.VendorID) {
		fields = append(fields, "vendor_id")
	}
	return fields
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func decimalPtrEqual(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func decimalField(m map[string]any, key string) (*decimal.Decimal, error) {
	switch v := m[key].(type) {
	case nil:
		return nil, nil
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return nil, err
		}
		return &d, nil
	default:
		return nil, fmt.Errorf("field %s is not numeric", key)
	}
}

func corrupt(snap *models.Snapshot, field string) error {
	return pkgerrors.New(pkgerrors.CodeIntegrity, "snapshot payload is missing lock field "+field).
		WithDetails(map[string]any{"subject_id": snap.SubjectID.String(), "hash": snap.Hash})
}
