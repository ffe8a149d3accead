// Package finance keeps a transaction's derived money fields consistent
// with its line items and settlements. The store layer runs Reconcile
// inside the same database transaction as the triggering write and
// persists the result; broadcasting happens only when the outcome
// actually differs from the pre-write snapshot.
package finance

import (
	"github.com/shopspring/decimal"

	"escashop/backend/internal/models"
)

type ItemLine struct {
	Quantity  int
	UnitPrice decimal.Decimal
}

type SettlementLine struct {
	Amount decimal.Decimal
}

// Snapshot is the pre-write view of the derived fields used for event
// de-duplication.
type Snapshot struct {
	PaidAmount    decimal.Decimal
	PaymentStatus string
}

type Result struct {
	Amount        decimal.Decimal
	PaidAmount    decimal.Decimal
	BalanceAmount decimal.Decimal
	PaymentStatus string
}

// Reconcile computes the derived fields for one transaction.
//
// baseAmount is nil when the transaction was created without an amount;
// storedAmount is the previously persisted effective amount. With no line
// items the effective amount falls back to the base (or stored) amount so
// an empty item set never erases a manually entered total.
func Reconcile(baseAmount *decimal.Decimal, storedAmount decimal.Decimal, items []ItemLine, settlements []SettlementLine) Result {
	base := storedAmount
	if baseAmount != nil {
		base = *baseAmount
	}

	amount := base
	for _, item := range items {
		qty := decimal.NewFromInt(int64(item.Quantity))
		amount = amount.Add(item.UnitPrice.Mul(qty))
	}

	paid := decimal.Zero
	for _, s := range settlements {
		paid = paid.Add(s.Amount)
	}

	balance := amount.Sub(paid)
	if balance.IsNegative() {
		balance = decimal.Zero
	}

	return Result{
		Amount:        amount,
		PaidAmount:    paid,
		BalanceAmount: balance,
		PaymentStatus: Status(amount, paid),
	}
}

// Status derives the payment status from effective amount and paid amount.
func Status(amount, paid decimal.Decimal) string {
	switch {
	case paid.IsZero():
		return models.PaymentUnpaid
	case amount.IsPositive() && paid.GreaterThanOrEqual(amount):
		return models.PaymentPaid
	default:
		return models.PaymentPartial
	}
}

// Changed reports whether the reconciled outcome differs from the
// pre-write snapshot in a way downstream clients care about.
func (r Result) Changed(before Snapshot) bool {
	return r.PaymentStatus != before.PaymentStatus || !r.PaidAmount.Equal(before.PaidAmount)
}
