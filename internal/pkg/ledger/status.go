package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the derived state of a billing cycle. It is recomputed on every read.
type Status string

const (
	StatusActive  Status = "Active"
	StatusSettled Status = "Settled"
	StatusPending Status = "Pending"
	StatusOverdue Status = "Overdue"
)

// PaymentState describes how much of a cycle has been paid.
type PaymentState string

const (
	PaymentUnpaid  PaymentState = "Unpaid"
	PaymentPartial PaymentState = "Partial"
	PaymentPaid    PaymentState = "Paid"
)

// Paid sums payment amounts.
func Paid(amounts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Balance is totalOwed minus paid. It is never clamped; a negative value is a surplus.
func Balance(totalOwed, paid decimal.Decimal) decimal.Decimal {
	return totalOwed.Sub(paid)
}

// Credit is the surplus carried by a cycle whose balance went below zero.
func Credit(balance decimal.Decimal) decimal.Decimal {
	if balance.IsNegative() {
		return balance.Neg()
	}
	return decimal.Zero
}

// DeriveStatus applies the cycle state machine:
//
//	Active  --(today >= end AND balance > 0)--> Overdue
//	Active/Overdue --(balance <= 0)--> Settled
//
// A cycle that has not started yet is Pending.
func DeriveStatus(p Period, balance decimal.Decimal, now time.Time) Status {
	if !balance.IsPositive() {
		return StatusSettled
	}
	today := Day(now)
	if !today.Before(p.End) {
		return StatusOverdue
	}
	if today.Before(p.Start) {
		return StatusPending
	}
	return StatusActive
}

// DerivePaymentState classifies paid against owed.
func DerivePaymentState(totalOwed, paid decimal.Decimal) PaymentState {
	switch {
	case !Balance(totalOwed, paid).IsPositive():
		return PaymentPaid
	case paid.IsPositive():
		return PaymentPartial
	default:
		return PaymentUnpaid
	}
}
