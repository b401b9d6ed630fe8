package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// CycleState is the minimal view of a persisted cycle the aggregator needs.
type CycleState struct {
	Period    Period
	TotalOwed decimal.Decimal
	Paid      decimal.Decimal
}

// Balance of the cycle.
func (c CycleState) Balance() decimal.Decimal {
	return Balance(c.TotalOwed, c.Paid)
}

// Status of the cycle at now.
func (c CycleState) Status(now time.Time) Status {
	return DeriveStatus(c.Period, c.Balance(), now)
}

// Totals are account-level roll-ups.
type Totals struct {
	TotalBilled      decimal.Decimal
	TotalPaid        decimal.Decimal
	BalanceRemaining decimal.Decimal
	Credit           decimal.Decimal
	OverdueCycles    int
	CurrentCycle     int
}

// Summarize rolls per-cycle balances up to account totals. TotalPaid covers every cycle;
// BalanceRemaining only sums cycles that are not settled, so an account caught up after
// months without a view can owe on several overdue cycles at once.
func Summarize(cycles []CycleState, now time.Time) Totals {
	t := Totals{
		TotalBilled:      decimal.Zero,
		TotalPaid:        decimal.Zero,
		BalanceRemaining: decimal.Zero,
		Credit:           decimal.Zero,
		CurrentCycle:     CurrentIndex(cycles, now),
	}
	for _, c := range cycles {
		t.TotalBilled = t.TotalBilled.Add(c.TotalOwed)
		t.TotalPaid = t.TotalPaid.Add(c.Paid)

		balance := c.Balance()
		switch c.Status(now) {
		case StatusSettled:
			t.Credit = t.Credit.Add(Credit(balance))
		case StatusOverdue:
			t.OverdueCycles++
			t.BalanceRemaining = t.BalanceRemaining.Add(balance)
		default:
			t.BalanceRemaining = t.BalanceRemaining.Add(balance)
		}
	}
	return t
}

// CurrentIndex picks the cycle payments go to by default: the one containing today,
// otherwise the latest. It returns -1 when there are no cycles yet.
func CurrentIndex(cycles []CycleState, now time.Time) int {
	if len(cycles) == 0 {
		return -1
	}
	for i, c := range cycles {
		if c.Period.Contains(now) {
			return i
		}
	}
	return len(cycles) - 1
}
