package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func cyclesFor(t *testing.T, paid ...int64) []CycleState {
	t.Helper()
	periods := PlanCycles(date(2025, 1, 15), 0, date(2025, 4, 20))
	out := make([]CycleState, len(periods))
	for i, p := range periods {
		out[i] = CycleState{Period: p, TotalOwed: decimal.NewFromInt(10000), Paid: decimal.Zero}
		if i < len(paid) {
			out[i].Paid = decimal.NewFromInt(paid[i])
		}
	}
	return out
}

func TestDeriveStatusScenario(t *testing.T) {
	now := date(2025, 4, 20)
	cycles := cyclesFor(t)

	for i := 0; i < 3; i++ {
		assert.Equal(t, StatusOverdue, cycles[i].Status(now))
	}
	assert.Equal(t, StatusActive, cycles[3].Status(now))
}

func TestPartialPaymentBalance(t *testing.T) {
	now := date(2025, 4, 20)
	c := cyclesFor(t, 0, 0, 0, 6000)[3]

	assert.True(t, c.Balance().Equal(decimal.NewFromInt(4000)))
	assert.Equal(t, StatusActive, c.Status(now))
	assert.Equal(t, PaymentPartial, DerivePaymentState(c.TotalOwed, c.Paid))

	// same payment, viewed after the cycle ended
	assert.Equal(t, StatusOverdue, c.Status(date(2025, 5, 15)))
}

func TestSettledWhenBalanceNotPositive(t *testing.T) {
	p := Period{Start: date(2025, 1, 1), End: date(2025, 2, 1)}

	assert.Equal(t, StatusSettled, DeriveStatus(p, decimal.Zero, date(2025, 3, 1)))
	assert.Equal(t, StatusSettled, DeriveStatus(p, decimal.NewFromInt(-5), date(2025, 1, 10)))
	assert.Equal(t, StatusPending, DeriveStatus(p, decimal.NewFromInt(5), date(2024, 12, 31)))
}

func TestDerivePaymentState(t *testing.T) {
	owed := decimal.NewFromInt(100)
	assert.Equal(t, PaymentUnpaid, DerivePaymentState(owed, decimal.Zero))
	assert.Equal(t, PaymentPartial, DerivePaymentState(owed, decimal.NewFromInt(40)))
	assert.Equal(t, PaymentPaid, DerivePaymentState(owed, decimal.NewFromInt(100)))
	assert.Equal(t, PaymentPaid, DerivePaymentState(owed, decimal.NewFromInt(150)))
}

func TestSummarize(t *testing.T) {
	now := date(2025, 4, 20)
	cycles := cyclesFor(t, 10000, 12000, 0, 6000)

	totals := Summarize(cycles, now)

	assert.True(t, totals.TotalBilled.Equal(decimal.NewFromInt(40000)))
	assert.True(t, totals.TotalPaid.Equal(decimal.NewFromInt(28000)))
	assert.True(t, totals.BalanceRemaining.Equal(decimal.NewFromInt(14000)))
	assert.True(t, totals.Credit.Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, 1, totals.OverdueCycles)
	assert.Equal(t, 3, totals.CurrentCycle)
}

func TestSummarizeEmpty(t *testing.T) {
	totals := Summarize(nil, date(2025, 4, 20))
	assert.True(t, totals.TotalPaid.IsZero())
	assert.Equal(t, -1, totals.CurrentCycle)
}

func TestCurrentIndexFallsBackToLast(t *testing.T) {
	cycles := cyclesFor(t)
	assert.Equal(t, 3, CurrentIndex(cycles, date(2025, 8, 1)))
}
