// Package ledger holds the billing-cycle and payment reconciliation rules.
//
// Everything here is a pure function over amounts, payments and a reference time.
// Persistence, locking and transport live in the finance service.
package ledger

import (
	"fmt"
	"time"
)

const labelLayout = "02/01/2006"

// Period is a half-open calendar range [Start, End).
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the calendar day of t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(p.Start) && d.Before(p.End)
}

// Label renders the period the way it is shown to admins, with an inclusive last day.
func (p Period) Label() string {
	return fmt.Sprintf("%s - %s", p.Start.Format(labelLayout), p.End.AddDate(0, 0, -1).Format(labelLayout))
}

// Day normalizes t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddMonths returns the date n months after anchor. The day of month is clamped to the
// length of the target month, so a 31st anchor yields the last day of shorter months
// instead of spilling into the following month.
func AddMonths(anchor time.Time, n int) time.Time {
	a := Day(anchor)
	y, m, d := a.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

// CyclePeriod returns the period of the cycle with the given zero-based index.
func CyclePeriod(start time.Time, index int) Period {
	return Period{Start: AddMonths(start, index), End: AddMonths(start, index+1)}
}

// PlanCycles returns the periods that must be appended to an account which already
// owns `existing` cycles so that its cycles cover today. An account whose start date
// lies in the future gets none. Calling it again with the new count is a no-op.
func PlanCycles(start time.Time, existing int, now time.Time) []Period {
	if existing < 0 {
		existing = 0
	}
	today := Day(now)
	var planned []Period
	for i := existing; ; i++ {
		p := CyclePeriod(start, i)
		if p.Start.After(today) {
			break
		}
		planned = append(planned, p)
	}
	return planned
}
