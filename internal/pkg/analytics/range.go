package analytics

import (
	"time"

	"github.com/digiworld/backoffice/internal/pkg/apperr"
	"github.com/digiworld/backoffice/internal/pkg/ledger"
)

// Range selects the reporting window of the dashboard.
type Range string

const (
	ThisMonth Range = "this-month"
	LastMonth Range = "last-month"
	ThisYear  Range = "this-year"
	AllTime   Range = "all-time"
)

// ParseRange defaults to this-month.
func ParseRange(value string) (Range, error) {
	switch r := Range(value); r {
	case "":
		return ThisMonth, nil
	case ThisMonth, LastMonth, ThisYear, AllTime:
		return r, nil
	}
	return "", apperr.Validation("unknown range %q, use this-month, last-month, this-year or all-time", value)
}

// Bounds returns the half-open window [from, to) at now. All-time has a zero from.
func (r Range) Bounds(now time.Time) (from, to time.Time) {
	today := ledger.Day(now)
	month := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)

	switch r {
	case LastMonth:
		return month.AddDate(0, -1, 0), month
	case ThisYear:
		return time.Date(today.Year(), 1, 1, 0, 0, 0, 0, time.UTC), today.AddDate(0, 0, 1)
	case AllTime:
		return time.Time{}, today.AddDate(0, 0, 1)
	default:
		return month, today.AddDate(0, 0, 1)
	}
}

// daily reports whether the chart is bucketed per day rather than per month.
func (r Range) daily() bool {
	return r == ThisMonth || r == LastMonth
}
