// Package analytics computes the dashboard figures from recorded payments.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/digiworld/backoffice/app/models"
	"github.com/digiworld/backoffice/app/repository"
	"github.com/digiworld/backoffice/internal/pkg/cache"
	"github.com/digiworld/backoffice/internal/pkg/ledger"
)

const (
	defaultTTL    = 10 * time.Minute
	uncategorized = "Uncategorized"
)

// Source is the part of the account repository the dashboard reads.
type Source interface {
	PaymentFacts(ctx context.Context, kind string, from, to time.Time) ([]repository.PaymentFact, error)
}

type Scorecards struct {
	Revenue   decimal.Decimal `json:"revenue"`
	Expense   decimal.Decimal `json:"expense"`
	NetProfit decimal.Decimal `json:"netProfit"`
}

// Point is one bucket of the revenue/expense chart.
type Point struct {
	Name    string          `json:"name"`
	Revenue decimal.Decimal `json:"revenue"`
	Expense decimal.Decimal `json:"expense"`
}

// Slice is one category of a pie chart.
type Slice struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
}

type Stats struct {
	Range               Range      `json:"range"`
	From                string     `json:"from,omitempty"`
	To                  string     `json:"to"`
	Scorecards          Scorecards `json:"scorecards"`
	ChartData           []Point    `json:"chartData"`
	ServiceData         []Slice    `json:"serviceData"`
	ExpenseDistribution []Slice    `json:"expenseDistribution"`
	GeneratedAt         time.Time  `json:"generatedAt"`
}

type Service struct {
	source Source
	cache  *cache.JSON
	ttl    time.Duration
	now    func() time.Time
}

// NewService builds the dashboard service. A nil cache disables caching.
func NewService(source Source, c *cache.JSON) *Service {
	return &Service{source: source, cache: c, ttl: defaultTTL, now: time.Now}
}

// WithClock overrides time.Now, mostly for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) WithTTL(ttl time.Duration) *Service {
	s.ttl = ttl
	return s
}

// Stats returns revenue (client payments) and expense (vendor payments) for the range.
func (s *Service) Stats(ctx context.Context, r Range) (*Stats, error) {
	now := s.now()
	key := fmt.Sprintf("stats:%s:%s", r, ledger.Day(now).Format("20060102"))

	if s.cache != nil {
		var cached Stats
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			log.Warnf("[Analytics] Cache read failed: %v", err)
		} else if hit {
			return &cached, nil
		}
	}

	from, to := r.Bounds(now)

	var revenue, expense []repository.PaymentFact
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		revenue, err = s.source.PaymentFacts(gctx, models.ACCOUNT_KIND_CLIENT, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		expense, err = s.source.PaymentFacts(gctx, models.ACCOUNT_KIND_VENDOR, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}

	stats := build(r, from, to, revenue, expense)
	stats.GeneratedAt = now.UTC()

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, stats, s.ttl); err != nil {
			log.Warnf("[Analytics] Cache write failed: %v", err)
		}
	}
	return stats, nil
}

// Invalidate drops every cached range. Called after payments and account changes.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Flush(ctx); err != nil {
		log.Warnf("[Analytics] Cache flush failed: %v", err)
	}
}

func build(r Range, from, to time.Time, revenue, expense []repository.PaymentFact) *Stats {
	st := &Stats{
		Range: r,
		To:    to.AddDate(0, 0, -1).Format("2006-01-02"),
		Scorecards: Scorecards{
			Revenue: sum(revenue),
			Expense: sum(expense),
		},
	}
	st.Scorecards.NetProfit = st.Scorecards.Revenue.Sub(st.Scorecards.Expense)

	if from.IsZero() {
		from = earliest(revenue, expense, to)
	} else {
		st.From = from.Format("2006-01-02")
	}

	st.ChartData = chart(r.daily(), from, to, revenue, expense)
	st.ServiceData = byCategory(revenue)
	st.ExpenseDistribution = byCategory(expense)
	return st
}

func sum(facts []repository.PaymentFact) decimal.Decimal {
	total := decimal.Zero
	for _, f := range facts {
		total = total.Add(f.Amount)
	}
	return total
}

func earliest(revenue, expense []repository.PaymentFact, fallback time.Time) time.Time {
	first := fallback
	for _, set := range [][]repository.PaymentFact{revenue, expense} {
		for _, f := range set {
			if d := ledger.Day(f.PaidOn); d.Before(first) {
				first = d
			}
		}
	}
	return first
}

func chart(daily bool, from, to time.Time, revenue, expense []repository.PaymentFact) []Point {
	bucket, step, layout := monthBucket, monthStep, "Jan 2006"
	if daily {
		bucket, step, layout = ledger.Day, dayStep, "02 Jan"
	}

	points := []Point{}
	index := map[time.Time]int{}
	for t := bucket(from); t.Before(to); t = step(t) {
		index[t] = len(points)
		points = append(points, Point{Name: t.Format(layout), Revenue: decimal.Zero, Expense: decimal.Zero})
	}

	for _, f := range revenue {
		if i, ok := index[bucket(f.PaidOn)]; ok {
			points[i].Revenue = points[i].Revenue.Add(f.Amount)
		}
	}
	for _, f := range expense {
		if i, ok := index[bucket(f.PaidOn)]; ok {
			points[i].Expense = points[i].Expense.Add(f.Amount)
		}
	}
	return points
}

func monthBucket(t time.Time) time.Time {
	d := ledger.Day(t)
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func monthStep(t time.Time) time.Time { return t.AddDate(0, 1, 0) }

func dayStep(t time.Time) time.Time { return t.AddDate(0, 0, 1) }

// byCategory groups amounts by account category, largest first.
func byCategory(facts []repository.PaymentFact) []Slice {
	totals := map[string]decimal.Decimal{}
	for _, f := range facts {
		name := f.Category
		if name == "" {
			name = uncategorized
		}
		totals[name] = totals[name].Add(f.Amount)
	}

	out := make([]Slice, 0, len(totals))
	for name, v := range totals {
		out = append(out, Slice{Name: name, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Value.Cmp(out[j].Value); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}
