package finance

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/digiworld/backoffice/app/models"
	"github.com/digiworld/backoffice/internal/pkg/apperr"
	"github.com/digiworld/backoffice/internal/pkg/ledger"
	"github.com/digiworld/backoffice/internal/pkg/upload"
)

const dateLayout = "2006-01-02"

var validate = validator.New()

// KindFromSegment maps the route segment ("clients", "vendors") to an account kind.
func KindFromSegment(segment string) (string, error) {
	switch strings.ToLower(segment) {
	case "clients", "client":
		return models.ACCOUNT_KIND_CLIENT, nil
	case "vendors", "vendor":
		return models.ACCOUNT_KIND_VENDOR, nil
	}
	return "", apperr.NotFound("unknown account type %q", segment)
}

// ServiceLine is one vendor service in a create or update request.
type ServiceLine struct {
	Name string          `json:"name" validate:"required,max=150"`
	Rate decimal.Decimal `json:"rate"`
}

// AccountInput creates a client or a vendor.
type AccountInput struct {
	Name         string          `json:"name" validate:"required,min=2,max=150"`
	Category     string          `json:"category" validate:"max=150"`
	AgreedAmount decimal.Decimal `json:"agreed_amount"`
	StartDate    string          `json:"start_date" validate:"required,datetime=2006-01-02"`
	Services     []ServiceLine   `json:"services" validate:"dive"`
}

// AccountUpdate changes the editable details. The start date is fixed once cycles exist.
type AccountUpdate struct {
	Name         string          `json:"name" validate:"required,min=2,max=150"`
	Category     string          `json:"category" validate:"max=150"`
	AgreedAmount decimal.Decimal `json:"agreed_amount"`
	Services     []ServiceLine   `json:"services" validate:"dive"`
}

// PaymentInput is a payment submission. A zero PaidOn means today, a zero CycleID the
// cycle containing today.
type PaymentInput struct {
	Amount     decimal.Decimal
	PaidOn     time.Time
	CycleID    uint
	Note       string `validate:"max=500"`
	Resolution ledger.Resolution
	Proof      *upload.Proof
}

// PaymentResult reports the outcome of AddPayment. Committed is false when the caller
// chose to correct an overpayment instead of recording it.
type PaymentResult struct {
	Committed bool           `json:"committed"`
	Payment   *PaymentView   `json:"payment,omitempty"`
	Account   *AccountDetail `json:"account"`
	Warnings  []string       `json:"warnings,omitempty"`
}

// CheckResult is the outcome of a catch-up run.
type CheckResult struct {
	Created int `json:"created"`
	Total   int `json:"total"`
}

type ServiceView struct {
	ID   uint            `json:"id"`
	Name string          `json:"name"`
	Rate decimal.Decimal `json:"rate"`
}

type PaymentView struct {
	ID             uint            `json:"id"`
	CycleID        uint            `json:"cycle_id"`
	Reference      string          `json:"reference"`
	Amount         decimal.Decimal `json:"amount"`
	PaidOn         string          `json:"date"`
	Note           string          `json:"note,omitempty"`
	ProofURL       string          `json:"screenshot_url,omitempty"`
	CarriedForward bool            `json:"carried_forward"`
	CreatedAt      time.Time       `json:"created_at"`
}

type CycleView struct {
	ID           uint                `json:"id"`
	Seq          int                 `json:"seq"`
	Label        string              `json:"label"`
	StartDate    string              `json:"start_date"`
	EndDate      string              `json:"end_date"`
	TotalOwed    decimal.Decimal     `json:"total_owed"`
	Paid         decimal.Decimal     `json:"paid"`
	BalanceDue   decimal.Decimal     `json:"balance_due"`
	Credit       decimal.Decimal     `json:"credit"`
	Status       ledger.Status       `json:"status"`
	PaymentState ledger.PaymentState `json:"payment_state"`
	Current      bool                `json:"current"`
	Payments     []PaymentView       `json:"payments"`
}

// CycleBrief is the current cycle as shown in list rows.
type CycleBrief struct {
	ID         uint            `json:"id"`
	Label      string          `json:"label"`
	Status     ledger.Status   `json:"status"`
	BalanceDue decimal.Decimal `json:"balance_due"`
}

// AccountSummary is a list row with the derived totals.
type AccountSummary struct {
	ID               uint            `json:"id"`
	Kind             string          `json:"kind"`
	Name             string          `json:"name"`
	Category         string          `json:"category"`
	AgreedAmount     decimal.Decimal `json:"agreed_amount"`
	StartDate        string          `json:"start_date"`
	Archived         bool            `json:"archived"`
	ArchivedAt       *time.Time      `json:"archived_at,omitempty"`
	Version          uint            `json:"version"`
	CycleCount       int             `json:"cycle_count"`
	TotalBilled      decimal.Decimal `json:"total_billed"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	BalanceRemaining decimal.Decimal `json:"balance_remaining"`
	Credit           decimal.Decimal `json:"credit"`
	OverdueCycles    int             `json:"overdue_cycles"`
	CurrentCycle     *CycleBrief     `json:"current_cycle,omitempty"`
}

// AccountDetail is the full account page.
type AccountDetail struct {
	AccountSummary
	Services []ServiceView `json:"services"`
	Cycles   []CycleView   `json:"cycles"`
}

// Receipt holds what the printable payment receipt shows.
type Receipt struct {
	Account  AccountSummary
	Cycle    CycleView
	Payment  PaymentView
	IssuedAt time.Time
}

func paymentView(p *models.Payment) PaymentView {
	return PaymentView{
		ID:             p.ID,
		CycleID:        p.CycleID,
		Reference:      p.Reference,
		Amount:         p.Amount,
		PaidOn:         p.PaidOn.Format(dateLayout),
		Note:           p.Note,
		ProofURL:       p.ProofURL,
		CarriedForward: p.CarriedForward,
		CreatedAt:      p.CreatedAt,
	}
}

func cycleView(c *models.BillingCycle, now time.Time, current bool) CycleView {
	st := c.State()
	balance := st.Balance()
	v := CycleView{
		ID:           c.ID,
		Seq:          c.Seq,
		Label:        c.Label,
		StartDate:    c.StartDate.Format(dateLayout),
		EndDate:      c.EndDate.Format(dateLayout),
		TotalOwed:    c.TotalOwed,
		Paid:         st.Paid,
		BalanceDue:   balance,
		Credit:       ledger.Credit(balance),
		Status:       st.Status(now),
		PaymentState: ledger.DerivePaymentState(c.TotalOwed, st.Paid),
		Current:      current,
		Payments:     make([]PaymentView, 0, len(c.Payments)),
	}
	for i := range c.Payments {
		v.Payments = append(v.Payments, paymentView(&c.Payments[i]))
	}
	return v
}

// Summarize derives the list row of an account at now.
func Summarize(a *models.Account, now time.Time) AccountSummary {
	states := a.CycleStates()
	totals := ledger.Summarize(states, now)

	s := AccountSummary{
		ID:               a.ID,
		Kind:             a.Kind,
		Name:             a.Name,
		Category:         a.Category,
		AgreedAmount:     a.AgreedAmount,
		StartDate:        a.StartDate.Format(dateLayout),
		Archived:         a.Archived,
		ArchivedAt:       a.ArchivedAt,
		Version:          a.Version,
		CycleCount:       len(a.Cycles),
		TotalBilled:      totals.TotalBilled,
		TotalPaid:        totals.TotalPaid,
		BalanceRemaining: totals.BalanceRemaining,
		Credit:           totals.Credit,
		OverdueCycles:    totals.OverdueCycles,
	}
	if i := totals.CurrentCycle; i >= 0 {
		c := a.Cycles[i]
		s.CurrentCycle = &CycleBrief{
			ID:         c.ID,
			Label:      c.Label,
			Status:     states[i].Status(now),
			BalanceDue: states[i].Balance(),
		}
	}
	return s
}

// Detail derives the full account view at now.
func Detail(a *models.Account, now time.Time) *AccountDetail {
	d := &AccountDetail{
		AccountSummary: Summarize(a, now),
		Services:       make([]ServiceView, 0, len(a.Services)),
		Cycles:         make([]CycleView, 0, len(a.Cycles)),
	}
	for _, s := range a.Services {
		d.Services = append(d.Services, ServiceView{ID: s.ID, Name: s.Name, Rate: s.Rate})
	}
	current := ledger.CurrentIndex(a.CycleStates(), now)
	for i := range a.Cycles {
		d.Cycles = append(d.Cycles, cycleView(&a.Cycles[i], now, i == current))
	}
	return d
}
