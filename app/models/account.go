package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/digiworld/backoffice/internal/pkg/ledger"
)

const (
	ACCOUNT_KIND_CLIENT = "client"
	ACCOUNT_KIND_VENDOR = "vendor"
)

// Account is a billable client or a paid vendor. Both kinds share the cycle and payment model.
type Account struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	Kind         string           `gorm:"type:varchar(20);not null;index:idx_accounts_kind_archived,priority:1" json:"kind" validate:"required,oneof=client vendor"`
	Name         string           `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	Category     string           `gorm:"type:varchar(150);default:''" json:"category" validate:"max=150"`
	AgreedAmount decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"agreed_amount"`
	StartDate    time.Time        `gorm:"type:date;not null" json:"start_date" validate:"required"`
	Archived     bool             `gorm:"not null;default:false;index:idx_accounts_kind_archived,priority:2" json:"archived"`
	ArchivedAt   *time.Time       `gorm:"type:timestamp;default:null" json:"archived_at,omitempty"`
	Version      uint             `gorm:"not null;default:1" json:"version"`
	Services     []AccountService `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"services,omitempty"`
	Cycles       []BillingCycle   `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"cycles,omitempty"`
	CreatedAt    time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *Account) Validate() error {
	v := validator.New()

	return v.Struct(a)
}

func (a *Account) IsVendor() bool {
	return a.Kind == ACCOUNT_KIND_VENDOR
}

// CycleStates maps the persisted cycles to the ledger view, in sequence order.
func (a *Account) CycleStates() []ledger.CycleState {
	out := make([]ledger.CycleState, len(a.Cycles))
	for i := range a.Cycles {
		out[i] = a.Cycles[i].State()
	}
	return out
}

// AccountService is one service line of a vendor with its monthly rate.
type AccountService struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	AccountID uint            `gorm:"not null;index" json:"account_id"`
	Name      string          `gorm:"type:varchar(150);not null" json:"name" validate:"required,max=150"`
	Rate      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"rate"`
	Position  int             `gorm:"not null;default:0" json:"position"`
}

// SumRates returns the agreed amount implied by a service list.
func SumRates(services []AccountService) decimal.Decimal {
	total := decimal.Zero
	for _, s := range services {
		total = total.Add(s.Rate)
	}
	return total
}

// BillingCycle is one monthly period of an account. TotalOwed is a snapshot of the
// agreed amount at the time the cycle was generated.
type BillingCycle struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	AccountID uint            `gorm:"not null;index:ux_billing_cycles_account_seq,unique,priority:1" json:"account_id"`
	Seq       int             `gorm:"not null;index:ux_billing_cycles_account_seq,unique,priority:2" json:"seq"`
	Label     string          `gorm:"type:varchar(40);not null" json:"label"`
	StartDate time.Time       `gorm:"type:date;not null" json:"start_date"`
	EndDate   time.Time       `gorm:"type:date;not null" json:"end_date"`
	TotalOwed decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_owed"`
	Payments  []Payment       `gorm:"foreignKey:CycleID;constraint:OnDelete:CASCADE" json:"payments,omitempty"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (c *BillingCycle) Period() ledger.Period {
	return ledger.Period{Start: ledger.Day(c.StartDate), End: ledger.Day(c.EndDate)}
}

func (c *BillingCycle) Paid() decimal.Decimal {
	amounts := make([]decimal.Decimal, len(c.Payments))
	for i, p := range c.Payments {
		amounts[i] = p.Amount
	}
	return ledger.Paid(amounts)
}

func (c *BillingCycle) State() ledger.CycleState {
	return ledger.CycleState{Period: c.Period(), TotalOwed: c.TotalOwed, Paid: c.Paid()}
}

// NewBillingCycle builds the row for a planned period.
func NewBillingCycle(accountID uint, seq int, p ledger.Period, owed decimal.Decimal) BillingCycle {
	return BillingCycle{
		AccountID: accountID,
		Seq:       seq,
		Label:     p.Label(),
		StartDate: p.Start,
		EndDate:   p.End,
		TotalOwed: owed,
	}
}

// Payment is an immutable payment row. Reference is a public identifier printed on receipts.
type Payment struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	AccountID      uint            `gorm:"not null;index" json:"account_id"`
	CycleID        uint            `gorm:"not null;index" json:"cycle_id"`
	Amount         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	PaidOn         time.Time       `gorm:"type:date;not null;index" json:"paid_on"`
	Reference      string          `gorm:"type:varchar(36);uniqueIndex;not null" json:"reference"`
	Note           string          `gorm:"type:varchar(500);default:''" json:"note,omitempty" validate:"max=500"`
	ProofKey       string          `gorm:"type:varchar(255);default:''" json:"-"`
	ProofURL       string          `gorm:"type:varchar(500);default:''" json:"proof_url,omitempty"`
	CarriedForward bool            `gorm:"not null;default:false" json:"carried_forward"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
