package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/digiworld/backoffice/app/models"
)

// ErrStaleVersion is returned when an account changed between read and write.
var ErrStaleVersion = errors.New("account version is stale")

// AccountRepository defines the persistence operations for clients and vendors.
// Writes that depend on a previously read account take its version and fail with
// ErrStaleVersion when it moved.
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id uint) (*models.Account, error)
	List(ctx context.Context, kind string, archived bool) ([]models.Account, error)
	AppendCycles(ctx context.Context, accountID, expectedVersion uint, cycles []models.BillingCycle) error
	InsertPayment(ctx context.Context, accountID, expectedVersion uint, payment *models.Payment) error
	AttachProof(ctx context.Context, paymentID uint, key, url string) error
	UpdateDetails(ctx context.Context, account *models.Account, expectedVersion uint) error
	SetArchived(ctx context.Context, id uint, at time.Time) error
	DeleteCascade(ctx context.Context, id uint) (proofKeys []string, err error)
	GetPayment(ctx context.Context, accountID, paymentID uint) (*models.Payment, error)
	PaymentFacts(ctx context.Context, kind string, from, to time.Time) ([]PaymentFact, error)
}

// PaymentFact is a flattened payment row joined with its account, used for reporting.
type PaymentFact struct {
	Amount   decimal.Decimal
	PaidOn   time.Time
	Kind     string
	Category string
}

// LeadRepository defines the operations for contact form leads
type LeadRepository interface {
	Create(ctx context.Context, lead *models.Lead) error
	List(ctx context.Context, offset, limit int) ([]models.Lead, error)
	Count(ctx context.Context) (int64, error)
}

// AdminRepository defines the operations for back office operators
type AdminRepository interface {
	Create(ctx context.Context, admin *models.Admin) error
	GetByID(ctx context.Context, id uint) (*models.Admin, error)
	GetByEmail(ctx context.Context, email string) (*models.Admin, error)
	TouchLogin(ctx context.Context, id uint, at time.Time) error
	Count(ctx context.Context) (int64, error)
}

// SettingRepository defines the interface for business settings
type SettingRepository interface {
	Get(ctx context.Context) (models.BusinessSettings, error)
	Save(ctx context.Context, settings models.BusinessSettings) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	Account AccountRepository
	Lead    LeadRepository
	Admin   AdminRepository
	Setting SettingRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Account: NewAccountRepository(db),
		Lead:    NewLeadRepository(db),
		Admin:   NewAdminRepository(db),
		Setting: NewSettingRepository(db),
	}
}
