package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/digiworld/backoffice/app/models"
)

// accountRepository implements the AccountRepository interface
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new account repository instance
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

// withLedger preloads services, cycles and payments in display order
func withLedger(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Services", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).
		Preload("Cycles", func(db *gorm.DB) *gorm.DB {
			return db.Order("seq ASC")
		}).
		Preload("Cycles.Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("paid_on ASC, id ASC")
		})
}

// bumpVersion is the compare-and-swap every dependent write goes through
func bumpVersion(tx *gorm.DB, id, expected uint) error {
	res := tx.Model(&models.Account{}).
		Where("id = ? AND version = ?", id, expected).
		Update("version", gorm.Expr("version + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	return nil
}

// Create inserts the account together with its services and initial cycles
func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.Version == 0 {
		account.Version = 1
	}
	return r.db.WithContext(ctx).Create(account).Error
}

// GetByID retrieves an account with its full ledger
func (r *accountRepository) GetByID(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	if err := withLedger(r.db.WithContext(ctx)).First(&account, id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// List returns the accounts of one kind, split by the archived flag
func (r *accountRepository) List(ctx context.Context, kind string, archived bool) ([]models.Account, error) {
	var accounts []models.Account
	err := withLedger(r.db.WithContext(ctx)).
		Where("kind = ? AND archived = ?", kind, archived).
		Order("created_at DESC, id DESC").
		Find(&accounts).Error
	return accounts, err
}

func (r *accountRepository) AppendCycles(ctx context.Context, accountID, expectedVersion uint, cycles []models.BillingCycle) error {
	if len(cycles) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := bumpVersion(tx, accountID, expectedVersion); err != nil {
			return err
		}
		return tx.Create(&cycles).Error
	})
}

func (r *accountRepository) InsertPayment(ctx context.Context, accountID, expectedVersion uint, payment *models.Payment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := bumpVersion(tx, accountID, expectedVersion); err != nil {
			return err
		}
		return tx.Create(payment).Error
	})
}

// AttachProof records the stored proof on an existing payment
func (r *accountRepository) AttachProof(ctx context.Context, paymentID uint, key, url string) error {
	return r.db.WithContext(ctx).Model(&models.Payment{}).Where("id = ?", paymentID).
		Updates(map[string]interface{}{"proof_key": key, "proof_url": url}).Error
}

// UpdateDetails writes name, category and agreed amount. For vendors the service list
// is replaced as a whole. Existing cycles are never touched.
func (r *accountRepository) UpdateDetails(ctx context.Context, account *models.Account, expectedVersion uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := bumpVersion(tx, account.ID, expectedVersion); err != nil {
			return err
		}
		err := tx.Model(&models.Account{}).Where("id = ?", account.ID).Updates(map[string]interface{}{
			"name":          account.Name,
			"category":      account.Category,
			"agreed_amount": account.AgreedAmount,
		}).Error
		if err != nil {
			return err
		}
		if !account.IsVendor() {
			return nil
		}

		if err := tx.Where("account_id = ?", account.ID).Delete(&models.AccountService{}).Error; err != nil {
			return err
		}
		for i := range account.Services {
			account.Services[i].ID = 0
			account.Services[i].AccountID = account.ID
			account.Services[i].Position = i
		}
		if len(account.Services) > 0 {
			return tx.Create(&account.Services).Error
		}
		return nil
	})
	if err == nil {
		account.Version = expectedVersion + 1
	}
	return err
}

// SetArchived flags the account as archived, keeping all history
func (r *accountRepository) SetArchived(ctx context.Context, id uint, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Updates(map[string]interface{}{
		"archived":    true,
		"archived_at": at,
		"version":     gorm.Expr("version + 1"),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteCascade removes the account and everything it owns. It returns the proof keys
// of the deleted payments so the caller can clean up object storage.
func (r *accountRepository) DeleteCascade(ctx context.Context, id uint) ([]string, error) {
	var keys []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Payment{}).
			Where("account_id = ? AND proof_key <> ''", id).
			Pluck("proof_key", &keys).Error; err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", id).Delete(&models.Payment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", id).Delete(&models.BillingCycle{}).Error; err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", id).Delete(&models.AccountService{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Account{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// GetPayment retrieves a payment that belongs to the given account
func (r *accountRepository) GetPayment(ctx context.Context, accountID, paymentID uint) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("id = ? AND account_id = ?", paymentID, accountID).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// PaymentFacts returns payments of one account kind with paid_on in [from, to).
// A zero from or to leaves that side open.
func (r *accountRepository) PaymentFacts(ctx context.Context, kind string, from, to time.Time) ([]PaymentFact, error) {
	q := r.db.WithContext(ctx).Table("payments").
		Select("payments.amount AS amount, payments.paid_on AS paid_on, accounts.kind AS kind, accounts.category AS category").
		Joins("JOIN accounts ON accounts.id = payments.account_id").
		Where("accounts.kind = ?", kind)
	if !from.IsZero() {
		q = q.Where("payments.paid_on >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("payments.paid_on < ?", to)
	}

	var facts []PaymentFact
	err := q.Order("payments.paid_on ASC").Scan(&facts).Error
	return facts, err
}
