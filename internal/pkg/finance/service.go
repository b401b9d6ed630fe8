package finance

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/digiworld/backoffice/app/models"
	"github.com/digiworld/backoffice/app/repository"
	"github.com/digiworld/backoffice/internal/pkg/apperr"
	"github.com/digiworld/backoffice/internal/pkg/ledger"
	"github.com/digiworld/backoffice/internal/pkg/lock"
	"github.com/digiworld/backoffice/internal/pkg/metrics"
	"github.com/digiworld/backoffice/internal/pkg/proofstore"
)

const (
	defaultLockTTL  = 15 * time.Second
	defaultLockWait = 5 * time.Second
)

// Invalidator drops derived data (cached reports) after a ledger write.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// ProofJanitor removes proof objects in the background.
type ProofJanitor interface {
	DiscardProofs(ctx context.Context, keys []string) error
}

type Option func(*Service)

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithProofStore(store proofstore.Store) Option {
	return func(s *Service) { s.proofs = store }
}

// WithProofJanitor hands proof removal after a permanent delete to a background worker.
func WithProofJanitor(j ProofJanitor) Option {
	return func(s *Service) { s.janitor = j }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(s *Service) { s.metrics = m }
}

func WithInvalidator(inv Invalidator) Option {
	return func(s *Service) { s.invalidators = append(s.invalidators, inv) }
}

// WithLockTimings sets how long a lock is held at most and how long a writer waits for it.
func WithLockTimings(ttl, wait time.Duration) Option {
	return func(s *Service) {
		s.lockTTL = ttl
		s.lockWait = wait
	}
}

// Service reconciles clients and vendors against their billing cycles.
type Service struct {
	accounts     repository.AccountRepository
	locker       lock.Locker
	proofs       proofstore.Store
	janitor      ProofJanitor
	metrics      *metrics.Collector
	invalidators []Invalidator
	now          func() time.Time
	lockTTL      time.Duration
	lockWait     time.Duration
}

// NewService creates a finance service from an injected repository and locker.
func NewService(accounts repository.AccountRepository, locker lock.Locker, opts ...Option) *Service {
	s := &Service{
		accounts: accounts,
		locker:   locker,
		now:      time.Now,
		lockTTL:  defaultLockTTL,
		lockWait: defaultLockWait,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locker == nil {
		s.locker = lock.NewMemoryLocker()
	}
	return s
}

// NewServiceFromDB creates a finance service from a GORM DB handle with a process-local lock.
func NewServiceFromDB(db *gorm.DB, opts ...Option) *Service {
	return NewService(repository.NewAccountRepository(db), lock.NewMemoryLocker(), opts...)
}

func (s *Service) today() time.Time {
	return ledger.Day(s.now())
}

// ListAccounts returns active or archived accounts of one kind. Stored cycles are used
// as they are; catch-up happens when an account is opened.
func (s *Service) ListAccounts(ctx context.Context, kind string, archived bool) ([]AccountSummary, error) {
	accounts, err := s.accounts.List(ctx, kind, archived)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]AccountSummary, 0, len(accounts))
	for i := range accounts {
		out = append(out, Summarize(&accounts[i], now))
	}
	return out, nil
}

// GetAccount generates any missing cycles and returns the account with derived fields.
func (s *Service) GetAccount(ctx context.Context, kind string, id uint) (*AccountDetail, error) {
	acc, _, err := s.catchUp(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	return Detail(acc, s.now()), nil
}

// CheckCycles runs the catch-up and reports how many cycles it added.
func (s *Service) CheckCycles(ctx context.Context, kind string, id uint) (*CheckResult, error) {
	acc, created, err := s.catchUp(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	return &CheckResult{Created: created, Total: len(acc.Cycles)}, nil
}

// CreateAccount validates the input and stores the account with every cycle that has
// already started.
func (s *Service) CreateAccount(ctx context.Context, kind string, in AccountInput) (*AccountDetail, error) {
	if err := validate.Struct(in); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	start, err := time.Parse(dateLayout, in.StartDate)
	if err != nil {
		return nil, apperr.Validation("start_date must be YYYY-MM-DD")
	}

	acc := &models.Account{
		Kind:      kind,
		Name:      in.Name,
		Category:  in.Category,
		StartDate: ledger.Day(start),
		Version:   1,
	}
	if err := applyAmount(acc, in.AgreedAmount, in.Services); err != nil {
		return nil, err
	}
	if err := acc.Validate(); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	for i, p := range ledger.PlanCycles(acc.StartDate, 0, s.now()) {
		acc.Cycles = append(acc.Cycles, models.NewBillingCycle(0, i, p, acc.AgreedAmount))
	}

	if err := s.accounts.Create(ctx, acc); err != nil {
		return nil, err
	}
	s.metrics.CyclesCreated(kind, len(acc.Cycles))
	log.Infof("[Finance] Created %s %d (%s) with %d cycles", kind, acc.ID, acc.Name, len(acc.Cycles))

	return s.GetAccount(ctx, kind, acc.ID)
}

// UpdateAccount changes name, category and the agreed amount. Cycles already generated
// keep their snapshot; only cycles generated afterwards use the new amount.
func (s *Service) UpdateAccount(ctx context.Context, kind string, id uint, in AccountUpdate) (*AccountDetail, error) {
	if err := validate.Struct(in); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	acc, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if acc.Archived {
		return nil, apperr.Validation("archived accounts are read-only")
	}

	acc.Name = in.Name
	acc.Category = in.Category
	if err := applyAmount(acc, in.AgreedAmount, in.Services); err != nil {
		return nil, err
	}
	if err := s.accounts.UpdateDetails(ctx, acc, acc.Version); err != nil {
		return nil, mapWriteErr(err, kind, id)
	}
	s.invalidate(ctx)

	acc, err = s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	return Detail(acc, s.now()), nil
}

// Archive hides the account from the active list and keeps its history. Archiving an
// archived account is a no-op.
func (s *Service) Archive(ctx context.Context, kind string, id uint) error {
	release, err := s.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	acc, err := s.load(ctx, kind, id)
	if err != nil {
		return err
	}
	if acc.Archived {
		return nil
	}
	if err := s.accounts.SetArchived(ctx, id, s.now().UTC()); err != nil {
		return mapWriteErr(err, kind, id)
	}
	s.invalidate(ctx)
	log.Infof("[Finance] Archived %s %d", kind, id)
	return nil
}

// DeletePermanently removes an archived account with all cycles and payments. Proof
// objects are removed afterwards; failures there are only logged.
func (s *Service) DeletePermanently(ctx context.Context, kind string, id uint) error {
	release, err := s.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	acc, err := s.load(ctx, kind, id)
	if err != nil {
		return err
	}
	if !acc.Archived {
		return apperr.Precondition("%s %d must be archived before it can be deleted", kind, id)
	}

	keys, err := s.accounts.DeleteCascade(ctx, id)
	if err != nil {
		return mapWriteErr(err, kind, id)
	}
	s.invalidate(ctx)
	log.Infof("[Finance] Deleted %s %d permanently (%d proofs)", kind, id, len(keys))

	s.discardProofs(ctx, keys)
	return nil
}

func (s *Service) discardProofs(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	if s.janitor != nil {
		err := s.janitor.DiscardProofs(ctx, keys)
		if err == nil {
			return
		}
		log.Warnf("[Finance] Proof cleanup could not be queued, deleting inline: %v", err)
	}
	if s.proofs == nil {
		return
	}
	for _, key := range keys {
		if err := s.proofs.Delete(ctx, key); err != nil {
			log.Warnf("[Finance] Failed to delete proof %s: %v", key, err)
		}
	}
}

// SweepCycles runs the catch-up for every active client and vendor and returns the
// number of cycles created. A failing account is logged and skipped.
func (s *Service) SweepCycles(ctx context.Context) (int, error) {
	total := 0
	for _, kind := range []string{models.ACCOUNT_KIND_CLIENT, models.ACCOUNT_KIND_VENDOR} {
		accounts, err := s.accounts.List(ctx, kind, false)
		if err != nil {
			return total, err
		}
		for i := range accounts {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			_, created, err := s.catchUp(ctx, kind, accounts[i].ID)
			if err != nil {
				log.Warnf("[Finance] Sweep skipped %s %d: %v", kind, accounts[i].ID, err)
				continue
			}
			total += created
		}
	}
	return total, nil
}

// Receipt collects the data for a printable payment receipt.
func (s *Service) Receipt(ctx context.Context, kind string, id, paymentID uint) (*Receipt, error) {
	acc, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	p, err := s.accounts.GetPayment(ctx, id, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("payment %d not found", paymentID)
		}
		return nil, err
	}

	now := s.now()
	for i := range acc.Cycles {
		if acc.Cycles[i].ID == p.CycleID {
			return &Receipt{
				Account:  Summarize(acc, now),
				Cycle:    cycleView(&acc.Cycles[i], now, false),
				Payment:  paymentView(p),
				IssuedAt: now,
			}, nil
		}
	}
	return nil, apperr.NotFound("payment %d not found", paymentID)
}

// load fetches an account and hides accounts of the other kind.
func (s *Service) load(ctx context.Context, kind string, id uint) (*models.Account, error) {
	acc, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("%s %d not found", kind, id)
		}
		return nil, err
	}
	if acc.Kind != kind {
		return nil, apperr.NotFound("%s %d not found", kind, id)
	}
	return acc, nil
}

// catchUp locks the account and appends the cycles that started since the last view.
func (s *Service) catchUp(ctx context.Context, kind string, id uint) (*models.Account, int, error) {
	acc, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, 0, err
	}
	if acc.Archived || len(ledger.PlanCycles(acc.StartDate, len(acc.Cycles), s.now())) == 0 {
		return acc, 0, nil
	}

	release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	defer release()

	// another writer may have generated them while we waited
	acc, err = s.load(ctx, kind, id)
	if err != nil {
		return nil, 0, err
	}
	return s.appendMissing(ctx, acc)
}

// appendMissing must run under the account lock.
func (s *Service) appendMissing(ctx context.Context, acc *models.Account) (*models.Account, int, error) {
	planned := ledger.PlanCycles(acc.StartDate, len(acc.Cycles), s.now())
	if acc.Archived || len(planned) == 0 {
		return acc, 0, nil
	}

	cycles := make([]models.BillingCycle, 0, len(planned))
	for i, p := range planned {
		cycles = append(cycles, models.NewBillingCycle(acc.ID, len(acc.Cycles)+i, p, acc.AgreedAmount))
	}
	if err := s.accounts.AppendCycles(ctx, acc.ID, acc.Version, cycles); err != nil {
		return nil, 0, mapWriteErr(err, acc.Kind, acc.ID)
	}
	s.metrics.CyclesCreated(acc.Kind, len(cycles))
	log.Infof("[Finance] Generated %d cycles for %s %d", len(cycles), acc.Kind, acc.ID)

	fresh, err := s.load(ctx, acc.Kind, acc.ID)
	if err != nil {
		return nil, 0, err
	}
	return fresh, len(cycles), nil
}

// acquire takes the account lock. When the lock backend itself is down the write still
// proceeds and the version check is the only guard.
func (s *Service) acquire(ctx context.Context, id uint) (func(), error) {
	lctx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	release, err := s.locker.Acquire(lctx, lock.AccountKey(id), s.lockTTL)
	if err == nil {
		return release, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, apperr.Conflict("account %d is being updated, please retry", id)
	}
	log.Warnf("[Finance] Lock backend unavailable for account %d, relying on version check: %v", id, err)
	return func() {}, nil
}

func (s *Service) invalidate(ctx context.Context) {
	for _, inv := range s.invalidators {
		inv.Invalidate(ctx)
	}
}

func mapWriteErr(err error, kind string, id uint) error {
	switch {
	case errors.Is(err, repository.ErrStaleVersion):
		return apperr.Conflict("%s %d was changed by another request, reload and retry", kind, id)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound("%s %d not found", kind, id)
	}
	return err
}

// applyAmount sets the agreed amount. Clients carry it directly; for vendors it is the
// sum of the service rates.
func applyAmount(acc *models.Account, agreed decimal.Decimal, lines []ServiceLine) error {
	if !acc.IsVendor() {
		if !agreed.IsPositive() {
			return apperr.Validation("agreed_amount must be greater than zero")
		}
		if err := checkAmount("agreed_amount", agreed); err != nil {
			return err
		}
		acc.AgreedAmount = agreed.Round(2)
		return nil
	}

	if len(lines) == 0 {
		return apperr.Validation("a vendor needs at least one service")
	}
	services := make([]models.AccountService, 0, len(lines))
	for i, l := range lines {
		if l.Rate.IsNegative() {
			return apperr.Validation("rate of service %q must not be negative", l.Name)
		}
		if err := checkAmount("rate", l.Rate); err != nil {
			return err
		}
		services = append(services, models.AccountService{Name: l.Name, Rate: l.Rate.Round(2), Position: i})
	}
	total := models.SumRates(services)
	if !total.IsPositive() {
		return apperr.Validation("the services of a vendor must add up to more than zero")
	}
	if err := checkAmount("the sum of service rates", total); err != nil {
		return err
	}
	acc.Services = services
	acc.AgreedAmount = total
	return nil
}
