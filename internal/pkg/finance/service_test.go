package finance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digiworld/backoffice/app/models"
	"github.com/digiworld/backoffice/app/repository"
	"github.com/digiworld/backoffice/internal/pkg/apperr"
	"github.com/digiworld/backoffice/internal/pkg/database/dbtest"
	"github.com/digiworld/backoffice/internal/pkg/ledger"
	"github.com/digiworld/backoffice/internal/pkg/lock"
	"github.com/digiworld/backoffice/internal/pkg/upload"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type memProofs struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    error
}

func (m *memProofs) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return "", m.fail
	}
	m.objects[key] = body
	return "/uploads/" + key, nil
}

func (m *memProofs) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

type countingInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (c *countingInvalidator) Invalidate(context.Context) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
}

type fixture struct {
	svc    *Service
	clock  *clock
	proofs *memProofs
	inv    *countingInvalidator
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	f := &fixture{
		clock:  &clock{t: now},
		proofs: &memProofs{objects: map[string][]byte{}},
		inv:    &countingInvalidator{},
	}
	f.svc = NewServiceFromDB(dbtest.Open(t),
		WithClock(f.clock.Now),
		WithProofStore(f.proofs),
		WithInvalidator(f.inv),
	)
	return f
}

func at(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func amount(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func (f *fixture) client(t *testing.T, start string, agreed int64) *AccountDetail {
	t.Helper()
	d, err := f.svc.CreateAccount(context.Background(), models.ACCOUNT_KIND_CLIENT, AccountInput{
		Name:         "Acme Retail",
		Category:     "SEO",
		AgreedAmount: amount(agreed),
		StartDate:    start,
	})
	require.NoError(t, err)
	return d
}

func statuses(d *AccountDetail) []ledger.Status {
	out := make([]ledger.Status, len(d.Cycles))
	for i, c := range d.Cycles {
		out[i] = c.Status
	}
	return out
}

func TestCreateClientGeneratesStartedCycles(t *testing.T) {
	f := newFixture(t, at(2025, 4, 20))
	d := f.client(t, "2025-01-15", 10000)

	require.Len(t, d.Cycles, 4)
	assert.Equal(t, "2025-01-15", d.Cycles[0].StartDate)
	assert.Equal(t, "2025-05-15", d.Cycles[3].EndDate)
	assert.Equal(t, "15/04/2025 - 14/05/2025", d.Cycles[3].Label)
	assert.Equal(t, []ledger.Status{
		ledger.StatusOverdue, ledger.StatusOverdue, ledger.StatusOverdue, ledger.StatusActive,
	}, statuses(d))
	assert.True(t, d.Cycles[3].Current)
	assert.True(t, amount(40000).Equal(d.BalanceRemaining))
	assert.Equal(t, 3, d.OverdueCycles)
}

func TestCreateFutureClientHasNoCycles(t *testing.T) {
	f := newFixture(t, at(2025, 4, 20))
	d := f.client(t, "2025-06-01", 10000)
	assert.Empty(t, d.Cycles)
	assert.Nil(t, d.CurrentCycle)

	_, err := f.svc.AddPayment(context.Background(), models.ACCOUNT_KIND_CLIENT, d.ID, PaymentInput{Amount: amount(100)})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, at(2025, 4, 20))
	ctx := context.Background()

	_, err := f.svc.CreateAccount(ctx, models.ACCOUNT_KIND_CLIENT, AccountInput{Name: "Acme", StartDate: "2025-01-01"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.CreateAccount(ctx, models.ACCOUNT_KIND_CLIENT, AccountInput{Name: "Acme", AgreedAmount: amount(10), StartDate: "01/01/2025"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.CreateAccount(ctx, models.ACCOUNT_KIND_VENDOR, AccountInput{Name: "Hosting Co", StartDate: "2025-01-01"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.CreateAccount(ctx, models.ACCOUNT_KIND_VENDOR, AccountInput{
		Name:      "Hosting Co",
		StartDate: "2025-01-01",
		Services:  []ServiceLine{{Name: "VPS", Rate: amount(-5)}},
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCreateVendorSumsServiceRates(t *testing.T) {
	f := newFixture(t, at(2025, 4, 20))
	d, err := f.svc.CreateAccount(context.Background(), models.ACCOUNT_KIND_VENDOR, AccountInput{
		Name:      "Hosting Co",
		Category:  "Infrastructure",
		StartDate: "2025-04-01",
		// the client-side amount is ignored for vendors
		AgreedAmount: amount(1),
		Services: []ServiceLine{
			{Name: "VPS", Rate: decimal.RequireFromString("1200.50")},
			{Name: "Backups", Rate: amount(300)},
		},
	})
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("1500.50").Equal(d.AgreedAmount))
	require.Len(t, d.Services, 2)
	assert.Equal(t, "VPS", d.Services[0].Name)
	require.Len(t, d.Cycles, 1)
	assert.True(t, d.AgreedAmount.Equal(d.Cycles[0].TotalOwed))
	assert.Equal(t, ledger.PaymentUnpaid, d.Cycles[0].PaymentState)
}

func TestGetAccountCatchesUp(t *testing.T) {
	f := newFixture(t, at(2025, 1, 20))
	ctx := context.Background()
	d := f.client(t, "2025-01-15", 10000)
	require.Len(t, d.Cycles, 1)

	f.clock.Set(at(2025, 4, 20))
	got, err := f.svc.GetAccount(ctx, models.ACCOUNT_KIND_CLIENT, d.ID)
	require.NoError(t, err)
	require.Len(t, got.Cycles, 4)
	for i := 1; i < len(got.Cycles); i++ {
		assert.Equal(t, got.Cycles[i-1].EndDate, got.Cycles[i].StartDate)
		assert.Equal(t, i, got.Cycles[i].Seq)
	}

	res, err := f.svc.CheckCycles(ctx, models.ACCOUNT_KIND_CLIENT, d.ID)
	require.NoError(t, err)
	assert.Equal(t, &CheckResult{Created: 0, Total: 4}, res)
}

func TestCheckCyclesReportsCreated(t *testing.T) {
	f := newFixture(t, at(2025, 1, 20))
	d := f.client(t, "2025-01-15", 10000)

	f.clock.Set(at(2025, 3, 16))
	res, err := f.svc.CheckCycles(context.Background(), models.ACCOUNT_KIND_CLIENT, d.ID)
	require.NoError(t, err)
	assert.Equal(t, &CheckResult{Created: 2, Total: 3}, res)
}

func TestGetAccountOfOtherKindIsNotFound(t *testing.T) {
	f := newFixture(t, at(2025, 4, 20))
	d := f.client(t, "2025-01-15", 10000)

	_, err := f.svc.GetAccount(context.Background(), models.ACCOUNT_KIND_VENDOR, d.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.GetAccount(context.Background(), models.ACCOUNT_KIND_CLIENT, 999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAddPartialPayment(t *testing.T) {
	f := newFixture(t, at(2025, 4, 20))
	d := f.client(t, "2025-04-15", 10000)

	res, err := f.svc.AddPayment(context.Background(), models.ACCOUNT_KIND_CLIENT, d.ID, PaymentInput{
		Amount: amount(6000),
		Note:   "bank transfer",
	})
	require.NoError(t, err)
	require.True(t, res.Committed)
	require.NotNil(t, res.Payment)
	assert.Len(t, res.Payment.Reference, 36)
	assert.Equal(t, "2025-04-20", res.Payment.PaidOn)

	c := res.Account.Cycles[0]
	assert.True(t, amount(4000).Equal(c.BalanceDue))
	assert.Equal(t, ledger.StatusActive, c.Status)
	assert.Equal(t, ledger.PaymentPartial, c.PaymentState)
	assert.Equal(t, 1, f.inv.calls)

	f.clock.Set(at(2025, 5, 15))
	got, err := f.svc.GetAccount(context.Background(), models.ACCOUNT_KIND_CLIENT, d.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusOverdue, got.Cycles[0].Status)
	assert.Equal(t, ledger.StatusActive, got.Cycles[1].Status)
}

func TestPaymentThatSettlesCycle(t *testing.T) {
	f := newFixture(t, at(2025, 4, 20))
	d := f.client(t, "2025-04-15", 10000)

	res, err := f.svc.AddPayment(context.Background(), models.ACCOUNT_KIND_CLIENT, d.ID, PaymentInput{Amount: amount(10000)})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSettled, res.Account.Cycles[0].Status)
	assert.True(t, res.Account.BalanceRemaining.IsZero())
}

func TestOverpaymentRequiresDecision(t *testing.T) {
	f := newFixture(t, at(2025, 4, 20))
	ctx := context.Background()
	d := f.client(t, "2025-04-15", 10000)

	_, err := f.svc.AddPayment(ctx, models.ACCOUNT_KIND_CLIENT, d.ID, PaymentInput{Amount: amount(5000)})
	require.NoError(t, err)

	_, err = f.svc.AddPayment(ctx, models.ACCOUNT_KIND_CLIENT, d.ID, PaymentInput{Amount: amount(7000)})
	var over *ledger.OverpaymentError
	require.True(t, errors.As(err, &over))
	assert.True(t, amount(5000).Equal(over.Balance))
	assert.True(t, amount(2000).Equal(over.Excess()))

	got, err := f.svc.GetAccount(ctx, models.ACCOUNT_KIND_CLIENT, d.ID)
	require.NoError(t, err)
	assert.Len(t, got.Cycles[0].Payments, 1)
}

func TestOverpaymentCorrectAmountCommitsNothing(t *testing.T) {
	f := newFixture(t, at(2025, 4, 20))
	ctx := context.Background()
	d := f.client(t, "2025-04-15", 10000)
	_, err := f.svc.AddPayment(ctx, models.ACCOUNT_KIND_CLIENT, d.ID, PaymentInput{Amount: amount(5000)})
	require.NoError(t, err)

	res, err := f.svc.AddPayment(ctx, models.ACCOUNT_KIND_CLIENT, d.ID, PaymentInput{
		Amount:     amount(7000),
		Resolution: ledger.ResolutionCorrectAmount,
	})
	require.NoError(t, err)
	assert.False(t, res.Committed)
	assert.Nil(t, res.Payment)
	assert.Len(t, res.Account.Cycles[0].Payments, 1)
	assert.True(t, amount(5000).Equal(res.Account.Cycles[0].BalanceDue))
}

func TestOverpaymentCarryForward(t *testing.T) {
	f := newFixture(t, at(2025, 4, 20))
	ctx := context.Background()
	d := f.client(t, "2025-04-15", 10000)
	_, err := f.svc.AddPayment(ctx, models.ACCOUNT_KIND_CLIENT, d.ID, PaymentInput{Amount: amount(5000)})
	require.NoError(t, err)

	res, err := f.svc.AddPayment(ctx, models.ACCOUNT_KIND_CLIENT, d.ID, PaymentInput{
		Amount:     amount(7000),
		Resolution: ledger.ResolutionCarryForward,
	})
	require.NoError(t, err)
	require.True(t, res.Committed)
	assert.True(t, res.Payment.CarriedForward)
	assert.True(t, amount(7000).Equal(res.Payment.Amount))

	c := res.Account.Cycles[0]
	assert.Len(t, c.Payments, 2)
	assert.True(t, amount(-2000).Equal(c.BalanceDue))
	assert.True(t, amount(2000).Equal(c.Credit))
	assert.Equal(t, ledger.StatusSettled, c.Status)
	assert.True(t, amount(2000).Equal(res.Account.Credit))

	f.clock.Set(at(2025, 5, 20))
	got, err := f.svc.GetAccount(ctx, models.ACCOUNT_KIND_CLIENT, d.ID)
	require.NoError(t, err)
	require.Len(t, got.Cycles, 2)
	assert.True(t, amount(10000).Equal(got.Cycles[1].BalanceDue))
	assert.True(t, amount(12000).Equal(got.TotalPaid))
}

func TestPaymentOnSettledCycleFits(t *testing.T) {
	f := newFixture(t, at(2025, 4, 20))
	ctx := context.Background()
	d := f.client(t, "2025-04-15", 10000)
	_, err := f.svc.AddPayment(ctx, models.ACCOUNT_KIND_CLIENT, d.ID, PaymentInput{Amount: amount(10000)})
	require.NoError(t, err)

	res, err := f.svc.AddPayment(ctx, models.ACCOUNT_KIND_CLIENT, d.ID, PaymentInput{Amount: amount(500)})
	require.NoError(t, err)
	assert.True(t, amount(-500).Equal(res.Account.Cycles[0].BalanceDue))
}

func TestPaymentToExplicitCycle(t *testing.T) {
	f := newFixture(t, at(2025, 4, 20))
	ctx := context.Background()
	d := f.client(t, "2025-01-15", 10000)

	res, err := f.svc.AddPayment(ctx, models.ACCOUNT_KIND_CLIENT, d.ID, PaymentInput{
		Amount:  amount(10000),
		CycleID: d.Cycles[0].ID,
		PaidOn:  at(2025, 2, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-02-01", res.Payment.PaidOn)
	assert.Equal(t, ledger.StatusSettled, res.Account.Cycles[0].Status)
	assert.Equal(t, 2, res.Account.OverdueCycles)

	_, err = f.svc.AddPayment(ctx, models.ACCOUNT_KIND_CLIENT, d.ID, PaymentInput{Amount: amount(1), CycleID: 9999})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPaymentInputValidation(t *testing.T) {
	f := newFixture(t, at(2025, 4, 20))
	ctx := context.Background()
	d := f.client(t, "2025-04-15", 10000)

	for name, in := range map[string]PaymentInput{
		"zero":        {Amount: decimal.Zero},
		"negative":    {Amount: amount(-1)},
		"fractional":  {Amount: decimal.RequireFromString("10.005")},
		"future date": {Amount: amount(10), PaidOn: at(2025, 4, 21)},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.AddPayment(ctx, models.ACCOUNT_KIND_CLIENT, d.ID, in)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestAmountsOutsideMoneyColumns(t *testing.T) {
	f := newFixture(t, at(2025, 4, 20))
	ctx := context.Background()
	d := f.client(t, "2025-04-15", 10000)

	for name, raw := range map[string]string{
		"huge exponent":    "1e900000000",
		"tiny exponent":    "1e-900000000",
		"above column max": "1e15",
		"just above max":   "10000000000",
	} {
		t.Run(name, func(t *testing.T) {
			v := decimal.RequireFromString(raw)

			_, err := f.svc.AddPayment(ctx, models.ACCOUNT_KIND_CLIENT, d.ID, PaymentInput{
				Amount:     v,
				Resolution: ledger.ResolutionCarryForward,
			})
			assert.ErrorIs(t, err, apperr.ErrValidation)

			_, err = f.svc.CreateAccount(ctx, models.ACCOUNT_KIND_CLIENT, AccountInput{
				Name:         "Big Spender",
				AgreedAmount: v,
				StartDate:    "2025-04-01",
			})
			assert.ErrorIs(t, err, apperr.ErrValidation)

			_, err = f.svc.CreateAccount(ctx, models.ACCOUNT_KIND_VENDOR, AccountInput{
				Name:      "Hosting Co",
				StartDate: "2025-04-01",
				Services:  []ServiceLine{{Name: "VPS", Rate: v}},
			})
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}

	got, err := f.svc.GetAccount(ctx, models.ACCOUNT_KIND_CLIENT, d.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalPaid.IsZero())

	_, err = f.svc.CreateAccount(ctx, models.ACCOUNT_KIND_VENDOR, AccountInput{
		Name:      "Hosting Co",
		StartDate: "2025-04-01",
		Services: []ServiceLine{
			{Name: "VPS", Rate: MaxAmount},
			{Name: "Backups", Rate: amount(1)},
		},
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	res, err := f.svc.AddPayment(ctx, models.ACCOUNT_KIND_CLIENT, d.ID, PaymentInput{
		Amount:     MaxAmount,
		Resolution: ledger.ResolutionCarryForward,
	})
	require.NoError(t, err)
	assert.True(t, res.Committed)
}

func TestPaymentStoresProof(t *testing.T) {
	f := newFixture(t, at(2025, 4, 20))
	d := f.client(t, "2025-04-15", 10000)

	res, err := f.svc.AddPayment(context.Background(), models.ACCOUNT_KIND_CLIENT, d.ID, PaymentInput{
		Amount: amount(1000),
		Proof:  &upload.Proof{Data: []byte("jpeg"), ContentType: "image/jpeg"},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, "/uploads/proofs/2025/04/"+res.Payment.Reference+".jpg", res.Payment.ProofURL)
	assert.Equal(t, res.Payment.ProofURL, res.Account.Cycles[0].Payments[0].ProofURL)
	assert.Len(t, f.proofs.objects, 1)
}

func TestProofFailureKeepsPayment(t *testing.T) {
	f := newFixture(t, at(2025, 4, 20))
	f.proofs.fail = errors.New("bucket unreachable")
	d := f.client(t, "2025-04-15", 10000)

	res, err := f.svc.AddPayment(context.Background(), models.ACCOUNT_KIND_CLIENT, d.ID, PaymentInput{
		Amount: amount(1000),
		Proof:  &upload.Proof{Data: []byte("jpeg"), ContentType: "image/jpeg"},
	})
	require.NoError(t, err)
	assert.True(t, res.Committed)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "screenshot upload failed")
	assert.Len(t, res.Account.Cycles[0].Payments, 1)
	assert.Empty(t, res.Account.Cycles[0].Payments[0].ProofURL)
}

func TestConcurrentPaymentsAreSerialized(t *testing.T) {
	f := newFixture(t, at(2025, 4, 20))
	d := f.client(t, "2025-04-15", 10000)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AddPayment(context.Background(), models.ACCOUNT_KIND_CLIENT, d.ID, PaymentInput{Amount: amount(100)})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := f.svc.GetAccount(context.Background(), models.ACCOUNT_KIND_CLIENT, d.ID)
	require.NoError(t, err)
	assert.True(t, amount(1000).Equal(got.TotalPaid))
	assert.Equal(t, uint(11), got.Version)
}

func TestUpdateKeepsExistingSnapshots(t *testing.T) {
	f := newFixture(t, at(2025, 4, 20))
	ctx := context.Background()
	d := f.client(t, "2025-04-15", 10000)

	up, err := f.svc.UpdateAccount(ctx, models.ACCOUNT_KIND_CLIENT, d.ID, AccountUpdate{
		Name:         "Acme Retail Group",
		Category:     "Ads",
		AgreedAmount: amount(12000),
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Retail Group", up.Name)
	assert.True(t, amount(12000).Equal(up.AgreedAmount))
	assert.True(t, amount(10000).Equal(up.Cycles[0].TotalOwed))

	f.clock.Set(at(2025, 5, 16))
	got, err := f.svc.GetAccount(ctx, models.ACCOUNT_KIND_CLIENT, d.ID)
	require.NoError(t, err)
	require.Len(t, got.Cycles, 2)
	assert.True(t, amount(10000).Equal(got.Cycles[0].TotalOwed))
	assert.True(t, amount(12000).Equal(got.Cycles[1].TotalOwed))
}

func TestUpdateVendorReplacesServices(t *testing.T) {
	f := newFixture(t, at(2025, 4, 20))
	ctx := context.Background()
	d, err := f.svc.CreateAccount(ctx, models.ACCOUNT_KIND_VENDOR, AccountInput{
		Name:      "Hosting Co",
		StartDate: "2025-04-01",
		Services:  []ServiceLine{{Name: "VPS", Rate: amount(1000)}},
	})
	require.NoError(t, err)

	up, err := f.svc.UpdateAccount(ctx, models.ACCOUNT_KIND_VENDOR, d.ID, AccountUpdate{
		Name:     "Hosting Co",
		Services: []ServiceLine{{Name: "VPS", Rate: amount(1000)}, {Name: "CDN", Rate: amount(250)}},
	})
	require.NoError(t, err)
	require.Len(t, up.Services, 2)
	assert.Equal(t, "CDN", up.Services[1].Name)
	assert.True(t, amount(1250).Equal(up.AgreedAmount))
	assert.True(t, amount(1000).Equal(up.Cycles[0].TotalOwed))
}

func TestArchiveAndDelete(t *testing.T) {
	f := newFixture(t, at(2025, 4, 20))
	ctx := context.Background()
	d := f.client(t, "2025-04-15", 10000)
	_, err := f.svc.AddPayment(ctx, models.ACCOUNT_KIND_CLIENT, d.ID, PaymentInput{
		Amount: amount(1000),
		Proof:  &upload.Proof{Data: []byte("jpeg"), ContentType: "image/jpeg"},
	})
	require.NoError(t, err)

	err = f.svc.DeletePermanently(ctx, models.ACCOUNT_KIND_CLIENT, d.ID)
	assert.ErrorIs(t, err, apperr.ErrPrecondition)

	require.NoError(t, f.svc.Archive(ctx, models.ACCOUNT_KIND_CLIENT, d.ID))
	require.NoError(t, f.svc.Archive(ctx, models.ACCOUNT_KIND_CLIENT, d.ID))

	active, err := f.svc.ListAccounts(ctx, models.ACCOUNT_KIND_CLIENT, false)
	require.NoError(t, err)
	assert.Empty(t, active)
	archived, err := f.svc.ListAccounts(ctx, models.ACCOUNT_KIND_CLIENT, true)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.True(t, archived[0].Archived)
	assert.True(t, amount(1000).Equal(archived[0].TotalPaid))

	_, err = f.svc.AddPayment(ctx, models.ACCOUNT_KIND_CLIENT, d.ID, PaymentInput{Amount: amount(10)})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.svc.UpdateAccount(ctx, models.ACCOUNT_KIND_CLIENT, d.ID, AccountUpdate{Name: "Renamed", AgreedAmount: amount(1)})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	require.NoError(t, f.svc.DeletePermanently(ctx, models.ACCOUNT_KIND_CLIENT, d.ID))
	assert.Empty(t, f.proofs.objects)

	_, err = f.svc.GetAccount(ctx, models.ACCOUNT_KIND_CLIENT, d.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, f.svc.Archive(ctx, models.ACCOUNT_KIND_CLIENT, d.ID), apperr.ErrNotFound)
}

func TestArchiveWaitsForAccountLock(t *testing.T) {
	ctx := context.Background()
	locker := lock.NewMemoryLocker()
	svc := NewService(repository.NewAccountRepository(dbtest.Open(t)), locker,
		WithClock(func() time.Time { return at(2025, 4, 20) }),
		WithLockTimings(time.Second, 50*time.Millisecond),
	)
	d, err := svc.CreateAccount(ctx, models.ACCOUNT_KIND_CLIENT, AccountInput{
		Name:         "Acme Retail",
		AgreedAmount: amount(10000),
		StartDate:    "2025-04-15",
	})
	require.NoError(t, err)

	release, err := locker.Acquire(ctx, lock.AccountKey(d.ID), 0)
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Archive(ctx, models.ACCOUNT_KIND_CLIENT, d.ID), apperr.ErrConflict)

	release()
	require.NoError(t, svc.Archive(ctx, models.ACCOUNT_KIND_CLIENT, d.ID))
	got, err := svc.GetAccount(ctx, models.ACCOUNT_KIND_CLIENT, d.ID)
	require.NoError(t, err)
	assert.True(t, got.Archived)
}

func TestReceipt(t *testing.T) {
	f := newFixture(t, at(2025, 4, 20))
	ctx := context.Background()
	d := f.client(t, "2025-04-15", 10000)
	res, err := f.svc.AddPayment(ctx, models.ACCOUNT_KIND_CLIENT, d.ID, PaymentInput{Amount: amount(2500)})
	require.NoError(t, err)

	r, err := f.svc.Receipt(ctx, models.ACCOUNT_KIND_CLIENT, d.ID, res.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Retail", r.Account.Name)
	assert.Equal(t, "15/04/2025 - 14/05/2025", r.Cycle.Label)
	assert.Equal(t, res.Payment.Reference, r.Payment.Reference)
	assert.True(t, amount(7500).Equal(r.Cycle.BalanceDue))

	_, err = f.svc.Receipt(ctx, models.ACCOUNT_KIND_CLIENT, d.ID, 999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestKindFromSegment(t *testing.T) {
	k, err := KindFromSegment("clients")
	require.NoError(t, err)
	assert.Equal(t, models.ACCOUNT_KIND_CLIENT, k)

	k, err = KindFromSegment("vendors")
	require.NoError(t, err)
	assert.Equal(t, models.ACCOUNT_KIND_VENDOR, k)

	_, err = KindFromSegment("employees")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

type recordingJanitor struct {
	keys []string
	err  error
}

func (j *recordingJanitor) DiscardProofs(_ context.Context, keys []string) error {
	if j.err != nil {
		return j.err
	}
	j.keys = append(j.keys, keys...)
	return nil
}

func TestDeleteHandsProofsToJanitor(t *testing.T) {
	ctx := context.Background()
	for name, janitor := range map[string]*recordingJanitor{
		"queued":     {},
		"queue down": {err: errors.New("redis unavailable")},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, at(2025, 4, 20))
			WithProofJanitor(janitor)(f.svc)
			d := f.client(t, "2025-04-15", 10000)
			_, err := f.svc.AddPayment(ctx, models.ACCOUNT_KIND_CLIENT, d.ID, PaymentInput{
				Amount: amount(1000),
				Proof:  &upload.Proof{Data: []byte("jpeg"), ContentType: "image/jpeg"},
			})
			require.NoError(t, err)
			require.NoError(t, f.svc.Archive(ctx, models.ACCOUNT_KIND_CLIENT, d.ID))
			require.NoError(t, f.svc.DeletePermanently(ctx, models.ACCOUNT_KIND_CLIENT, d.ID))

			if janitor.err != nil {
				// falls back to deleting inline
				assert.Empty(t, f.proofs.objects)
				return
			}
			require.Len(t, janitor.keys, 1)
			assert.Contains(t, f.proofs.objects, janitor.keys[0])
		})
	}
}

func TestSweepCycles(t *testing.T) {
	f := newFixture(t, at(2025, 1, 20))
	ctx := context.Background()
	a := f.client(t, "2025-01-15", 10000)
	f.client(t, "2025-01-10", 5000)
	require.NoError(t, f.svc.Archive(ctx, models.ACCOUNT_KIND_CLIENT, a.ID))
	_, err := f.svc.CreateAccount(ctx, models.ACCOUNT_KIND_VENDOR, AccountInput{
		Name:      "Print House",
		StartDate: "2025-01-01",
		Services:  []ServiceLine{{Name: "Flyers", Rate: amount(800)}},
	})
	require.NoError(t, err)

	f.clock.Set(at(2025, 3, 20))
	created, err := f.svc.SweepCycles(ctx)
	require.NoError(t, err)
	// two new cycles each for the active client and the vendor, none for the archived one
	assert.Equal(t, 4, created)

	created, err = f.svc.SweepCycles(ctx)
	require.NoError(t, err)
	assert.Zero(t, created)
}
