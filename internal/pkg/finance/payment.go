package finance

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/digiworld/backoffice/app/models"
	"github.com/digiworld/backoffice/internal/pkg/apperr"
	"github.com/digiworld/backoffice/internal/pkg/ledger"
	"github.com/digiworld/backoffice/internal/pkg/proofstore"
)

// AddPayment records a payment against a cycle of the account.
//
// An amount above a positive cycle balance returns *ledger.OverpaymentError unless the
// caller already chose a resolution. The payment row and the version bump commit in one
// transaction; the proof screenshot is stored afterwards and a failure there is reported
// as a warning without undoing the payment.
func (s *Service) AddPayment(ctx context.Context, kind string, id uint, in PaymentInput) (*PaymentResult, error) {
	if !in.Amount.IsPositive() {
		return nil, apperr.Validation("amount must be greater than zero")
	}
	if err := checkAmount("amount", in.Amount); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, apperr.Validation("note must be at most 500 characters")
	}
	if !in.Amount.Equal(in.Amount.Round(2)) {
		return nil, apperr.Validation("amount has more than two decimal places")
	}
	today := s.today()
	paidOn := today
	if !in.PaidOn.IsZero() {
		paidOn = ledger.Day(in.PaidOn)
	}
	if paidOn.After(today) {
		return nil, apperr.Validation("payment date cannot be in the future")
	}

	release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	unlocked := false
	unlock := func() {
		if !unlocked {
			unlocked = true
			release()
		}
	}
	defer unlock()

	acc, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if acc.Archived {
		return nil, apperr.Validation("archived accounts do not accept payments")
	}
	acc, _, err = s.appendMissing(ctx, acc)
	if err != nil {
		return nil, err
	}

	cycle, err := s.pickCycle(acc, in.CycleID)
	if err != nil {
		return nil, err
	}

	decision, err := ledger.Resolve(cycle.State().Balance(), in.Amount, in.Resolution)
	if err != nil {
		var over *ledger.OverpaymentError
		if errors.As(err, &over) {
			s.metrics.OverpaymentDetected(kind)
		}
		return nil, err
	}
	if !decision.Commit {
		return &PaymentResult{Committed: false, Account: Detail(acc, s.now())}, nil
	}

	payment := &models.Payment{
		AccountID:      acc.ID,
		CycleID:        cycle.ID,
		Amount:         decision.Amount,
		PaidOn:         paidOn,
		Reference:      uuid.NewString(),
		Note:           in.Note,
		CarriedForward: decision.CarryForward,
	}
	if err := s.accounts.InsertPayment(ctx, acc.ID, acc.Version, payment); err != nil {
		return nil, mapWriteErr(err, kind, id)
	}
	unlock()

	log.Infof("[Finance] Recorded payment %s of %s on %s %d cycle %d (carry forward: %t)",
		payment.Reference, payment.Amount.StringFixed(2), kind, acc.ID, cycle.Seq, payment.CarriedForward)
	s.metrics.PaymentRecorded(kind, payment.CarriedForward)

	var warnings []string
	if in.Proof != nil {
		if err := s.attachProof(ctx, payment, in); err != nil {
			s.metrics.ProofFailed()
			log.Warnf("[Finance] Payment %s kept without proof: %v", payment.Reference, err)
			warnings = append(warnings, err.Error())
		}
	}
	s.invalidate(ctx)

	fresh, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	view := paymentView(payment)
	return &PaymentResult{
		Committed: true,
		Payment:   &view,
		Account:   Detail(fresh, s.now()),
		Warnings:  warnings,
	}, nil
}

// pickCycle returns the requested cycle, or the one containing today.
func (s *Service) pickCycle(acc *models.Account, cycleID uint) (*models.BillingCycle, error) {
	if cycleID != 0 {
		for i := range acc.Cycles {
			if acc.Cycles[i].ID == cycleID {
				return &acc.Cycles[i], nil
			}
		}
		return nil, apperr.NotFound("cycle %d not found on %s %d", cycleID, acc.Kind, acc.ID)
	}

	i := ledger.CurrentIndex(acc.CycleStates(), s.now())
	if i < 0 {
		return nil, apperr.Validation("no billing cycle has started yet, the first one starts on %s",
			acc.StartDate.Format(dateLayout))
	}
	return &acc.Cycles[i], nil
}

func (s *Service) attachProof(ctx context.Context, payment *models.Payment, in PaymentInput) error {
	if s.proofs == nil {
		return apperr.Upstream(nil, "proof storage is not configured, screenshot was not saved")
	}
	key := proofstore.ObjectKey(payment.Reference, s.now())
	url, err := s.proofs.Put(ctx, key, in.Proof.Data, in.Proof.ContentType)
	if err != nil {
		return apperr.Upstream(err, "screenshot upload failed")
	}
	if err := s.accounts.AttachProof(ctx, payment.ID, key, url); err != nil {
		_ = s.proofs.Delete(ctx, key)
		return apperr.Upstream(err, "screenshot could not be linked to the payment")
	}
	payment.ProofKey = key
	payment.ProofURL = url
	return nil
}
