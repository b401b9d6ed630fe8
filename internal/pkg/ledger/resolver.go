package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/digiworld/backoffice/internal/pkg/apperr"
)

// Classification is the outcome of comparing a proposed payment with a cycle balance.
type Classification string

const (
	Fits        Classification = "fits"
	Overpayment Classification = "overpayment"
)

// Resolution is the user's answer to an overpayment prompt.
type Resolution string

const (
	ResolutionNone          Resolution = ""
	ResolutionCarryForward  Resolution = "carry_forward"
	ResolutionCorrectAmount Resolution = "correct_amount"
)

// ParseResolution accepts the wire values, including the legacy carryForward flag.
func ParseResolution(value string, carryForward bool) (Resolution, error) {
	switch Resolution(strings.ToLower(strings.TrimSpace(value))) {
	case ResolutionNone:
		if carryForward {
			return ResolutionCarryForward, nil
		}
		return ResolutionNone, nil
	case ResolutionCarryForward:
		return ResolutionCarryForward, nil
	case ResolutionCorrectAmount:
		return ResolutionCorrectAmount, nil
	default:
		return ResolutionNone, apperr.Validation("unknown resolution %q", value)
	}
}

// OverpaymentError asks the caller to choose between carrying the excess forward and
// correcting the amount. Nothing has been persisted when it is returned.
type OverpaymentError struct {
	Balance decimal.Decimal
	Amount  decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment of %s exceeds the remaining balance of %s", e.Amount.String(), e.Balance.String())
}

// Excess is the part of the payment above the balance.
func (e *OverpaymentError) Excess() decimal.Decimal {
	return e.Amount.Sub(e.Balance)
}

// Decision is what the resolver wants persisted.
type Decision struct {
	Classification Classification
	Commit         bool
	CarryForward   bool
	Amount         decimal.Decimal
}

// Classify compares a proposed amount with the active cycle balance. Any amount fits a
// cycle that is already settled.
func Classify(balance, amount decimal.Decimal) Classification {
	if amount.GreaterThan(balance) && balance.IsPositive() {
		return Overpayment
	}
	return Fits
}

// Resolve decides how a payment submission materializes. It never splits a payment:
// a carried-forward overpayment is stored as one row with the literal amount, and the
// cycle balance goes negative.
func Resolve(balance, amount decimal.Decimal, resolution Resolution) (Decision, error) {
	if !amount.IsPositive() {
		return Decision{}, apperr.Validation("amount must be greater than zero")
	}

	if Classify(balance, amount) == Fits {
		return Decision{Classification: Fits, Commit: true, Amount: amount}, nil
	}

	switch resolution {
	case ResolutionCarryForward:
		return Decision{Classification: Overpayment, Commit: true, CarryForward: true, Amount: amount}, nil
	case ResolutionCorrectAmount:
		return Decision{Classification: Overpayment, Commit: false, Amount: amount}, nil
	default:
		return Decision{Classification: Overpayment}, &OverpaymentError{Balance: balance, Amount: amount}
	}
}
