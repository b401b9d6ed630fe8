package finance

import (
	"github.com/shopspring/decimal"

	"github.com/digiworld/backoffice/internal/pkg/apperr"
)

// MaxAmount is the largest value the decimal(12,2) money columns hold.
var MaxAmount = decimal.RequireFromString("9999999999.99")

// checkAmount rejects values the money columns cannot store. The exponent and
// coefficient size are checked first, before anything rescales the value.
func checkAmount(field string, d decimal.Decimal) error {
	if exp := d.Exponent(); exp > 10 || exp < -20 || d.Coefficient().BitLen() > 96 {
		return apperr.Validation("%s is out of range", field)
	}
	if d.GreaterThan(MaxAmount) {
		return apperr.Validation("%s must not exceed %s", field, MaxAmount.StringFixed(2))
	}
	return nil
}
