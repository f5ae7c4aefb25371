// Package commission prices bookings. ComputeCharge is pure; the Resolver
// decides which rate an institution's next booking is frozen at.
package commission

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/lingohub/internal/errs"
)

var (
	ErrInvalidAmount   = errs.New(errs.Validation, "invalid_amount")
	ErrInvalidRate     = errs.New(errs.Validation, "invalid_commission_rate")
	ErrNoEffectiveRate = errs.New(errs.NotFound, "no_effective_commission_rate")
)

var hundred = decimal.NewFromInt(100)

// Charge is the priced result of one booking.
type Charge struct {
	BasePrice   decimal.Decimal `json:"base_price"`
	Rate        decimal.Decimal `json:"commission_rate"`
	Commission  decimal.Decimal `json:"commission"`
	TotalCharge decimal.Decimal `json:"total_charge"`
}

// ComputeCharge returns commission = basePrice * rate / 100 rounded half up to
// cents, and the total the student pays.
func ComputeCharge(basePrice, ratePercent decimal.Decimal) (Charge, error) {
	if basePrice.IsNegative() {
		return Charge{}, ErrInvalidAmount
	}
	if ratePercent.IsNegative() || ratePercent.GreaterThan(hundred) {
		return Charge{}, ErrInvalidRate
	}

	commission := basePrice.Mul(ratePercent).Div(hundred).Round(2)
	return Charge{
		BasePrice:   basePrice,
		Rate:        ratePercent,
		Commission:  commission,
		TotalCharge: basePrice.Add(commission),
	}, nil
}
