package domain

import "github.com/smallbiznis/lingohub/internal/errs"

var (
	ErrInvalidAudience       = errs.New(errs.Validation, "invalid_audience")
	ErrInvalidPlanType       = errs.New(errs.Validation, "invalid_plan_type")
	ErrInvalidName           = errs.New(errs.Validation, "invalid_name")
	ErrInvalidPrice          = errs.New(errs.Validation, "invalid_price")
	ErrInvalidCurrency       = errs.New(errs.Validation, "invalid_currency")
	ErrInvalidBillingCycle   = errs.New(errs.Validation, "invalid_billing_cycle")
	ErrInvalidCommissionRate = errs.New(errs.Validation, "invalid_commission_rate")
	ErrInvalidID             = errs.New(errs.Validation, "invalid_id")
	ErrTierExists            = errs.New(errs.Validation, "tier_already_exists")
	ErrTierInUse             = errs.New(errs.Validation, "tier_in_use")
	ErrTierSuperseded        = errs.New(errs.InvalidStateTransition, "tier_superseded")
	ErrTierNotFound          = errs.New(errs.NotFound, "tier_not_found")
)
