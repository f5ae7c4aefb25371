package domain

import "github.com/smallbiznis/lingohub/internal/errs"

var (
	ErrInvalidHolder            = errs.New(errs.Validation, "invalid_holder")
	ErrInvalidHolderID          = errs.New(errs.Validation, "invalid_holder_id")
	ErrInvalidSubscriptionID    = errs.New(errs.Validation, "invalid_subscription_id")
	ErrInvalidPlanType          = errs.New(errs.Validation, "invalid_plan_type")
	ErrActiveSubscriptionExists = errs.New(errs.Validation, "active_subscription_exists")
	ErrTierNotSuperseded        = errs.New(errs.Validation, "tier_not_superseded")
	ErrConflictingStartState    = errs.New(errs.Validation, "conflicting_start_state")
	ErrSubscriptionNotFound     = errs.New(errs.NotFound, "subscription_not_found")
	ErrHolderNotFound           = errs.New(errs.NotFound, "holder_not_found")
	ErrInvalidStateTransition   = errs.New(errs.InvalidStateTransition, "invalid_state_transition")
)
