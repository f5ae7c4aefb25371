package domain

import "github.com/smallbiznis/lingohub/internal/errs"

var (
	ErrInvalidEvent          = errs.New(errs.Validation, "invalid_payment_event")
	ErrInvalidSignature      = errs.New(errs.Validation, "invalid_signature")
	ErrInvalidPayload        = errs.New(errs.Validation, "invalid_payload")
	ErrInvalidConfig         = errs.New(errs.Validation, "invalid_gateway_config")
	ErrInvalidSessionRef     = errs.New(errs.Validation, "invalid_session_ref")
	ErrNoCheckoutSession     = errs.New(errs.Validation, "no_checkout_session")
	ErrProviderNotFound      = errs.New(errs.NotFound, "payment_provider_not_found")
	ErrProviderInactive      = errs.New(errs.Validation, "payment_provider_inactive")
	ErrBookingNotFound       = errs.New(errs.NotFound, "booking_not_found")
	ErrSessionNotFound       = errs.New(errs.NotFound, "checkout_session_not_found")
	ErrTransitionRejected    = errs.New(errs.ConsistencyViolation, "transition_rejected")
	ErrEventAlreadyProcessed = errs.New(errs.ConsistencyViolation, "event_already_processed")
	ErrGatewayUnavailable    = errs.New(errs.ExternalGateway, "gateway_unavailable")
	ErrGatewayRejected       = errs.New(errs.ExternalGateway, "gateway_rejected")
)

// ErrEventIgnored marks a verified delivery that maps to no payment event.
var ErrEventIgnored = errs.New(errs.Validation, "event_ignored")
