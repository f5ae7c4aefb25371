// Package errs defines the error taxonomy shared by the accounting and
// reconciliation domains. Domain packages declare their sentinels with New and
// the HTTP layer classifies them with KindOf.
package errs

import "errors"

// Kind is a low-cardinality error classification.
type Kind string

const (
	Validation             Kind = "validation_error"
	NotFound               Kind = "not_found"
	InvalidStateTransition Kind = "invalid_state_transition"
	ExternalGateway        Kind = "external_gateway_error"
	ConsistencyViolation   Kind = "consistency_violation"
	Forbidden              Kind = "forbidden"
	Internal               Kind = "internal_error"
)

// Error is a kinded sentinel. Compare with errors.Is against the declared
// variable; wrap with fmt.Errorf("%w: ...") to attach context.
type Error struct {
	kind Kind
	code string
}

// New declares a sentinel of the given kind. The code is the snake_case
// identifier returned to API callers.
func New(kind Kind, code string) *Error {
	return &Error{kind: kind, code: code}
}

func (e *Error) Error() string { return e.code }

// Kind returns the classification of the sentinel.
func (e *Error) Kind() Kind { return e.kind }

// Code returns the API error code.
func (e *Error) Code() string { return e.code }

// KindOf classifies err. Unclassified errors are Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var target *Error
	if errors.As(err, &target) {
		return target.kind
	}
	return Internal
}

// CodeOf returns the code of the first kinded sentinel in err's chain.
func CodeOf(err error) string {
	var target *Error
	if errors.As(err, &target) {
		return target.code
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
