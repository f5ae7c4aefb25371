package domain

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// CheckoutRequest asks the gateway to open a hosted checkout for a booking.
type CheckoutRequest struct {
	BookingID      snowflake.ID
	IdempotencyKey string
	Description    string
	Amount         decimal.Decimal
	Currency       string
	SuccessURL     string
	CancelURL      string
}

type CheckoutSession struct {
	SessionRef string
	URL        string
}

// SessionStatus is the gateway's authoritative view of a checkout session.
// Kind is empty while the session is still open.
type SessionStatus struct {
	SessionRef    string
	BookingID     string
	Kind          EventKind
	TransactionID string
}

// Gateway is the outbound port to a payment provider.
type Gateway interface {
	Provider() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	FetchSession(ctx context.Context, sessionRef string) (*SessionStatus, error)
	ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*GatewayEvent, error)
}

type GatewayConfig struct {
	SecretKey     string
	WebhookSecret string
	// BackendURL overrides the provider API base URL.
	BackendURL string
}

type GatewayFactory interface {
	Provider() string
	NewGateway(cfg GatewayConfig) (Gateway, error)
}

// GatewayError carries a provider failure and whether retrying may help.
type GatewayError struct {
	Op         string
	StatusCode int
	Temporary  bool
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Err == nil {
		return "gateway " + e.Op + " failed"
	}
	return "gateway " + e.Op + ": " + e.Err.Error()
}

func (e *GatewayError) Unwrap() error { return e.Err }

// TemporaryStatus reports whether an HTTP status from a provider is worth
// retrying.
func TemporaryStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// IsTransient classifies errors the retrying gateway may retry: network
// failures, 5xx and 429 responses, and per-attempt deadlines.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Temporary
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
