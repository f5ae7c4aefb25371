package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallbiznis/lingohub/internal/payment/domain"
	stripego "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
	"github.com/stripe/stripe-go/v75/webhook"
)

const providerName = "stripe"

const (
	eventCheckoutCompleted          = "checkout.session.completed"
	eventCheckoutAsyncSucceeded     = "checkout.session.async_payment_succeeded"
	eventCheckoutAsyncPaymentFailed = "checkout.session.async_payment_failed"
	eventCheckoutExpired            = "checkout.session.expired"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return providerName
}

func (f *Factory) NewGateway(cfg paymentdomain.GatewayConfig) (paymentdomain.Gateway, error) {
	secretKey := strings.TrimSpace(cfg.SecretKey)
	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if secretKey == "" || webhookSecret == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}

	backendConfig := &stripego.BackendConfig{
		// Retries are owned by the retrying gateway.
		MaxNetworkRetries: stripego.Int64(0),
		LeveledLogger:     &stripego.LeveledLogger{Level: stripego.LevelNull},
	}
	if url := strings.TrimSpace(cfg.BackendURL); url != "" {
		backendConfig.URL = stripego.String(url)
	}

	api := client.New(secretKey, &stripego.Backends{
		API:     stripego.GetBackendWithConfig(stripego.APIBackend, backendConfig),
		Connect: stripego.GetBackendWithConfig(stripego.ConnectBackend, backendConfig),
		Uploads: stripego.GetBackendWithConfig(stripego.UploadsBackend, backendConfig),
	})

	return &Gateway{api: api, webhookSecret: webhookSecret}, nil
}

// Gateway opens hosted Checkout sessions and verifies Stripe webhooks.
type Gateway struct {
	api           *client.API
	webhookSecret string
}

func (g *Gateway) Provider() string {
	return providerName
}

func (g *Gateway) CreateCheckout(ctx context.Context, req paymentdomain.CheckoutRequest) (*paymentdomain.CheckoutSession, error) {
	params := &stripego.CheckoutSessionParams{
		Mode:              stripego.String(string(stripego.CheckoutSessionModePayment)),
		SuccessURL:        stripego.String(req.SuccessURL),
		CancelURL:         stripego.String(req.CancelURL),
		ClientReferenceID: stripego.String(req.BookingID.String()),
		LineItems: []*stripego.CheckoutSessionLineItemParams{{
			Quantity: stripego.Int64(1),
			PriceData: &stripego.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripego.String(strings.ToLower(req.Currency)),
				UnitAmount: stripego.Int64(minorUnits(req.Amount)),
				ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripego.String(req.Description),
				},
			},
		}},
	}
	params.Context = ctx
	params.AddMetadata("booking_id", req.BookingID.String())
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	session, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, classify("create_checkout", err)
	}
	return &paymentdomain.CheckoutSession{SessionRef: session.ID, URL: session.URL}, nil
}

func (g *Gateway) FetchSession(ctx context.Context, sessionRef string) (*paymentdomain.SessionStatus, error) {
	params := &stripego.CheckoutSessionParams{}
	params.Context = ctx
	session, err := g.api.CheckoutSessions.Get(sessionRef, params)
	if err != nil {
		return nil, classify("fetch_session", err)
	}
	return &paymentdomain.SessionStatus{
		SessionRef:    session.ID,
		BookingID:     bookingIDOf(session),
		Kind:          sessionKind(session),
		TransactionID: transactionIDOf(session),
	}, nil
}

func (g *Gateway) ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*paymentdomain.GatewayEvent, error) {
	signature := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if signature == "" {
		return nil, paymentdomain.ErrInvalidSignature
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return nil, paymentdomain.ErrInvalidSignature
		}
		return nil, fmt.Errorf("%w: %v", paymentdomain.ErrInvalidPayload, err)
	}

	var kind paymentdomain.EventKind
	switch event.Type {
	case eventCheckoutCompleted, eventCheckoutAsyncSucceeded:
		kind = paymentdomain.EventPaymentSucceeded
	case eventCheckoutAsyncPaymentFailed:
		kind = paymentdomain.EventPaymentFailed
	case eventCheckoutExpired:
		kind = paymentdomain.EventCheckoutExpired
	default:
		return nil, paymentdomain.ErrEventIgnored
	}

	if event.Data == nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	var session stripego.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("%w: %v", paymentdomain.ErrInvalidPayload, err)
	}
	if strings.TrimSpace(session.ID) == "" {
		return nil, paymentdomain.ErrInvalidPayload
	}
	// A completed session may still wait on an async payment method.
	if event.Type == eventCheckoutCompleted && !paid(&session) {
		return nil, paymentdomain.ErrEventIgnored
	}

	return &paymentdomain.GatewayEvent{
		Provider:        providerName,
		ProviderEventID: event.ID,
		Type:            string(event.Type),
		Kind:            kind,
		SessionRef:      session.ID,
		BookingID:       bookingIDOf(&session),
		TransactionID:   transactionIDOf(&session),
		Payload:         payload,
	}, nil
}

func sessionKind(session *stripego.CheckoutSession) paymentdomain.EventKind {
	switch session.Status {
	case stripego.CheckoutSessionStatusExpired:
		return paymentdomain.EventCheckoutExpired
	case stripego.CheckoutSessionStatusComplete:
		if paid(session) {
			return paymentdomain.EventPaymentSucceeded
		}
		return ""
	default:
		return ""
	}
}

func paid(session *stripego.CheckoutSession) bool {
	switch session.PaymentStatus {
	case stripego.CheckoutSessionPaymentStatusPaid, stripego.CheckoutSessionPaymentStatusNoPaymentRequired:
		return true
	default:
		return false
	}
}

func bookingIDOf(session *stripego.CheckoutSession) string {
	if id := strings.TrimSpace(session.Metadata["booking_id"]); id != "" {
		return id
	}
	return strings.TrimSpace(session.ClientReferenceID)
}

func transactionIDOf(session *stripego.CheckoutSession) string {
	if session.PaymentIntent == nil {
		return ""
	}
	return session.PaymentIntent.ID
}

func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func classify(op string, err error) error {
	var stripeErr *stripego.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", paymentdomain.ErrSessionNotFound, stripeErr.Msg)
		}
		return &paymentdomain.GatewayError{
			Op:         op,
			StatusCode: stripeErr.HTTPStatusCode,
			Temporary:  paymentdomain.TemporaryStatus(stripeErr.HTTPStatusCode),
			Err:        err,
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	// Anything that never produced a Stripe response is a transport failure.
	return &paymentdomain.GatewayError{Op: op, Temporary: true, Err: err}
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}
