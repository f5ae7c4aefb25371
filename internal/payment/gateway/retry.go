package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/smallbiznis/lingohub/internal/errs"
	"github.com/smallbiznis/lingohub/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/lingohub/internal/payment/domain"
	"go.uber.org/zap"
)

type RetryConfig struct {
	AttemptTimeout  time.Duration
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 5 * time.Second
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = 200 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 2 * time.Second
	}
	return c
}

// Retrying bounds every outbound gateway call with a per-attempt timeout and
// retries transient failures with exponential backoff.
type Retrying struct {
	inner   paymentdomain.Gateway
	cfg     RetryConfig
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewRetrying(inner paymentdomain.Gateway, cfg RetryConfig, log *zap.Logger, m *metrics.Metrics) *Retrying {
	return &Retrying{
		inner:   inner,
		cfg:     cfg.withDefaults(),
		log:     log.Named("payment.gateway"),
		metrics: m,
	}
}

func (g *Retrying) Provider() string {
	return g.inner.Provider()
}

func (g *Retrying) CreateCheckout(ctx context.Context, req paymentdomain.CheckoutRequest) (*paymentdomain.CheckoutSession, error) {
	return call(ctx, g, "create_checkout", func(ctx context.Context) (*paymentdomain.CheckoutSession, error) {
		return g.inner.CreateCheckout(ctx, req)
	})
}

func (g *Retrying) FetchSession(ctx context.Context, sessionRef string) (*paymentdomain.SessionStatus, error) {
	return call(ctx, g, "fetch_session", func(ctx context.Context) (*paymentdomain.SessionStatus, error) {
		return g.inner.FetchSession(ctx, sessionRef)
	})
}

// ParseWebhook is local verification and is never retried.
func (g *Retrying) ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*paymentdomain.GatewayEvent, error) {
	return g.inner.ParseWebhook(ctx, payload, headers)
}

func call[T any](ctx context.Context, g *Retrying, op string, fn func(context.Context) (T, error)) (T, error) {
	attempts := 0
	operation := func() (T, error) {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.AttemptTimeout)
		defer cancel()

		out, err := fn(attemptCtx)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return out, backoff.Permanent(err)
		}
		if !paymentdomain.IsTransient(err) {
			return out, backoff.Permanent(err)
		}
		g.metrics.RecordGatewayCall(ctx, g.Provider(), op, "retry")
		g.log.Warn("transient gateway failure",
			zap.String("operation", op),
			zap.Int("attempt", attempts),
			zap.Error(err),
		)
		return out, err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(g.newBackOff(), g.cfg.MaxRetries), ctx)
	out, err := backoff.RetryWithData(operation, policy)
	if err == nil {
		g.metrics.RecordGatewayCall(ctx, g.Provider(), op, "success")
		return out, nil
	}

	g.metrics.RecordGatewayCall(ctx, g.Provider(), op, "failed")
	if errs.KindOf(err) != errs.Internal {
		return out, err
	}
	if paymentdomain.IsTransient(err) || ctx.Err() != nil {
		g.log.Error("gateway unavailable",
			zap.String("operation", op),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return out, fmt.Errorf("%w: %s after %d attempts: %w", paymentdomain.ErrGatewayUnavailable, op, attempts, err)
	}
	return out, fmt.Errorf("%w: %s: %w", paymentdomain.ErrGatewayRejected, op, err)
}

func (g *Retrying) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.cfg.InitialInterval
	b.MaxInterval = g.cfg.MaxInterval
	b.MaxElapsedTime = 0
	return b
}
