package gateway

import (
	"github.com/smallbiznis/lingohub/internal/config"
	"github.com/smallbiznis/lingohub/internal/observability/metrics"
	"github.com/smallbiznis/lingohub/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/lingohub/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg      config.Config
	Registry *adapters.Registry
	Log      *zap.Logger
	Metrics  *metrics.Metrics `optional:"true"`
}

// Provide opens the configured provider and wraps it with retries.
func Provide(p Params) (paymentdomain.Gateway, error) {
	inner, err := p.Registry.NewGateway(p.Cfg.Gateway.Provider, paymentdomain.GatewayConfig{
		SecretKey:     p.Cfg.Gateway.SecretKey,
		WebhookSecret: p.Cfg.Gateway.WebhookSecret,
		BackendURL:    p.Cfg.Gateway.APIURL,
	})
	if err != nil {
		return nil, err
	}
	return NewRetrying(inner, RetryConfig{
		AttemptTimeout: p.Cfg.Gateway.AttemptTimeout,
		MaxRetries:     p.Cfg.Gateway.MaxRetries,
	}, p.Log, p.Metrics), nil
}
