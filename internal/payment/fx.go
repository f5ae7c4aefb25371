package payment

import (
	"github.com/smallbiznis/lingohub/internal/payment/adapters"
	"github.com/smallbiznis/lingohub/internal/payment/adapters/stripe"
	"github.com/smallbiznis/lingohub/internal/payment/gateway"
	"github.com/smallbiznis/lingohub/internal/payment/repository"
	paymentservice "github.com/smallbiznis/lingohub/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(
			stripe.NewFactory(),
		)
	}),
	fx.Provide(gateway.Provide),
	fx.Provide(paymentservice.NewService),
)
