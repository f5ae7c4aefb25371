package reconciliation

import (
	paymentservice "github.com/smallbiznis/lingohub/internal/payment/service"
	"github.com/smallbiznis/lingohub/internal/reconciliation/repository"
	"github.com/smallbiznis/lingohub/internal/reconciliation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reconciliation.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(payments *paymentservice.Service) service.StatusSyncer { return payments }),
	fx.Provide(service.NewService),
)
