package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lingohub/internal/authorization"
	"github.com/smallbiznis/lingohub/internal/booking"
	"github.com/smallbiznis/lingohub/internal/clock"
	"github.com/smallbiznis/lingohub/internal/commission"
	"github.com/smallbiznis/lingohub/internal/config"
	"github.com/smallbiznis/lingohub/internal/institution"
	"github.com/smallbiznis/lingohub/internal/lock"
	"github.com/smallbiznis/lingohub/internal/migration"
	"github.com/smallbiznis/lingohub/internal/observability"
	"github.com/smallbiznis/lingohub/internal/payment"
	"github.com/smallbiznis/lingohub/internal/ratelimit"
	"github.com/smallbiznis/lingohub/internal/reconciliation"
	"github.com/smallbiznis/lingohub/internal/scheduler"
	"github.com/smallbiznis/lingohub/internal/server"
	"github.com/smallbiznis/lingohub/internal/settings"
	"github.com/smallbiznis/lingohub/internal/subscription"
	"github.com/smallbiznis/lingohub/internal/tier"
	"github.com/smallbiznis/lingohub/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		lock.Module,
		ratelimit.Module,
		authorization.Module,

		// Functional Domains
		tier.Module,
		institution.Module,
		commission.Module,
		subscription.Module,
		settings.Module,
		payment.Module,
		booking.Module,
		reconciliation.Module,
		scheduler.Module,

		server.Module,
		fx.Invoke(func(s *server.Server) {
			s.RegisterAPIRoutes()
			s.RegisterAdminRoutes()
		}),
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) *snowflake.Node {
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		panic(err)
	}
	return node
}
