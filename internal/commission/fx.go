package commission

import "go.uber.org/fx"

var Module = fx.Module("commission.resolver",
	fx.Provide(NewResolver),
)
