package results

import "go.uber.org/fx"

var Module = fx.Module("results.service",
	fx.Provide(NewService),
)
