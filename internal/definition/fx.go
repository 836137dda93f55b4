package definition

import "go.uber.org/fx"

var Module = fx.Module("definition.loader",
	fx.Provide(NewLoader),
)
