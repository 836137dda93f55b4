package jurisdiction

import "go.uber.org/fx"

var Module = fx.Module("jurisdiction.loader",
	fx.Provide(NewLoader),
)
