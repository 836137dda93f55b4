package election

import (
	"github.com/smallbiznis/elrep/internal/election/service"
	"go.uber.org/fx"
)

var Module = fx.Module("election.service",
	fx.Provide(service.NewService),
)
