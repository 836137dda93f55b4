package migration

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/elrep/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, node *snowflake.Node, cfg config.Config) error {
		return Run(conn, node, cfg)
	}),
)
