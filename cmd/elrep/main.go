package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/elrep/internal/clock"
	"github.com/smallbiznis/elrep/internal/config"
	"github.com/smallbiznis/elrep/internal/migration"
	"github.com/smallbiznis/elrep/internal/server"
	"github.com/smallbiznis/elrep/pkg/db"
	"github.com/smallbiznis/elrep/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
