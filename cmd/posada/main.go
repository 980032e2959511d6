package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/posadahq/posada/internal/clock"
	"github.com/posadahq/posada/internal/config"
	"github.com/posadahq/posada/internal/locks"
	"github.com/posadahq/posada/internal/logger"
	"github.com/posadahq/posada/internal/migration"
	"github.com/posadahq/posada/internal/observability"
	"github.com/posadahq/posada/internal/scheduler"
	"github.com/posadahq/posada/internal/seed"
	"github.com/posadahq/posada/internal/server"
	"github.com/posadahq/posada/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		locks.Module,
		migration.Module,
		seed.Module,
		server.Module,
		scheduler.Module,
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
