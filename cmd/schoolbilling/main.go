package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/schoolbilling/internal/billing"
	"github.com/smallbiznis/schoolbilling/internal/clock"
	"github.com/smallbiznis/schoolbilling/internal/config"
	"github.com/smallbiznis/schoolbilling/internal/migration"
	"github.com/smallbiznis/schoolbilling/internal/observability"
	"github.com/smallbiznis/schoolbilling/internal/pricing"
	"github.com/smallbiznis/schoolbilling/internal/ratelimit"
	"github.com/smallbiznis/schoolbilling/internal/server"
	"github.com/smallbiznis/schoolbilling/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),

		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		ratelimit.Module,

		// Functional Domains
		pricing.Module,
		billing.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
