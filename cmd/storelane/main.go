package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/storelane/storelane/internal/billing"
	"github.com/storelane/storelane/internal/cache"
	"github.com/storelane/storelane/internal/clock"
	"github.com/storelane/storelane/internal/config"
	"github.com/storelane/storelane/internal/effects"
	"github.com/storelane/storelane/internal/lock"
	"github.com/storelane/storelane/internal/migration"
	"github.com/storelane/storelane/internal/observability"
	"github.com/storelane/storelane/internal/plan"
	"github.com/storelane/storelane/internal/server"
	"github.com/storelane/storelane/internal/store"
	"github.com/storelane/storelane/internal/store/reconciler"
	"github.com/storelane/storelane/internal/subscription"
	"github.com/storelane/storelane/internal/transfer"
	"github.com/storelane/storelane/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		cache.Module,
		lock.Module,
		migration.Module,

		// Domains
		plan.Module,
		store.Module,
		effects.Module,
		reconciler.Module,
		subscription.Module,
		transfer.Module,
		billing.Module,

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
