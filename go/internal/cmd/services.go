package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tablestakes/go/internal/gamesync"
	"github.com/mcdev12/tablestakes/go/internal/gateway"
	"github.com/mcdev12/tablestakes/go/internal/httpapi"
	"github.com/mcdev12/tablestakes/go/internal/table"
	"github.com/rs/zerolog/log"
)

type Services struct {
	App       *table.App
	API       *httpapi.Handler
	Gateway   *gateway.Service
	Loop      *gamesync.Loop
	Publisher gamesync.EventPublisher
}

// setupServices wires the dependency chain:
// store -> app (engine+registry) -> broadcaster -> bus -> gateway -> subscribers,
// with the reconciliation loop keyed on gateway subscriber counts.
func setupServices(ctx context.Context, db *sql.DB, cfg *Config) (*Services, error) {
	var repo table.SessionRepository
	if db != nil {
		repo = table.NewRepository(db)
	} else {
		log.Warn().Msg("no database configured, using in-memory session store")
		repo = table.NewMemoryRepository()
	}

	registry := table.NewRegistry()
	clock := clockwork.NewRealClock()

	jsCfg := gamesync.DefaultJetStreamConfig()
	if cfg.NATS.URL != "" {
		jsCfg.URL = cfg.NATS.URL
	}
	if cfg.NATS.Stream != "" {
		jsCfg.StreamName = cfg.NATS.Stream
	}
	publisher, err := gamesync.NewJetStreamPublisher(ctx, jsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create publisher: %w", err)
	}

	broadcaster := gamesync.NewBroadcaster(publisher, clock, gamesync.DefaultBroadcasterConfig())

	appCfg := table.DefaultAppConfig()
	if cfg.Session.DefaultBuyIn > 0 {
		appCfg.DefaultBuyIn = cfg.Session.DefaultBuyIn
	}
	app := table.NewApp(repo, registry, broadcaster, appCfg)
	if err := app.WarmRegistry(ctx); err != nil {
		return nil, err
	}

	connectionManager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())

	loopCfg := gamesync.DefaultLoopConfig()
	if cfg.Sync.ReconcileIntervalSec > 0 {
		loopCfg.Interval = time.Duration(cfg.Sync.ReconcileIntervalSec) * time.Second
	}
	if cfg.Sync.StalenessThresholdSec > 0 {
		loopCfg.StalenessThreshold = time.Duration(cfg.Sync.StalenessThresholdSec) * time.Second
	}
	loop := gamesync.NewLoop(app, broadcaster, connectionManager, clock, loopCfg)
	connectionManager.OnSubscribe = loop.Track

	gwCfg := gateway.DefaultConfig()
	gwCfg.JetStreamConfig.URL = jsCfg.URL
	gwCfg.JetStreamConfig.StreamName = jsCfg.StreamName
	gw, err := gateway.NewService(gwCfg, connectionManager, app, loop, loop)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	return &Services{
		App:       app,
		API:       httpapi.NewHandler(app),
		Gateway:   gw,
		Loop:      loop,
		Publisher: publisher,
	}, nil
}
