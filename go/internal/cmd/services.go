package main

import (
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/draftpit/auctioneer/go/internal/auction"
	"github.com/draftpit/auctioneer/go/internal/auction/store/memory"
	"github.com/draftpit/auctioneer/go/internal/auction/store/postgres"
	"github.com/draftpit/auctioneer/go/internal/auction/sweep"
	"github.com/draftpit/auctioneer/go/internal/gateway"
	"github.com/draftpit/auctioneer/go/internal/models"
	"github.com/draftpit/auctioneer/go/internal/outbox"
)

type Services struct {
	Store             auction.Store
	Engine            *auction.Engine
	ConnectionManager *gateway.ConnectionManager
	Sweep             *sweep.Sweep
	OutboxListener    *outbox.Listener
	GameDefaults      models.GameSettings
}

// setupServices wires the dependency chain: store, broadcasters, engine,
// sweep. listenerDB is nil when running on the in-memory store, in which
// case events only reach this process's rooms.
func setupServices(cfg *Config, pool *pgxpool.Pool, listenerDB *sql.DB, listenerCfg outbox.ListenerConfig, publisher outbox.Publisher) (*Services, error) {
	var store auction.Store
	if pool != nil {
		store = postgres.New(pool)
	} else {
		store = memory.New()
	}

	cm := gateway.NewConnectionManager(gateway.DefaultConnectionConfig(), nil)

	broadcaster := auction.Fanout{gateway.NewLocalBroadcaster(cm)}

	var listener *outbox.Listener
	if listenerDB != nil {
		repo := outbox.NewRepository(listenerDB)
		broadcaster = append(broadcaster, outbox.NewBroadcaster(repo))

		var err error
		listener, err = outbox.NewListener(repo, publisher, listenerCfg)
		if err != nil {
			return nil, err
		}
	}

	engine := auction.New(store, broadcaster)
	cm.SetBidder(engine)

	sweepCfg := sweep.DefaultConfig()
	if d := cfg.sweepInterval(); d > 0 {
		sweepCfg.Interval = d
	}
	if n := cfg.sweepWorkers(); n > 0 {
		sweepCfg.NumWorkers = n
	}

	return &Services{
		Store:             store,
		Engine:            engine,
		ConnectionManager: cm,
		Sweep:             sweep.New(store, engine, sweepCfg),
		OutboxListener:    listener,
		GameDefaults:      cfg.gameDefaults(),
	}, nil
}
