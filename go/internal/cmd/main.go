package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/draftpit/auctioneer/go/internal/auction/store/postgres"
	"github.com/draftpit/auctioneer/go/internal/dbconfig"
	"github.com/draftpit/auctioneer/go/internal/outbox"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var cfg *Config
	if path := getEnv("CONFIG_PATH", ""); path != "" {
		var err error
		cfg, err = loadConfig(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("failed to load config")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, cleanup, err := setup(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up services")
	}
	defer cleanup()

	server := setupServer(services)

	go services.ConnectionManager.Start(ctx)

	go func() {
		if err := services.Sweep.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("sweep stopped")
		}
	}()

	if services.OutboxListener != nil {
		go func() {
			if err := services.OutboxListener.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("outbox listener stopped")
			}
		}()
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()
	time.Sleep(1 * time.Second)

	log.Info().Msg("auctioneer shutdown complete")
}

// setup picks the storage backend from STORE and wires everything on top of
// it. "memory" runs self-contained with local-only broadcasts; anything else
// means Postgres with the outbox relay behind it.
func setup(ctx context.Context, cfg *Config) (*Services, func(), error) {
	if getEnv("STORE", "postgres") == "memory" {
		log.Info().Msg("using in-memory store")
		services, err := setupServices(cfg, nil, nil, outbox.ListenerConfig{}, nil)
		return services, func() {}, err
	}

	dbCfg := dbconfig.NewConfigFromEnv()

	if err := postgres.MigrateUp(dbCfg.DSN()); err != nil {
		return nil, nil, err
	}

	pool, err := setupPool(ctx, dbCfg)
	if err != nil {
		return nil, nil, err
	}

	listenerDB, err := setupListenerDB(dbCfg)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	listenerCfg := outbox.DefaultListenerConfig()
	listenerCfg.DatabaseURL = dbCfg.DSN()

	jsCfg := outbox.DefaultJetStreamConfig()
	jsCfg.URL = getEnv("NATS_URL", jsCfg.URL)

	publisher, err := outbox.NewJetStreamPublisher(jsCfg)
	if err != nil {
		pool.Close()
		listenerDB.Close()
		return nil, nil, err
	}

	cleanup := func() {
		publisher.Close()
		listenerDB.Close()
		pool.Close()
	}

	services, err := setupServices(cfg, pool, listenerDB, listenerCfg, publisher)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return services, cleanup, nil
}
