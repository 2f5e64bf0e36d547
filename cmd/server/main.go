package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/scythe504/hotseat-backend/internal/config"
	"github.com/scythe504/hotseat-backend/internal/game"
	"github.com/scythe504/hotseat-backend/internal/logging"
	"github.com/scythe504/hotseat-backend/internal/metrics"
	"github.com/scythe504/hotseat-backend/internal/relay"
	"github.com/scythe504/hotseat-backend/internal/server"
	"github.com/scythe504/hotseat-backend/internal/store"
	"github.com/scythe504/hotseat-backend/internal/store/postgres"
	"github.com/scythe504/hotseat-backend/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	logging.Init(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistence: Postgres when configured, otherwise in memory.
	var st game.Store
	if cfg.DatabaseURL != "" {
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()

		if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
		st = postgres.NewRepo(pool)
		log.Info().Msg("using postgres store")
	} else {
		st = store.NewMemoryStore()
		log.Warn().Msg("DATABASE_URL not set, sessions are kept in memory only")
	}

	reg := metrics.NewRegistry()
	hub := websocket.NewHub(metrics.NewWebSocketMetrics(reg))

	var broadcaster game.Broadcaster = hub
	if cfg.NatsURL != "" {
		natsCfg := relay.DefaultConfig()
		natsCfg.URL = cfg.NatsURL
		natsCfg.SubjectPrefix = cfg.NatsSubjectPrefix

		publisher, err := relay.NewPublisher(natsCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start event relay")
		}
		defer publisher.Close()
		broadcaster = relay.Fanout{hub, publisher}
	}

	manager := game.NewManager(st, broadcaster,
		game.WithMetrics(metrics.NewEngineMetrics(reg)),
		game.WithResultsPath(cfg.ResultsPath))

	wsCfg := websocket.DefaultConfig()
	wsCfg.AllowedOrigins = cfg.AllowedOrigins
	wsHandler := websocket.NewHandler(ctx, hub, manager, wsCfg)

	srv := server.NewServer(manager, wsHandler, metrics.Handler(reg), cfg.AllowedOrigins).HTTPServer(cfg.Addr())

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// In-flight commands see a cancelled context; then sockets and timers go.
	cancel()
	hub.CloseAll()
	manager.Close()

	log.Info().Msg("hotseat server shutdown complete")
}
