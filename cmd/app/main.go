// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telegram-bot-fleet/internal/application"
	"telegram-bot-fleet/internal/config"
	"telegram-bot-fleet/internal/domain/ports/adapter"
	pg "telegram-bot-fleet/internal/infra/db/postgres"
	"telegram-bot-fleet/internal/infra/logging"
	"telegram-bot-fleet/internal/infra/metrics"
	red "telegram-bot-fleet/internal/infra/redis"
	"telegram-bot-fleet/internal/infra/security"
	tele "telegram-bot-fleet/internal/infra/telegram"
	"telegram-bot-fleet/internal/infra/web"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (no real Telegram calls)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.PoolSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	sendLimiter := red.NewSendLimiter(redisClient, cfg.Pool.SendLimit, cfg.Pool.SendWindow)

	// ---- Encryption ----
	encSvc, err := security.NewEncryptionService(cfg.Security.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("encryption")
	}

	// ---- Repositories ----
	customerRepo := pg.NewPostgresCustomerRepo(pool, encSvc, logger)

	// ---- Bot factory ----
	var factory adapter.BotFactory
	if cfg.Runtime.Dev {
		factory = tele.NewNoopBotFactory()
		logger.Info().Msg("bot factory: noop (dev)")
	} else {
		factory = tele.NewRealBotFactory(cfg.Pool.BuildTimeout, logger)
	}

	// ---- Event bus ----
	bus := application.NewEventBus()
	defer bus.Close()
	events, unsubscribe := bus.Subscribe(64)
	defer unsubscribe()
	go func() {
		evLog := logger.With().Str("component", "FleetEvents").Logger()
		for ev := range events {
			e := evLog.Info()
			if ev.Type == application.EventError || ev.Type == application.EventStreamError {
				e = evLog.Warn().Str("error", ev.Err)
			}
			e.Str("event_id", ev.ID).
				Str("type", string(ev.Type)).
				Str("customer_id", ev.CustomerID).
				Msg("fleet event")
		}
	}()

	// ---- Bot pool ----
	botPool := application.NewPool(customerRepo, factory, bus, sendLimiter, application.PoolOptions{
		SyncInterval: cfg.Pool.SyncInterval,
		BackoffMin:   cfg.Pool.ReconnectMin,
		BackoffMax:   cfg.Pool.ReconnectMax,
		BuildTimeout: cfg.Pool.BuildTimeout,
	}, logger)
	if err := botPool.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("bot pool start")
	}

	// ---- Admin API ----
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, "", cfg.Admin.SessionTTL)
	srv := web.NewServer(botPool, cfg.Admin.APIKey, auth, logger)
	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Admin.Port), Handler: srv.Router()}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("admin api listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("admin api server")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	botPool.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("admin api shutdown")
	}
	cancel()
}
