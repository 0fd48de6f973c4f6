package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/loyalty-pay/balance_ledger/internal/config"
	"github.com/loyalty-pay/balance_ledger/internal/infra"
	"github.com/loyalty-pay/balance_ledger/internal/logging"
	"github.com/loyalty-pay/balance_ledger/internal/notification"
	"github.com/loyalty-pay/balance_ledger/internal/routes"
	"github.com/loyalty-pay/balance_ledger/internal/server"
	"github.com/loyalty-pay/balance_ledger/internal/telemetry"
	"github.com/loyalty-pay/balance_ledger/internal/topup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.AppName, cfg.AppEnv, cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("init tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("shutdown tracer", "error", err)
		}
	}()

	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if cfg.IsDevelopment() {
			if err := infra.Migrate(ctx, db); err != nil {
				logger.Error("migrate", "error", err)
				os.Exit(1)
			}
		}
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL, cfg.StoreTimeout)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	}

	deps := routes.Deps{
		DB:      db,
		Cache:   cache,
		Intents: topup.NewIntentCreator(cfg.StripeSecretKey, cfg.IsDevelopment()),
		Logger:  logger,
	}
	if cfg.AMQPURL != "" {
		broker, err := notification.NewAMQPNotifier(cfg.AMQPURL, cfg.Exchange)
		if err != nil {
			logger.Error("connect rabbitmq", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := broker.Close(); err != nil {
				logger.Warn("close rabbitmq", "error", err)
			}
		}()
		deps.Notifier = broker
		deps.Broker = broker
	}

	srv, err := server.New(cfg, deps)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	logger.Info("ledger service started", "addr", cfg.Address(), "env", cfg.AppEnv, "ledger_backend", cfg.LedgerBackend)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
