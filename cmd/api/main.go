package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/guiartbp/Hackathon-QITech-sub002/internal/config"
	"github.com/guiartbp/Hackathon-QITech-sub002/internal/infra"
	"github.com/guiartbp/Hackathon-QITech-sub002/internal/logging"
	"github.com/guiartbp/Hackathon-QITech-sub002/internal/metrics"
	"github.com/guiartbp/Hackathon-QITech-sub002/internal/notification"
	"github.com/guiartbp/Hackathon-QITech-sub002/internal/routes"
	"github.com/guiartbp/Hackathon-QITech-sub002/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Options{
		Level: cfg.LogLevel,
		App:   cfg.AppName,
		Env:   cfg.AppEnv,
		Text:  cfg.IsDev(),
	})
	logger.Info("starting", "config", cfg)

	ctx := context.Background()

	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL, infra.PoolOptions{
			AppName:  cfg.AppName,
			MaxConns: int32(cfg.DBMaxConns),
		})
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if cfg.Migrate {
			if err := infra.RunMigrations(ctx, db, logger); err != nil {
				logger.Error("run migrations", "error", err)
				os.Exit(1)
			}
		}
	} else {
		logger.Warn("DATABASE_URL not set; using in-memory stores")
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL, cfg.RedisTimeout)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	} else {
		logger.Warn("REDIS_URL not set; idempotency and gateway connect are disabled")
	}

	publisher := newPublisher(cfg, logger)
	defer publisher.Close()

	srv, err := server.New(routes.Deps{
		Cfg:       cfg,
		DB:        db,
		Cache:     cache,
		Publisher: publisher,
		Metrics:   metrics.New(),
		Logger:    logger,
	})
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

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

// newPublisher connects to RabbitMQ when configured and falls back to logging
// events so a broker outage never blocks startup.
func newPublisher(cfg config.Config, logger *slog.Logger) notification.Publisher {
	if cfg.RabbitMQURL == "" {
		return notification.NewLoggerNotifier(logger)
	}
	p, err := notification.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange, logger)
	if err != nil {
		logger.Warn("rabbitmq unavailable; logging events instead", "error", err)
		return notification.NewLoggerNotifier(logger)
	}
	return p
}
