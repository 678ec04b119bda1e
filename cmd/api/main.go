package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"caseflow/internal/eventbus"
	"caseflow/internal/httpapi"
	"caseflow/pkg/config"
	"caseflow/pkg/db"
	"caseflow/pkg/logging"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg)
	if err != nil {
		logger.Fatal("db open", zap.Error(err))
	}
	defer conn.Close()

	if cfg.MigrationsPath != "" {
		if err := db.Migrate(cfg.MigrationsPath, cfg); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis url", zap.Error(err))
		}
		rdb = redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
	}

	var publisher eventbus.Publisher = eventbus.NewNoopPublisher(logger)
	if cfg.AMQPURL != "" {
		p, err := eventbus.NewRabbitMQPublisher(cfg.AMQPURL, logger)
		if err != nil {
			// Stage changes must keep working without the broker.
			logger.Warn("rabbitmq unavailable, integration events disabled", zap.Error(err))
		} else {
			publisher = p
		}
	}
	defer func() { _ = publisher.Close() }()

	router := httpapi.NewRouter(httpapi.Dependencies{
		Cfg:       cfg,
		DB:        conn,
		Redis:     rdb,
		Publisher: publisher,
		Logger:    logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http serve", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
}
