package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chamada/internal/auth"
	"chamada/internal/clients"
	"chamada/internal/config"
	"chamada/internal/events"
	"chamada/internal/logging"
)

// app holds what every command shares. It is built once per invocation.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	redis    *redis.Client
	tokens   auth.TokenStore
	bus      events.Bus
	registry *prometheus.Registry
	api      *clients.Clients
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)

	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := a.redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			a.close()
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}
		a.tokens = auth.NewRedisStore(a.redis, "")
		a.bus = events.NewRedisBus(a.redis, logger)
	} else {
		a.tokens = auth.NewFileStore(cfg.TokenFile)
		a.bus = events.NewMemoryBus(logger)
	}

	a.api, err = clients.New(clients.Options{
		BaseURL:       cfg.APIURL,
		Timeout:       cfg.APITimeout,
		UploadTimeout: cfg.UploadTimeout,
		Tokens:        a.tokens,
		OnUnauthorized: func(context.Context) {
			logger.Warn("session is no longer valid, run `chamada login`")
		},
		Metrics: clients.NewMetrics(a.registry),
		Logger:  logger,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	if a == nil {
		return
	}
	if a.api != nil {
		a.api.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close error", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
