package main

import (
	"context"
	"fmt"

	"github.com/powers-protocol/powers/internal/config"
	memoryevents "github.com/powers-protocol/powers/pkg/adapters/events/memory"
	redisevents "github.com/powers-protocol/powers/pkg/adapters/events/redis"
	memorystorage "github.com/powers-protocol/powers/pkg/adapters/storage/memory"
	redisstorage "github.com/powers-protocol/powers/pkg/adapters/storage/redis"
	"github.com/powers-protocol/powers/pkg/ports"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// backends are the storage and event adapters selected by POWERS_STORAGE.
type backends struct {
	eventBus    ports.EventBus
	deployments ports.DeploymentStore
	layouts     ports.LayoutStore
	redisClient *goredis.Client
}

func openBackends(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backends, error) {
	if cfg.Storage == "memory" {
		store := memorystorage.NewStorage()
		logger.Info("using in-memory storage")
		return &backends{
			eventBus:    memoryevents.NewEventBus(logger),
			deployments: store,
			layouts:     store,
		}, nil
	}

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

	eventBus, err := redisevents.NewStreamsEventBus(
		redisClient,
		cfg.Redis.ConsumerGroup,
		cfg.Redis.ConsumerName,
		logger,
	)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}

	store := redisstorage.NewStorage(redisClient, cfg.Layout.DeploymentTTL, cfg.Layout.TTL, logger)
	return &backends{
		eventBus:    eventBus,
		deployments: store,
		layouts:     store,
		redisClient: redisClient,
	}, nil
}

func (b *backends) Close(logger *zap.Logger) {
	if err := b.eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}
	if b.redisClient != nil {
		if err := b.redisClient.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}
}
