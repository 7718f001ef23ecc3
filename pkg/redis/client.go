package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/saaga0h/jeeves-comfort/pkg/config"
)

// opTimeout bounds a single command so a stalled server cannot hold up a tick
const opTimeout = 2 * time.Second

type redisClient struct {
	client  *redis.Client
	address string
	logger  *slog.Logger
}

// NewClient creates a state-backend client. The connection is lazy; call
// Ping at startup to find out whether the server is reachable.
func NewClient(cfg *config.Config, logger *slog.Logger) Client {
	return newFromOptions(&redis.Options{
		Addr:         cfg.RedisAddress(),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  opTimeout,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	}, logger)
}

func newFromOptions(opts *redis.Options, logger *slog.Logger) *redisClient {
	return &redisClient{
		client:  redis.NewClient(opts),
		address: opts.Addr,
		logger:  logger,
	}
}

func bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, opTimeout)
}

// notFound maps redis.Nil onto ErrNotFound and wraps anything else
func notFound(err error, what string) error {
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to read %s: %w", what, err)
}

func (r *redisClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	ctx, cancel := bounded(ctx)
	defer cancel()

	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (r *redisClient) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := bounded(ctx)
	defer cancel()

	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return "", notFound(err, key)
	}
	return val, nil
}

func (r *redisClient) HSet(ctx context.Context, key string, field string, value interface{}) error {
	ctx, cancel := bounded(ctx)
	defer cancel()

	if err := r.client.HSet(ctx, key, field, value).Err(); err != nil {
		return fmt.Errorf("failed to write %s[%s]: %w", key, field, err)
	}
	return nil
}

func (r *redisClient) HGet(ctx context.Context, key string, field string) (string, error) {
	ctx, cancel := bounded(ctx)
	defer cancel()

	val, err := r.client.HGet(ctx, key, field).Result()
	if err != nil {
		return "", notFound(err, fmt.Sprintf("%s[%s]", key, field))
	}
	return val, nil
}

// HGetAll returns an empty map for a missing hash
func (r *redisClient) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	ctx, cancel := bounded(ctx)
	defer cancel()

	val, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return val, nil
}

func (r *redisClient) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}

	ctx, cancel := bounded(ctx)
	defer cancel()

	if err := r.client.HDel(ctx, key, fields...).Err(); err != nil {
		return fmt.Errorf("failed to delete %s%v: %w", key, fields, err)
	}
	return nil
}

func (r *redisClient) Ping(ctx context.Context) error {
	ctx, cancel := bounded(ctx)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	r.logger.Debug("Redis reachable", "address", r.address)
	return nil
}

func (r *redisClient) Close() error {
	r.logger.Info("Closing Redis connection", "address", r.address)
	return r.client.Close()
}
