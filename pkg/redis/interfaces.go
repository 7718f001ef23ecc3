package redis

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key or hash field does not exist
var ErrNotFound = errors.New("redis: not found")

// Client is the slice of Redis the comfort agent uses. Plain keys hold
// per-location sensor readings with a TTL; hashes hold ventilation sessions,
// learning records, extensions and comfort limit overrides keyed by room.
type Client interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)

	HSet(ctx context.Context, key string, field string, value interface{}) error
	HGet(ctx context.Context, key string, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error

	// Ping checks the connection and is used by the detailed health check
	Ping(ctx context.Context) error
	Close() error
}
