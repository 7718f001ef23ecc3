package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
	"github.com/saaga0h/jeeves-comfort/pkg/config"
)

// ErrNotConnected is returned by Exec and Query before Connect succeeds
var ErrNotConnected = errors.New("postgres client not connected")

// PostgresClient holds the pool used for session history
type PostgresClient struct {
	db     *sql.DB
	config *config.Config
	logger *slog.Logger
}

// NewClient creates an unconnected client; Connect opens the pool
func NewClient(cfg *config.Config, logger *slog.Logger) Client {
	return NewFromDB(nil, cfg, logger)
}

// NewFromDB wraps an already opened pool, such as one from sqlmock in tests
func NewFromDB(db *sql.DB, cfg *config.Config, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresClient{db: db, config: cfg, logger: logger}
}

// Connect opens the pool and verifies it with a ping. A failed ping leaves
// the client unconnected so history can be disabled without side effects.
func (c *PostgresClient) Connect(ctx context.Context) error {
	logger := c.logger.With("host", c.config.PostgresHost, "database", c.config.PostgresDB)

	db, err := sql.Open("postgres", c.config.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(c.config.PostgresMaxConnections)
	db.SetMaxIdleConns(c.config.PostgresMaxIdleConnections)
	db.SetConnMaxLifetime(c.config.PostgresConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to reach postgres at %s: %w", c.config.PostgresHost, err)
	}

	c.db = db
	logger.Info("Session history database connected")
	return nil
}

func (c *PostgresClient) Disconnect() error {
	if c.db == nil {
		return nil
	}

	err := c.db.Close()
	c.db = nil
	if err != nil {
		return fmt.Errorf("failed to close postgres connection: %w", err)
	}
	c.logger.Info("Session history database closed")
	return nil
}

func (c *PostgresClient) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if c.db == nil {
		return nil, ErrNotConnected
	}
	return c.db.ExecContext(ctx, query, args...)
}

func (c *PostgresClient) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if c.db == nil {
		return nil, ErrNotConnected
	}
	return c.db.QueryContext(ctx, query, args...)
}
