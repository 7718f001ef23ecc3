package postgres

import (
	"context"
	"database/sql"
)

// Client is the connection pool behind the session history store
type Client interface {
	Connect(ctx context.Context) error
	Disconnect() error

	// Exec runs a statement that returns no rows
	Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error)

	// Query runs a statement that returns rows; the caller closes them
	Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)

	HealthCheck(ctx context.Context) (*HealthStatus, error)
}
