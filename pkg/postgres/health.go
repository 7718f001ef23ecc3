package postgres

import (
	"context"
	"fmt"
	"time"
)

// HealthStatus is the result of one probe of the history database
type HealthStatus struct {
	Connected bool          `json:"connected"`
	Database  string        `json:"database"`
	Latency   time.Duration `json:"latency_ns"`
	Error     string        `json:"error,omitempty"`
}

// HealthCheck pings the database and measures the round trip. Probe failures
// are reported in the status, not as an error.
func (c *PostgresClient) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	status := &HealthStatus{Database: c.config.PostgresDB}

	if c.db == nil {
		status.Error = "not connected"
		return status, nil
	}

	started := time.Now()
	if err := c.db.PingContext(ctx); err != nil {
		status.Error = fmt.Sprintf("ping failed: %v", err)
		return status, nil
	}

	status.Connected = true
	status.Latency = time.Since(started)
	return status, nil
}
