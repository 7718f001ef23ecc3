package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/saaga0h/jeeves-comfort/pkg/mqtt"
	"github.com/saaga0h/jeeves-comfort/pkg/postgres"
	"github.com/saaga0h/jeeves-comfort/pkg/redis"
)

// Service states reported by the detailed check
const (
	Connected    = "connected"
	Disconnected = "disconnected"
	Disabled     = "disabled"

	// SourceDegraded is the data source state that marks the agent degraded
	SourceDegraded = "degraded"
)

const probeTimeout = 2 * time.Second

// Checker provides health check functionality for the comfort agent
type Checker struct {
	mqtt     mqtt.Client
	redis    redis.Client
	postgres postgres.Client
	source   func() string
	logger   *slog.Logger
}

// NewChecker creates a health checker. redisClient and postgresClient may be
// nil when state is kept in memory or history is disabled.
func NewChecker(mqttClient mqtt.Client, redisClient redis.Client, postgresClient postgres.Client, logger *slog.Logger) *Checker {
	return &Checker{
		mqtt:     mqttClient,
		redis:    redisClient,
		postgres: postgresClient,
		logger:   logger,
	}
}

// WithSource reports the sensor data path (connected, degraded or demo)
func (h *Checker) WithSource(state func() string) *Checker {
	h.source = state
	return h
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp string    `json:"timestamp"`
	Services  *Services `json:"services,omitempty"`
}

// Services represents the status of external dependencies
type Services struct {
	Redis    string `json:"redis"`
	MQTT     string `json:"mqtt"`
	Postgres string `json:"postgres"`
	Source   string `json:"source,omitempty"`
}

// HandlerFunc returns 200 while the process is alive, without checking dependencies
func (h *Checker) HandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		}
		h.write(w, http.StatusOK, response)
	}
}

// DetailedHandlerFunc probes every configured dependency. A degraded sensor
// source or a lost backend returns 503; demo data is healthy but reported.
func (h *Checker) DetailedHandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()

		services := h.Check(ctx)

		status := "healthy"
		statusCode := http.StatusOK
		if services.MQTT == Disconnected || services.Redis == Disconnected ||
			services.Postgres == Disconnected || services.Source == SourceDegraded {
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		response := HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Services:  services,
		}
		h.write(w, statusCode, response)
	}
}

// Check probes the dependencies
func (h *Checker) Check(ctx context.Context) *Services {
	services := &Services{
		MQTT:     Disconnected,
		Redis:    Disabled,
		Postgres: Disabled,
	}

	if h.mqtt != nil && h.mqtt.IsConnected() {
		services.MQTT = Connected
	}

	if h.redis != nil {
		services.Redis = Connected
		if err := h.redis.Ping(ctx); err != nil {
			h.logger.Warn("Redis health probe failed", "error", err)
			services.Redis = Disconnected
		}
	}

	if h.postgres != nil {
		services.Postgres = Connected
		st, err := h.postgres.HealthCheck(ctx)
		if err != nil || st == nil || !st.Connected {
			h.logger.Warn("Postgres health probe failed", "error", err)
			services.Postgres = Disconnected
		}
	}

	if h.source != nil {
		services.Source = h.source()
	}

	return services
}

func (h *Checker) write(w http.ResponseWriter, statusCode int, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode health response", "error", err)
	}
}
