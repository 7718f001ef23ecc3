package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saaga0h/jeeves-comfort/internal/climate"
	"github.com/saaga0h/jeeves-comfort/internal/collector"
	"github.com/saaga0h/jeeves-comfort/internal/notify"
	"github.com/saaga0h/jeeves-comfort/internal/ventilation"
	"github.com/saaga0h/jeeves-comfort/pkg/clock"
	"github.com/saaga0h/jeeves-comfort/pkg/config"
	"github.com/saaga0h/jeeves-comfort/pkg/health"
	"github.com/saaga0h/jeeves-comfort/pkg/homeassistant"
	"github.com/saaga0h/jeeves-comfort/pkg/mqtt"
	"github.com/saaga0h/jeeves-comfort/pkg/postgres"
	"github.com/saaga0h/jeeves-comfort/pkg/redis"
)

const connectTimeout = 10 * time.Second

func main() {
	// Load configuration with hierarchy: defaults → env → flags
	cfg := config.NewConfig()
	cfg.LoadFromEnv()
	cfg.LoadFromFlags()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("Starting J.E.E.V.E.S. Comfort Agent",
		"version", "1.0",
		"service_name", cfg.ServiceName,
		"mqtt_broker", cfg.MQTTAddress(),
		"state_backend", cfg.StateBackend,
		"history", cfg.HistoryEnabled(),
		"sensor_source", cfg.Source(),
		"log_level", cfg.LogLevel)

	home, err := config.LoadHome(cfg.HomeFile)
	if err != nil {
		logger.Error("Failed to load home layout", "file", cfg.HomeFile, "error", err)
		os.Exit(1)
	}
	layout, err := climate.NewLayout(home)
	if err != nil {
		logger.Error("Invalid home layout", "file", cfg.HomeFile, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// MQTT is the outbound channel; the client keeps retrying in the background
	mqttClient := mqtt.NewClient(cfg, logger)
	connectCtx, connectCancel := context.WithTimeout(ctx, connectTimeout)
	if err := mqttClient.Connect(connectCtx); err != nil {
		logger.Warn("MQTT unavailable at startup, notifications are dropped until it connects", "error", err)
	}
	connectCancel()

	clk := clock.NewVirtual(logger)
	if err := clk.ConfigureFromMQTT(mqttClient); err != nil {
		logger.Warn("Failed to subscribe to test mode config", "error", err)
	}

	// Ventilation state: Redis survives restarts, memory does not
	var redisClient redis.Client
	var store ventilation.Store
	if cfg.StateBackend == "redis" {
		redisClient = redis.NewClient(cfg, logger)
		if err := redisClient.Ping(ctx); err != nil {
			logger.Warn("Redis not reachable at startup", "error", err)
		}
		store = ventilation.NewRedisStore(redisClient, logger)
	} else {
		store = ventilation.NewMemoryStore()
	}

	// Session history is optional
	var postgresClient postgres.Client
	var recorder ventilation.HistoryRecorder
	var history climate.HistoryReader
	if cfg.HistoryEnabled() {
		pg := postgres.NewClient(cfg, logger)
		connectCtx, connectCancel := context.WithTimeout(ctx, connectTimeout)
		historyStore, err := openHistory(connectCtx, pg, logger)
		connectCancel()
		if err != nil {
			logger.Warn("Session history disabled", "error", err)
		} else {
			postgresClient = pg
			recorder = historyStore
			history = historyStore
		}
	}

	var commands homeassistant.Client
	if cfg.CommandsEnabled() {
		commands = homeassistant.NewClient(cfg.HomeAssistantURL, cfg.HomeAssistantToken, cfg.HomeAssistantTimeout, logger)
	}

	var source climate.Source
	switch cfg.Source() {
	case config.SensorSourceHA:
		source = climate.NewHASource(commands, layout, logger)
	case config.SensorSourceMQTT:
		feed := collector.NewSource(mqttClient, collector.NewStorage(redisClient, logger), clk, logger)
		if err := feed.Start(ctx, sensorLocations(layout)); err != nil {
			logger.Warn("MQTT sensor source not subscribed, snapshots stay stale", "error", err)
		}
		source = feed
	default:
		source = climate.NewDemoSource(layout, cfg.Latitude, cfg.Longitude, rand.New(rand.NewSource(time.Now().UnixNano())))
	}

	metrics := climate.NewMetrics()

	agent := climate.NewAgent(climate.Options{
		Layout:       layout,
		Source:       source,
		State:        ventilation.NewState(store, recorder, logger),
		Dispatcher:   notify.NewDispatcher(notify.NewMQTTSink(mqttClient, logger), logger),
		Limits:       climate.NewLimitStore(layout.Profiles, redisClient, logger),
		Clock:        clk,
		Publisher:    mqttClient,
		Commands:     commands,
		Metrics:      metrics,
		PollInterval: cfg.PollInterval(),
	}, logger)

	api := climate.NewAPI(agent, history, metrics, logger)
	apiServer := startServer("API", cfg.APIPort, api.Handler(), logger)

	healthChecker := health.NewChecker(mqttClient, redisClient, postgresClient, logger).
		WithSource(func() string { return string(agent.Status().State) })
	healthServer := startHealthServer(cfg.HealthPort, healthChecker, logger)

	if err := agent.Start(ctx); err != nil {
		logger.Error("Failed to start agent", "error", err)
		os.Exit(1)
	}

	<-sigChan
	logger.Info("Shutdown signal received (SIGTERM/SIGINT)")

	// Graceful shutdown
	logger.Info("Initiating graceful shutdown")
	cancel()
	agent.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down API server", "error", err)
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down health server", "error", err)
	}

	if postgresClient != nil {
		if err := postgresClient.Disconnect(); err != nil {
			logger.Error("Error closing Postgres", "error", err)
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Error closing Redis", "error", err)
		}
	}
	mqttClient.Disconnect()

	logger.Info("Comfort agent shutdown complete")
}

func openHistory(ctx context.Context, pg postgres.Client, logger *slog.Logger) (*ventilation.HistoryStore, error) {
	if err := pg.Connect(ctx); err != nil {
		return nil, err
	}
	store := ventilation.NewHistoryStore(pg, logger)
	if err := store.EnsureSchema(ctx); err != nil {
		pg.Disconnect()
		return nil, err
	}
	return store, nil
}

// sensorLocations lists the raw sensor locations whose readings are restored at start
func sensorLocations(layout *climate.Layout) []string {
	locations := make([]string, 0, len(layout.Rooms)+1)
	for _, room := range layout.Rooms {
		locations = append(locations, room.ID)
	}
	return append(locations, collector.OutsideLocation)
}

func startServer(name string, port int, handler http.Handler, logger *slog.Logger) *http.Server {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Starting "+name+" server", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(name+" server error", "error", err)
		}
	}()

	return server
}

func startHealthServer(port int, checker *health.Checker, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", checker.HandlerFunc())
	mux.HandleFunc("/health/detailed", checker.DetailedHandlerFunc())
	return startServer("health check", port, mux, logger)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
