package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

// Config holds the configuration for the comfort agent
type Config struct {
	// MQTT configuration
	MQTTBroker   string
	MQTTPort     int
	MQTTUser     string
	MQTTPassword string
	MQTTClientID string

	// Redis configuration
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// StateBackend selects where sessions, learning and extensions persist: redis or memory
	StateBackend string

	// Postgres configuration; history is disabled when PostgresHost is empty
	PostgresHost               string
	PostgresPort               int
	PostgresUser               string
	PostgresPassword           string
	PostgresDB                 string
	PostgresSSLMode            string
	PostgresMaxConnections     int
	PostgresMaxIdleConnections int
	PostgresConnMaxLifetime    time.Duration

	// Service configuration
	ServiceName string
	HealthPort  int
	LogLevel    string

	// Home Assistant configuration; demo mode is used when URL or token is empty
	HomeAssistantURL     string
	HomeAssistantToken   string
	HomeAssistantTimeout time.Duration

	// Comfort agent configuration
	PollIntervalSec int
	HomeFile        string
	DemoMode        bool
	APIPort         int

	// SensorSource selects where readings come from: ha, mqtt or demo.
	// Empty picks ha when URL and token are set, demo otherwise.
	SensorSource string

	// Location used by the demo outdoor model
	Latitude  float64
	Longitude float64
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		MQTTBroker: "localhost",
		MQTTPort:   1883,

		RedisHost:    "localhost",
		RedisPort:    6379,
		RedisDB:      0,
		StateBackend: "redis",

		PostgresPort:               5432,
		PostgresUser:               "jeeves",
		PostgresDB:                 "jeeves",
		PostgresSSLMode:            "disable",
		PostgresMaxConnections:     5,
		PostgresMaxIdleConnections: 2,
		PostgresConnMaxLifetime:    30 * time.Minute,

		ServiceName: "comfort-agent",
		HealthPort:  8080,
		LogLevel:    "info",

		HomeAssistantTimeout: 10 * time.Second,
		PollIntervalSec:      10,
		HomeFile:             "configs/home.yaml",
		APIPort:              3003,

		// Helsinki coordinates
		Latitude:  60.1695,
		Longitude: 24.9354,
	}
}

// LoadFromEnv loads configuration from environment variables with JEEVES_ prefix
func (c *Config) LoadFromEnv() {
	// MQTT configuration
	if v := os.Getenv("JEEVES_MQTT_BROKER"); v != "" {
		c.MQTTBroker = v
	}
	if v := os.Getenv("JEEVES_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.MQTTPort = port
		}
	}
	if v := os.Getenv("JEEVES_MQTT_USER"); v != "" {
		c.MQTTUser = v
	}
	if v := os.Getenv("JEEVES_MQTT_PASSWORD"); v != "" {
		c.MQTTPassword = v
	}
	if v := os.Getenv("JEEVES_MQTT_CLIENT_ID"); v != "" {
		c.MQTTClientID = v
	}

	// Redis configuration
	if v := os.Getenv("JEEVES_REDIS_HOST"); v != "" {
		c.RedisHost = v
	}
	if v := os.Getenv("JEEVES_REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.RedisPort = port
		}
	}
	if v := os.Getenv("JEEVES_REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("JEEVES_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.RedisDB = db
		}
	}
	if v := os.Getenv("JEEVES_STATE_BACKEND"); v != "" {
		c.StateBackend = v
	}

	// Postgres configuration
	if v := os.Getenv("JEEVES_POSTGRES_HOST"); v != "" {
		c.PostgresHost = v
	}
	if v := os.Getenv("JEEVES_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.PostgresPort = port
		}
	}
	if v := os.Getenv("JEEVES_POSTGRES_USER"); v != "" {
		c.PostgresUser = v
	}
	if v := os.Getenv("JEEVES_POSTGRES_PASSWORD"); v != "" {
		c.PostgresPassword = v
	}
	if v := os.Getenv("JEEVES_POSTGRES_DB"); v != "" {
		c.PostgresDB = v
	}
	if v := os.Getenv("JEEVES_POSTGRES_SSLMODE"); v != "" {
		c.PostgresSSLMode = v
	}

	// Service configuration
	if v := os.Getenv("JEEVES_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("JEEVES_HEALTH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HealthPort = port
		}
	}
	if v := os.Getenv("JEEVES_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	// Home Assistant configuration
	if v := os.Getenv("JEEVES_HA_URL"); v != "" {
		c.HomeAssistantURL = v
	}
	if v := os.Getenv("JEEVES_HA_TOKEN"); v != "" {
		c.HomeAssistantToken = v
	}
	if v := os.Getenv("JEEVES_HA_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.HomeAssistantTimeout = d
		}
	}

	// Comfort agent configuration
	if v := os.Getenv("JEEVES_POLL_INTERVAL_SEC"); v != "" {
		if interval, err := strconv.Atoi(v); err == nil {
			c.PollIntervalSec = interval
		}
	}
	if v := os.Getenv("JEEVES_HOME_FILE"); v != "" {
		c.HomeFile = v
	}
	if v := os.Getenv("JEEVES_DEMO_MODE"); v != "" {
		if demo, err := strconv.ParseBool(v); err == nil {
			c.DemoMode = demo
		}
	}
	if v := os.Getenv("JEEVES_SENSOR_SOURCE"); v != "" {
		c.SensorSource = v
	}
	if v := os.Getenv("JEEVES_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.APIPort = port
		}
	}
	if v := os.Getenv("JEEVES_LATITUDE"); v != "" {
		if lat, err := strconv.ParseFloat(v, 64); err == nil {
			c.Latitude = lat
		}
	}
	if v := os.Getenv("JEEVES_LONGITUDE"); v != "" {
		if lon, err := strconv.ParseFloat(v, 64); err == nil {
			c.Longitude = lon
		}
	}
}

// LoadFromFlags parses command-line flags and overrides config values
func (c *Config) LoadFromFlags() {
	c.RegisterFlags(pflag.CommandLine)
	pflag.Parse()
}

// RegisterFlags binds every config field to a flag on the given set
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	// MQTT flags
	fs.StringVar(&c.MQTTBroker, "mqtt-broker", c.MQTTBroker, "MQTT broker hostname")
	fs.IntVar(&c.MQTTPort, "mqtt-port", c.MQTTPort, "MQTT broker port")
	fs.StringVar(&c.MQTTUser, "mqtt-user", c.MQTTUser, "MQTT username")
	fs.StringVar(&c.MQTTPassword, "mqtt-password", c.MQTTPassword, "MQTT password")
	fs.StringVar(&c.MQTTClientID, "mqtt-client-id", c.MQTTClientID, "MQTT client ID")

	// Redis flags
	fs.StringVar(&c.RedisHost, "redis-host", c.RedisHost, "Redis hostname")
	fs.IntVar(&c.RedisPort, "redis-port", c.RedisPort, "Redis port")
	fs.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")
	fs.StringVar(&c.StateBackend, "state-backend", c.StateBackend, "Ventilation state backend (redis, memory)")

	// Postgres flags
	fs.StringVar(&c.PostgresHost, "postgres-host", c.PostgresHost, "Postgres hostname (empty disables session history)")
	fs.IntVar(&c.PostgresPort, "postgres-port", c.PostgresPort, "Postgres port")
	fs.StringVar(&c.PostgresUser, "postgres-user", c.PostgresUser, "Postgres user")
	fs.StringVar(&c.PostgresPassword, "postgres-password", c.PostgresPassword, "Postgres password")
	fs.StringVar(&c.PostgresDB, "postgres-db", c.PostgresDB, "Postgres database")
	fs.StringVar(&c.PostgresSSLMode, "postgres-sslmode", c.PostgresSSLMode, "Postgres SSL mode")

	// Service flags
	fs.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Service name")
	fs.IntVar(&c.HealthPort, "health-port", c.HealthPort, "Health check HTTP port")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")

	// Home Assistant flags
	fs.StringVar(&c.HomeAssistantURL, "ha-url", c.HomeAssistantURL, "Home Assistant base URL")
	fs.StringVar(&c.HomeAssistantToken, "ha-token", c.HomeAssistantToken, "Home Assistant long-lived access token")
	fs.DurationVar(&c.HomeAssistantTimeout, "ha-timeout", c.HomeAssistantTimeout, "Home Assistant request timeout")

	// Comfort agent flags
	fs.IntVar(&c.PollIntervalSec, "poll-interval", c.PollIntervalSec, "Snapshot poll interval in seconds")
	fs.StringVar(&c.HomeFile, "home-file", c.HomeFile, "Path to the home layout YAML file")
	fs.BoolVar(&c.DemoMode, "demo-mode", c.DemoMode, "Use synthetic readings instead of Home Assistant")
	fs.StringVar(&c.SensorSource, "sensor-source", c.SensorSource, "Sensor source (ha, mqtt, demo; empty picks automatically)")
	fs.IntVar(&c.APIPort, "api-port", c.APIPort, "HTTP API port")
	fs.Float64Var(&c.Latitude, "latitude", c.Latitude, "Geographic latitude for the demo outdoor model")
	fs.Float64Var(&c.Longitude, "longitude", c.Longitude, "Geographic longitude for the demo outdoor model")
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT broker is required")
	}
	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		return fmt.Errorf("MQTT port must be between 1 and 65535")
	}
	switch c.StateBackend {
	case "redis":
		if c.RedisHost == "" {
			return fmt.Errorf("Redis host is required for the redis state backend")
		}
		if c.RedisPort <= 0 || c.RedisPort > 65535 {
			return fmt.Errorf("Redis port must be between 1 and 65535")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid state backend: %s (must be redis or memory)", c.StateBackend)
	}
	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("Health port must be between 1 and 65535")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("API port must be between 1 and 65535")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("Service name is required")
	}
	if c.PollIntervalSec <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	switch c.SensorSource {
	case "", SensorSourceMQTT, SensorSourceDemo:
	case SensorSourceHA:
		if c.HomeAssistantURL == "" || c.HomeAssistantToken == "" {
			return fmt.Errorf("Home Assistant URL and token are required for the ha sensor source")
		}
	default:
		return fmt.Errorf("invalid sensor source: %s (must be ha, mqtt or demo)", c.SensorSource)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// Sensor sources
const (
	SensorSourceHA   = "ha"
	SensorSourceMQTT = "mqtt"
	SensorSourceDemo = "demo"
)

// Source resolves the effective sensor source. Demo mode always wins.
func (c *Config) Source() string {
	switch {
	case c.DemoMode:
		return SensorSourceDemo
	case c.SensorSource != "":
		return c.SensorSource
	case c.HomeAssistantURL != "" && c.HomeAssistantToken != "":
		return SensorSourceHA
	default:
		return SensorSourceDemo
	}
}

// UseDemo reports whether synthetic readings replace live data
func (c *Config) UseDemo() bool {
	return c.Source() == SensorSourceDemo
}

// CommandsEnabled reports whether thermostat commands reach Home Assistant.
// The MQTT source still sends commands when Home Assistant is configured.
func (c *Config) CommandsEnabled() bool {
	return !c.UseDemo() && c.HomeAssistantURL != "" && c.HomeAssistantToken != ""
}

// HistoryEnabled reports whether closed sessions are written to Postgres
func (c *Config) HistoryEnabled() bool {
	return c.PostgresHost != ""
}

// PollInterval returns the poll interval as a duration
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// MQTTAddress returns the full MQTT broker address
func (c *Config) MQTTAddress() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBroker, c.MQTTPort)
}

// RedisAddress returns the full Redis address
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// PostgresConnectionString returns a lib/pq connection string
func (c *Config) PostgresConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode)
}
