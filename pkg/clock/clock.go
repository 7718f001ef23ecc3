package clock

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/saaga0h/jeeves-comfort/pkg/mqtt"
)

// Clock is the time source of the poll loop
type Clock interface {
	Now() time.Time
}

// Virtual follows wall time until a test-mode config arrives, then runs a
// scaled virtual clock from the configured start
type Virtual struct {
	mu           sync.RWMutex
	testMode     bool
	virtualStart time.Time
	realStart    time.Time
	timeScale    int
	location     *time.Location
	wall         func() time.Time
	logger       *slog.Logger
}

// TestModeConfig is the payload of automation/test/time_config
type TestModeConfig struct {
	VirtualStart string `json:"virtual_start"`
	TimeScale    int    `json:"time_scale"`
	TestMode     bool   `json:"test_mode"`
}

// NewVirtual creates a clock reporting local wall time
func NewVirtual(logger *slog.Logger) *Virtual {
	return &Virtual{
		timeScale: 1,
		location:  time.Local,
		wall:      time.Now,
		logger:    logger,
	}
}

// ConfigureFromMQTT subscribes to test mode configuration
func (v *Virtual) ConfigureFromMQTT(client mqtt.Client) error {
	handler := func(msg mqtt.Message) {
		if err := v.Configure(msg.Payload()); err != nil {
			v.logger.Error("Failed to apply test mode config", "error", err)
		}
	}
	return client.Subscribe(mqtt.TopicTimeConfig, 1, handler)
}

// Configure applies a JSON test mode payload
func (v *Virtual) Configure(payload []byte) error {
	var cfg TestModeConfig
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return fmt.Errorf("failed to parse test mode config: %w", err)
	}

	if !cfg.TestMode {
		v.mu.Lock()
		v.testMode = false
		v.mu.Unlock()
		v.logger.Info("Test mode disabled")
		return nil
	}

	start, err := time.Parse(time.RFC3339, cfg.VirtualStart)
	if err != nil {
		return fmt.Errorf("invalid virtual_start: %w", err)
	}
	if cfg.TimeScale < 1 {
		cfg.TimeScale = 1
	}

	v.mu.Lock()
	v.testMode = true
	v.virtualStart = start
	v.realStart = v.wall()
	v.timeScale = cfg.TimeScale
	// Night detection uses the hour as written in virtual_start
	v.location = start.Location()
	v.mu.Unlock()

	v.logger.Info("Test mode configured", "virtual_start", cfg.VirtualStart, "time_scale", cfg.TimeScale)
	return nil
}

// Now returns wall time, or scaled virtual time in test mode
func (v *Virtual) Now() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if !v.testMode {
		return v.wall().In(v.location)
	}

	elapsed := v.wall().Sub(v.realStart) * time.Duration(v.timeScale)
	return v.virtualStart.Add(elapsed)
}

// IsTestMode reports whether virtual time is active
func (v *Virtual) IsTestMode() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.testMode
}

// Manual only moves when told to; used for scenario replay
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual creates a clock stopped at start
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance moves the clock forward by d
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
