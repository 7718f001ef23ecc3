package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrUnauthorized is returned when Home Assistant rejects the access token
var ErrUnauthorized = errors.New("home assistant: unauthorized")

// HVAC modes accepted by SetHVACMode
const (
	ModeHeat = "heat"
	ModeOff  = "off"
)

// Client reads entity states and calls services on a Home Assistant instance
type Client interface {
	// States returns every entity state
	States(ctx context.Context) ([]Entity, error)

	// SetTemperature sets a climate entity's target temperature
	SetTemperature(ctx context.Context, entityID string, temperature float64) error

	// SetHVACMode switches a climate entity between heat and off
	SetHVACMode(ctx context.Context, entityID string, mode string) error
}

// restClient implements Client over the Home Assistant REST API
type restClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a REST client authenticated with a long-lived access token
func NewClient(baseURL, token string, timeout time.Duration, logger *slog.Logger) Client {
	return &restClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// States fetches GET /api/states
func (c *restClient) States(ctx context.Context) ([]Entity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/states", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var entities []Entity
	if err := json.NewDecoder(resp.Body).Decode(&entities); err != nil {
		return nil, fmt.Errorf("failed to decode states: %w", err)
	}

	c.logger.Debug("Fetched Home Assistant states", "entities", len(entities))
	return entities, nil
}

// SetTemperature calls climate.set_temperature
func (c *restClient) SetTemperature(ctx context.Context, entityID string, temperature float64) error {
	return c.callService(ctx, "climate", "set_temperature", map[string]interface{}{
		"entity_id":   entityID,
		"temperature": temperature,
	})
}

// SetHVACMode calls climate.set_hvac_mode
func (c *restClient) SetHVACMode(ctx context.Context, entityID string, mode string) error {
	if mode != ModeHeat && mode != ModeOff {
		return fmt.Errorf("unsupported hvac mode %q", mode)
	}
	return c.callService(ctx, "climate", "set_hvac_mode", map[string]interface{}{
		"entity_id": entityID,
		"hvac_mode": mode,
	})
}

func (c *restClient) callService(ctx context.Context, domain, service string, data map[string]interface{}) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal service data: %w", err)
	}

	url := fmt.Sprintf("%s/api/services/%s/%s", c.baseURL, domain, service)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	c.logger.Debug("Called Home Assistant service", "service", domain+"."+service, "entity", data["entity_id"])
	return nil
}

// do sends an authenticated request and maps non-2xx responses to errors
func (c *restClient) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		return nil, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("home assistant returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return resp, nil
}
