package climate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/saaga0h/jeeves-comfort/pkg/homeassistant"
)

var (
	ErrUnknownRoom        = errors.New("unknown room")
	ErrInvalidMode        = errors.New("invalid hvac mode")
	ErrInvalidTemperature = errors.New("invalid target temperature")
	ErrNoClimateEntity    = errors.New("room has no climate entity")
)

// Accepted set-point range
const (
	MinTargetTemperature = 5.0
	MaxTargetTemperature = 30.0

	commandTimeout = 10 * time.Second
)

// SetTargetTemperature applies the set-point locally and sends it to the
// thermostat in the background. A failed call is reported in the status and
// the local value is kept.
func (a *Agent) SetTargetTemperature(roomID string, temperature float64) error {
	if math.IsNaN(temperature) || math.IsInf(temperature, 0) ||
		temperature < MinTargetTemperature || temperature > MaxTargetTemperature {
		return fmt.Errorf("%w: %v", ErrInvalidTemperature, temperature)
	}

	entityID, err := a.climateEntity(roomID)
	if err != nil {
		return err
	}

	a.mu.Lock()
	if room := a.snapshot.Room(roomID); room != nil {
		target := temperature
		room.TargetTemperature = &target
	}
	a.commandAt[roomID] = time.Now()
	a.mu.Unlock()

	a.logger.Info("Target temperature set", "room", roomID, "entity", entityID, "temperature", temperature)

	a.send("set_temperature", roomID, func(ctx context.Context) error {
		return a.commands.SetTemperature(ctx, entityID, temperature)
	})
	return nil
}

// SetMode switches the thermostat between heat and off with the same
// optimistic semantics as SetTargetTemperature
func (a *Agent) SetMode(roomID string, mode string) error {
	if mode != homeassistant.ModeHeat && mode != homeassistant.ModeOff {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	entityID, err := a.climateEntity(roomID)
	if err != nil {
		return err
	}

	a.mu.Lock()
	if room := a.snapshot.Room(roomID); room != nil {
		room.HVACMode = mode
	}
	a.commandAt[roomID] = time.Now()
	a.mu.Unlock()

	a.logger.Info("HVAC mode set", "room", roomID, "entity", entityID, "mode", mode)

	a.send("set_hvac_mode", roomID, func(ctx context.Context) error {
		return a.commands.SetHVACMode(ctx, entityID, mode)
	})
	return nil
}

func (a *Agent) climateEntity(roomID string) (string, error) {
	a.mu.RLock()
	known := a.snapshot.Room(roomID) != nil
	a.mu.RUnlock()
	if !known {
		return "", fmt.Errorf("%w: %s", ErrUnknownRoom, roomID)
	}

	entityID := a.entities[roomID].Climate
	if entityID == "" {
		return "", fmt.Errorf("%w: %s", ErrNoClimateEntity, roomID)
	}
	return entityID, nil
}

// send runs a command without blocking the caller. In demo mode there is no
// backend and the optimistic value is all there is.
func (a *Agent) send(name, roomID string, call func(ctx context.Context) error) {
	if a.commands == nil {
		a.logger.Debug("No command backend, change applied locally only", "command", name, "room", roomID)
		return
	}

	a.pending.Add(1)
	go func() {
		defer a.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		if err := call(ctx); err != nil {
			a.status.commandFailed(fmt.Errorf("%s for %s failed: %w", name, roomID, err))
			a.logger.Error("Thermostat command failed, local value kept",
				"command", name,
				"room", roomID,
				"error", err)
			return
		}
		a.status.commandSucceeded()
	}()
}
