package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/saaga0h/jeeves-comfort/internal/climate"
	"github.com/saaga0h/jeeves-comfort/internal/notify"
	"github.com/saaga0h/jeeves-comfort/internal/ventilation"
	"github.com/saaga0h/jeeves-comfort/pkg/clock"
	"github.com/saaga0h/jeeves-comfort/pkg/config"
)

// SourceName tags snapshots produced by a replay
const SourceName = "scenario"

// Runner replays scenarios through a fresh agent each time
type Runner struct {
	logger *slog.Logger
}

// NewRunner creates a scenario runner
func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{logger: logger}
}

// Run replays every step on a manual clock and checks its expectations.
// Sessions, learning and extensions start empty and live in memory.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Result, error) {
	home := sc.Home
	if home == nil {
		home = config.DefaultHome()
	}

	layout, err := climate.NewLayout(home)
	if err != nil {
		return nil, fmt.Errorf("failed to build layout: %w", err)
	}
	for i, step := range sc.Steps {
		for roomID := range step.Rooms {
			if _, ok := home.Room(roomID); !ok {
				return nil, fmt.Errorf("step %d: unknown room %s", i, roomID)
			}
		}
	}

	clk := clock.NewManual(sc.Start)
	sent := &notify.Recorder{}
	source := &scriptedSource{}

	agent := climate.NewAgent(climate.Options{
		Layout:       layout,
		Source:       source,
		State:        ventilation.NewState(ventilation.NewMemoryStore(), nil, r.logger),
		Dispatcher:   notify.NewDispatcher(sent, r.logger),
		Limits:       climate.NewLimitStore(layout.Profiles, nil, r.logger),
		Clock:        clk,
		PollInterval: time.Minute,
	}, r.logger)

	r.logger.Info("Running scenario", "name", sc.Name, "steps", len(sc.Steps))

	result := &Result{Scenario: sc, Passed: true}
	for _, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		now := sc.Start.Add(step.At)
		clk.Set(now)
		source.set(step)

		before := len(sent.Sent())
		agent.Tick(ctx)
		delivered := sent.Sent()[before:]

		rooms := agent.Rooms()
		sr := StepResult{
			Step:     step,
			Time:     now,
			Rooms:    rooms,
			Sent:     delivered,
			Failures: Check(step.Expect, rooms, delivered),
		}
		if !sr.Passed() {
			result.Passed = false
			r.logger.Warn("Step failed", "at", step.At, "description", step.Description, "failures", len(sr.Failures))
		}
		result.Steps = append(result.Steps, sr)
	}

	r.logger.Info("Scenario finished", "name", sc.Name, "passed", result.Passed, "failed", result.FailedCount())
	return result, nil
}

// Check evaluates a step's expectations against the room views and the
// notifications delivered in that step
func Check(expect map[string]map[string]interface{}, rooms []climate.RoomView, sent []notify.Notification) []string {
	byID := make(map[string]climate.RoomView, len(rooms))
	for _, view := range rooms {
		byID[view.Room.ID] = view
	}

	roomIDs := make([]string, 0, len(expect))
	for roomID := range expect {
		roomIDs = append(roomIDs, roomID)
	}
	sort.Strings(roomIDs)

	var failures []string
	for _, roomID := range roomIDs {
		view, ok := byID[roomID]
		if !ok {
			failures = append(failures, fmt.Sprintf("%s: unknown room", roomID))
			continue
		}

		fields := make([]string, 0, len(expect[roomID]))
		for field := range expect[roomID] {
			fields = append(fields, field)
		}
		sort.Strings(fields)

		for _, field := range fields {
			actual := fieldValue(field, view, roomNotifications(roomID, sent))
			if ok, reason := Match(actual, expect[roomID][field]); !ok {
				failures = append(failures, fmt.Sprintf("%s.%s: %s", roomID, field, reason))
			}
		}
	}
	return failures
}

func fieldValue(field string, view climate.RoomView, sent []notify.Notification) interface{} {
	switch field {
	case "score":
		return view.Analysis.Score
	case "band":
		return view.Band
	case "remaining_minutes":
		if view.Analysis.RemainingMinutes == nil {
			return nil
		}
		return *view.Analysis.RemainingMinutes
	case "total_target_minutes":
		return view.Analysis.TotalTargetMinutes
	case "extension_minutes":
		return view.Estimate.ExtensionMinutes
	case "cross_ventilating":
		return view.Analysis.IsCrossVentilating
	case "adaptive":
		return view.Analysis.IsAdaptiveEstimate
	case "session":
		return view.Session != nil
	case "window_open":
		return view.Room.WindowOpen
	case "issues":
		msgs := make([]string, 0, len(view.Analysis.Issues))
		for _, issue := range view.Analysis.Issues {
			msgs = append(msgs, issue.Message)
		}
		return strings.Join(msgs, " | ")
	case "recommendations":
		return strings.Join(view.Analysis.Recommendations, " | ")
	case "notification":
		if len(sent) == 0 {
			return nil
		}
		return sent[len(sent)-1].Body
	case "notifications":
		return len(sent)
	case "alert":
		for _, n := range sent {
			if n.RequireReattention {
				return true
			}
		}
		return false
	default:
		return nil
	}
}

func roomNotifications(roomID string, sent []notify.Notification) []notify.Notification {
	var out []notify.Notification
	for _, n := range sent {
		if n.RoomID == roomID {
			out = append(out, n)
		}
	}
	return out
}

// scriptedSource applies the current step's changes on top of the previous snapshot
type scriptedSource struct {
	step Step
}

func (s *scriptedSource) set(step Step) {
	s.step = step
}

func (s *scriptedSource) Name() string { return SourceName }

func (s *scriptedSource) Fetch(ctx context.Context, prev climate.Snapshot, now time.Time) (climate.Snapshot, error) {
	next := prev.Clone()
	next.Source = SourceName
	next.FetchedAt = now

	if o := s.step.Outside; o != nil {
		if o.Temperature != nil {
			next.Outside.Temperature = *o.Temperature
		}
		if o.Humidity != nil {
			next.Outside.Humidity = *o.Humidity
		}
	}

	for roomID, update := range s.step.Rooms {
		room := next.Room(roomID)
		if room == nil {
			continue
		}
		if update.Temperature != nil {
			room.Temperature = *update.Temperature
		}
		if update.Humidity != nil {
			room.Humidity = *update.Humidity
		}
		if update.CO2 != nil && room.HasCO2 {
			co2 := *update.CO2
			room.CO2 = &co2
		}
		if update.Window != nil && *update.Window != room.WindowOpen {
			room.WindowOpen = *update.Window
			changed := now
			room.WindowChangedAt = &changed
		}
	}

	// Changes apply once; later ticks without a step keep the values
	s.step = Step{}
	return next, nil
}
