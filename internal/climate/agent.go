package climate

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/saaga0h/jeeves-comfort/internal/comfort"
	"github.com/saaga0h/jeeves-comfort/internal/notify"
	"github.com/saaga0h/jeeves-comfort/internal/ventilation"
	"github.com/saaga0h/jeeves-comfort/pkg/clock"
	"github.com/saaga0h/jeeves-comfort/pkg/config"
	"github.com/saaga0h/jeeves-comfort/pkg/homeassistant"
	"github.com/saaga0h/jeeves-comfort/pkg/mqtt"
)

// RoomView is the latest evaluation of one room, served by the API and
// published as the room's comfort context
type RoomView struct {
	Room      comfort.RoomReading    `json:"room"`
	Limits    comfort.Limits         `json:"limits"`
	Analysis  comfort.AnalysisResult `json:"analysis"`
	Band      string                 `json:"band"`
	Estimate  comfort.Estimate       `json:"estimate"`
	Session   *comfort.Session       `json:"session,omitempty"`
	Outside   comfort.OutsideReading `json:"outside"`
	Source    string                 `json:"source"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Options wires the agent. Publisher, Commands and Metrics are optional.
type Options struct {
	Layout       *Layout
	Source       Source
	State        *ventilation.State
	Dispatcher   *notify.Dispatcher
	Limits       *LimitStore
	Clock        clock.Clock
	Publisher    mqtt.Client
	Commands     homeassistant.Client
	Metrics      *Metrics
	PollInterval time.Duration
}

// Agent runs the poll-evaluate-dispatch loop
type Agent struct {
	source     Source
	state      *ventilation.State
	dispatcher *notify.Dispatcher
	limits     *LimitStore
	topology   comfort.Topology
	entities   map[string]config.EntityMapping
	clock      clock.Clock
	publisher  mqtt.Client
	commands   homeassistant.Client
	metrics    *Metrics
	interval   time.Duration
	logger     *slog.Logger

	mu        sync.RWMutex
	snapshot  Snapshot
	views     map[string]RoomView
	commandAt map[string]time.Time

	status   *statusTracker
	polling  atomic.Bool
	ticker   *time.Ticker
	stopChan chan struct{}
	pending  sync.WaitGroup
}

// NewAgent creates an agent seeded with the layout's initial readings
func NewAgent(opts Options, logger *slog.Logger) *Agent {
	return &Agent{
		source:     opts.Source,
		state:      opts.State,
		dispatcher: opts.Dispatcher,
		limits:     opts.Limits,
		topology:   opts.Layout.Topology,
		entities:   opts.Layout.Entities,
		clock:      opts.Clock,
		publisher:  opts.Publisher,
		commands:   opts.Commands,
		metrics:    opts.Metrics,
		interval:   opts.PollInterval,
		logger:     logger,
		snapshot:   opts.Layout.InitialSnapshot(opts.Source.Name()),
		views:      make(map[string]RoomView),
		commandAt:  make(map[string]time.Time),
		status:     newStatusTracker(opts.Source.Name()),
		stopChan:   make(chan struct{}),
	}
}

// Start restores persisted state, runs the first tick and starts the poll loop
func (a *Agent) Start(ctx context.Context) error {
	a.logger.Info("Starting comfort agent",
		"source", a.source.Name(),
		"poll_interval", a.interval,
		"rooms", len(a.snapshot.Rooms))

	a.state.Load(ctx)
	a.limits.Load(ctx)

	a.Tick(ctx)

	a.ticker = time.NewTicker(a.interval)
	go func() {
		for {
			select {
			case <-a.ticker.C:
				a.Tick(ctx)
			case <-a.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop ends the poll loop and waits for in-flight commands
func (a *Agent) Stop() {
	a.logger.Info("Stopping comfort agent")

	if a.ticker != nil {
		a.ticker.Stop()
	}
	close(a.stopChan)
	a.pending.Wait()

	a.logger.Info("Comfort agent stopped")
}

// Tick performs one poll-evaluate-dispatch cycle. It returns false when a
// previous tick is still running, in which case nothing is done.
func (a *Agent) Tick(ctx context.Context) bool {
	if !a.polling.CompareAndSwap(false, true) {
		a.logger.Debug("Previous poll still running, skipping tick")
		return false
	}
	defer a.polling.Store(false)

	started := time.Now()
	now := a.clock.Now()

	a.mu.RLock()
	prev := a.snapshot.Clone()
	a.mu.RUnlock()

	snapshot, err := a.source.Fetch(ctx, prev, now)
	if err != nil {
		a.status.pollFailed(err)
		a.metrics.PollFailed()
		a.logger.Warn("Snapshot fetch failed, analysing last known values", "error", err)
		snapshot = prev
	} else {
		a.status.pollSucceeded(now)
	}

	snapshot = a.commit(snapshot, started)

	for _, room := range snapshot.Rooms {
		event := a.state.Observe(ctx, room, now)
		if event.Transition == ventilation.Closed {
			a.dispatcher.Forget(room.ID)
		}
	}

	profiles := a.limits.Profiles()
	views := make(map[string]RoomView, len(snapshot.Rooms))
	for _, room := range snapshot.Rooms {
		view := a.evaluate(ctx, room, snapshot, profiles, now)
		views[room.ID] = view

		sent := a.dispatcher.Dispatch(ctx, notify.Input{
			Room:    room,
			Result:  view.Analysis,
			Limits:  view.Limits,
			Session: view.Session,
			Now:     now,
		})
		for _, n := range sent {
			a.metrics.NotificationSent(n)
		}

		a.metrics.ObserveRoom(room, view.Analysis)
		a.publishContext(view)
	}

	a.mu.Lock()
	a.views = views
	a.mu.Unlock()

	a.metrics.PollDuration(time.Since(started))
	a.logger.Debug("Tick complete", "rooms", len(views), "source", snapshot.Source)
	return true
}

// commit stores the fetched snapshot. Thermostat values changed by a command
// issued while the fetch was running are kept over the fetched ones.
func (a *Agent) commit(snapshot Snapshot, fetchStarted time.Time) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	for roomID, at := range a.commandAt {
		if at.Before(fetchStarted) {
			delete(a.commandAt, roomID)
			continue
		}
		current := a.snapshot.Room(roomID)
		fetched := snapshot.Room(roomID)
		if current == nil || fetched == nil {
			continue
		}
		fetched.TargetTemperature = current.TargetTemperature
		fetched.HVACMode = current.HVACMode
	}

	a.snapshot = snapshot
	return snapshot.Clone()
}

// evaluate estimates and analyses one room. An extension step is applied
// before the result is returned, so the remaining time already includes it.
func (a *Agent) evaluate(ctx context.Context, room comfort.RoomReading, snapshot Snapshot, profiles map[comfort.Category]comfort.LimitProfile, now time.Time) RoomView {
	limits := comfort.ResolveLimits(profiles, room.Category, now.Hour())
	airflow := comfort.DetectAirflow(room.ID, snapshot.Rooms, a.topology)
	learning := a.state.Learning(room.ID)

	var session *comfort.Session
	if s, ok := a.state.Session(room.ID); ok {
		session = &s
	}

	analyze := func() (comfort.Estimate, comfort.AnalysisResult) {
		extension := 0
		if session != nil {
			extension = a.state.Extension(session.Key())
		}
		estimate := comfort.EstimateDuration(comfort.EstimateInput{
			OutsideTemp:      snapshot.Outside.Temperature,
			Room:             room,
			Limits:           limits,
			Session:          session,
			Learning:         &learning,
			CrossVentilating: airflow.CrossVentilating,
			ExtensionMinutes: extension,
			Now:              now,
		})
		result := comfort.AnalyzeRoom(comfort.AnalysisInput{
			Room:     room,
			Outside:  snapshot.Outside,
			Limits:   limits,
			IsNight:  comfort.IsNight(now.Hour()),
			Airflow:  airflow,
			Estimate: estimate,
			Session:  session,
			Now:      now,
		})
		return estimate, result
	}

	estimate, result := analyze()
	if comfort.NeedsExtension(result, session) {
		if _, extended := a.state.Extend(ctx, *session); extended {
			a.metrics.ExtensionApplied(room.ID)
			estimate, result = analyze()
		}
	}

	return RoomView{
		Room:      room,
		Limits:    limits,
		Analysis:  result,
		Band:      result.Band(),
		Estimate:  estimate,
		Session:   session,
		Outside:   snapshot.Outside,
		Source:    snapshot.Source,
		UpdatedAt: now,
	}
}

func (a *Agent) publishContext(view RoomView) {
	if a.publisher == nil || !a.publisher.IsConnected() {
		return
	}

	payload, err := json.Marshal(view)
	if err != nil {
		a.logger.Error("Failed to marshal comfort context", "room", view.Room.ID, "error", err)
		return
	}

	topic := mqtt.ComfortContextTopic(view.Room.ID)
	if err := a.publisher.Publish(topic, 0, true, payload); err != nil {
		a.logger.Warn("Failed to publish comfort context", "topic", topic, "error", err)
	}
}

// Rooms returns the latest view of every room in layout order
func (a *Agent) Rooms() []RoomView {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]RoomView, 0, len(a.snapshot.Rooms))
	for _, room := range a.snapshot.Rooms {
		view, ok := a.views[room.ID]
		if !ok {
			view = RoomView{Room: room, Outside: a.snapshot.Outside, Source: a.snapshot.Source}
		}
		view.Room = cloneReading(room)
		out = append(out, view)
	}
	return out
}

// Room returns the latest view of one room
func (a *Agent) Room(roomID string) (RoomView, bool) {
	for _, view := range a.Rooms() {
		if view.Room.ID == roomID {
			return view, true
		}
	}
	return RoomView{}, false
}

// Status returns the connection status of the data path
func (a *Agent) Status() Status {
	return a.status.get()
}

// Limits returns the editable comfort profiles
func (a *Agent) Limits() map[comfort.Category]comfort.LimitProfile {
	return a.limits.Profiles()
}

// UpdateLimits stores an edited profile; it takes effect on the next tick
func (a *Agent) UpdateLimits(ctx context.Context, category comfort.Category, profile comfort.LimitProfile) error {
	return a.limits.Update(ctx, category, profile)
}
