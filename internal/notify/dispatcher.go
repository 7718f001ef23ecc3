package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saaga0h/jeeves-comfort/internal/comfort"
)

// CriticalScore is the score at or below which a critical alert is sent
const CriticalScore = 50

// Kind distinguishes the two notification families
type Kind string

const (
	KindCritical Kind = "critical"
	KindStatus   Kind = "status"
)

// AlertVibration is the pattern used when a notification must grab attention
var AlertVibration = []int{200, 100, 200}

// Notification is one outbound message
type Notification struct {
	ID                 string    `json:"id"`
	Kind               Kind      `json:"kind"`
	RoomID             string    `json:"room_id"`
	Title              string    `json:"title"`
	Body               string    `json:"body"`
	Tag                string    `json:"tag"`
	VibrationPattern   []int     `json:"vibration_pattern,omitempty"`
	RequireReattention bool      `json:"require_reattention"`
	Timestamp          time.Time `json:"timestamp"`
}

// Sink delivers notifications to the host
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// Input is everything the dispatcher looks at for one room in one tick
type Input struct {
	Room    comfort.RoomReading
	Result  comfort.AnalysisResult
	Limits  comfort.Limits
	Session *comfort.Session
	Now     time.Time
}

type roomState struct {
	lastBody      string
	lastCritical  string // calendar hour of the last critical alert
	lastRemaining *int
	tooCold       bool
}

// Dispatcher turns analysis results into at most one notification per state change
type Dispatcher struct {
	mu     sync.Mutex
	sink   Sink
	rooms  map[string]*roomState
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher writing to sink
func NewDispatcher(sink Sink, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sink:   sink,
		rooms:  make(map[string]*roomState),
		logger: logger,
	}
}

// Dispatch evaluates one room and returns the notifications that were delivered
func (d *Dispatcher) Dispatch(ctx context.Context, in Input) []Notification {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := d.rooms[in.Room.ID]
	if st == nil {
		st = &roomState{}
		d.rooms[in.Room.ID] = st
	}

	var sent []Notification

	if in.Result.Score <= CriticalScore {
		hour := in.Now.Format("2006-01-02T15")
		if st.lastCritical != hour {
			n := d.newNotification(KindCritical, in)
			n.Title = fmt.Sprintf("Critical air quality: %s", in.Room.DisplayName())
			n.Body = criticalBody(in.Result)
			n.VibrationPattern = AlertVibration
			n.RequireReattention = true
			if d.send(ctx, st, n) {
				st.lastCritical = hour
				sent = append(sent, n)
			}
		}
	}

	if !in.Room.WindowOpen || in.Result.RemainingMinutes == nil {
		st.lastRemaining = nil
		st.tooCold = false
		return sent
	}

	remaining := *in.Result.RemainingMinutes
	tooCold := in.Room.Temperature < in.Limits.TempMin

	escalate := (tooCold && !st.tooCold) ||
		(st.lastRemaining != nil && *st.lastRemaining > 0 && remaining <= 0)

	n := d.newNotification(KindStatus, in)
	n.Title = fmt.Sprintf("Ventilating %s", in.Room.DisplayName())
	n.Body = statusBody(in, remaining, tooCold)
	if in.Session != nil {
		n.Tag = in.Session.Key()
	}
	if escalate {
		n.VibrationPattern = AlertVibration
		n.RequireReattention = true
	}

	if d.send(ctx, st, n) {
		sent = append(sent, n)
		st.tooCold = tooCold
		st.lastRemaining = &remaining
	} else if n.Body == st.lastBody {
		// Unchanged body still advances the transition state
		st.tooCold = tooCold
		st.lastRemaining = &remaining
	}

	return sent
}

// Forget drops the session transition state of a room when its session
// closes. The last body is kept so a reopened window never repeats it.
func (d *Dispatcher) Forget(roomID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, ok := d.rooms[roomID]; ok {
		st.lastRemaining = nil
		st.tooCold = false
	}
}

// send delivers n unless its body repeats the last one. Caller holds mu.
func (d *Dispatcher) send(ctx context.Context, st *roomState, n Notification) bool {
	if n.Body == st.lastBody {
		return false
	}
	if err := d.sink.Notify(ctx, n); err != nil {
		d.logger.Warn("Failed to deliver notification", "room", n.RoomID, "kind", n.Kind, "error", err)
		return false
	}
	st.lastBody = n.Body
	d.logger.Info("Notification sent",
		"room", n.RoomID,
		"kind", n.Kind,
		"alert", n.RequireReattention,
		"body", n.Body)
	return true
}

func (d *Dispatcher) newNotification(kind Kind, in Input) Notification {
	return Notification{
		ID:        uuid.New().String(),
		Kind:      kind,
		RoomID:    in.Room.ID,
		Tag:       in.Room.ID,
		Timestamp: in.Now,
	}
}

func criticalBody(result comfort.AnalysisResult) string {
	msgs := make([]string, 0, len(result.Issues))
	for _, issue := range result.Issues {
		msgs = append(msgs, issue.Message)
	}
	body := fmt.Sprintf("Comfort score %d", result.Score)
	if len(msgs) > 0 {
		body += ": " + strings.Join(msgs, ", ")
	}
	return body
}

func statusBody(in Input, remaining int, tooCold bool) string {
	var icon, directive string
	switch {
	case tooCold:
		icon, directive = "🥶", "Too cold, close the window immediately"
	case remaining > 0:
		icon, directive = "🪟", fmt.Sprintf("%d min left", remaining)
	default:
		icon, directive = "✅", "Time's up, close the window"
	}
	return fmt.Sprintf("%s %s · %s", icon, directive, reason(in))
}

// reason names the air quality figures that keep the window open
func reason(in Input) string {
	var parts []string
	if in.Result.HasIssue(comfort.DimensionCO2) && in.Room.CO2 != nil {
		parts = append(parts, fmt.Sprintf("CO2 %.0f ppm", *in.Room.CO2))
	}
	if in.Result.HasIssue(comfort.DimensionHumidity) {
		parts = append(parts, fmt.Sprintf("humidity %.0f%%", in.Room.Humidity))
	}
	if len(parts) == 0 {
		return "air quality good"
	}
	return strings.Join(parts, ", ")
}
