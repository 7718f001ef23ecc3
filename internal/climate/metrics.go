package climate

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/saaga0h/jeeves-comfort/internal/comfort"
	"github.com/saaga0h/jeeves-comfort/internal/notify"
)

// Metrics exposes the per-room analysis on /metrics. A nil *Metrics is a no-op.
type Metrics struct {
	registry *prometheus.Registry

	score            *prometheus.GaugeVec
	targetMinutes    *prometheus.GaugeVec
	remainingMinutes *prometheus.GaugeVec
	windowOpen       *prometheus.GaugeVec
	notifications    *prometheus.CounterVec
	extensions       *prometheus.CounterVec
	pollFailures     prometheus.Counter
	pollDuration     prometheus.Histogram
	httpRequests     *prometheus.CounterVec
}

// NewMetrics registers the comfort collectors on a dedicated registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		score: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "comfort_score",
			Help: "Comfort score per room (0-100).",
		}, []string{"room"}),
		targetMinutes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "comfort_ventilation_target_minutes",
			Help: "Recommended total window-open duration per room.",
		}, []string{"room"}),
		remainingMinutes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "comfort_ventilation_remaining_minutes",
			Help: "Minutes left in the current ventilation session.",
		}, []string{"room"}),
		windowOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "comfort_window_open",
			Help: "Window state per room (1 open, 0 closed).",
		}, []string{"room"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "comfort_notifications_total",
			Help: "Notifications delivered by room and kind.",
		}, []string{"room", "kind"}),
		extensions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "comfort_timer_extensions_total",
			Help: "Timer extension steps applied per room.",
		}, []string{"room"}),
		pollFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "comfort_poll_failures_total",
			Help: "Snapshot fetches that failed.",
		}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "comfort_poll_duration_seconds",
			Help:    "Duration of one poll-evaluate-dispatch tick.",
			Buckets: prometheus.DefBuckets,
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "comfort_http_requests_total",
			Help: "API requests by route and status.",
		}, []string{"route", "status"}),
	}

	m.registry.MustRegister(
		m.score,
		m.targetMinutes,
		m.remainingMinutes,
		m.windowOpen,
		m.notifications,
		m.extensions,
		m.pollFailures,
		m.pollDuration,
		m.httpRequests,
	)

	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRoom records the latest analysis of a room
func (m *Metrics) ObserveRoom(room comfort.RoomReading, result comfort.AnalysisResult) {
	if m == nil {
		return
	}
	m.score.WithLabelValues(room.ID).Set(float64(result.Score))
	m.targetMinutes.WithLabelValues(room.ID).Set(float64(result.TotalTargetMinutes))

	open := 0.0
	if room.WindowOpen {
		open = 1
	}
	m.windowOpen.WithLabelValues(room.ID).Set(open)

	if result.RemainingMinutes != nil {
		m.remainingMinutes.WithLabelValues(room.ID).Set(float64(*result.RemainingMinutes))
	} else {
		m.remainingMinutes.DeleteLabelValues(room.ID)
	}
}

func (m *Metrics) NotificationSent(n notify.Notification) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(n.RoomID, string(n.Kind)).Inc()
}

func (m *Metrics) ExtensionApplied(roomID string) {
	if m == nil {
		return
	}
	m.extensions.WithLabelValues(roomID).Inc()
}

func (m *Metrics) PollFailed() {
	if m == nil {
		return
	}
	m.pollFailures.Inc()
}

func (m *Metrics) PollDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.pollDuration.Observe(d.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests of one API route
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		if m != nil {
			m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		}
	})
}
