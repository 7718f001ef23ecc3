package climate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/saaga0h/jeeves-comfort/internal/comfort"
	"github.com/saaga0h/jeeves-comfort/internal/ventilation"
)

const defaultHistoryLimit = 20

// HistoryReader lists closed ventilation sessions of a room, newest first
type HistoryReader interface {
	Recent(ctx context.Context, roomID string, limit int) ([]ventilation.ClosedSession, error)
}

// API serves the comfort agent over HTTP
type API struct {
	agent   *Agent
	history HistoryReader
	metrics *Metrics
	logger  *slog.Logger
}

// NewAPI creates the HTTP API. history and metrics may be nil.
func NewAPI(agent *Agent, history HistoryReader, metrics *Metrics, logger *slog.Logger) *API {
	return &API{
		agent:   agent,
		history: history,
		metrics: metrics,
		logger:  logger,
	}
}

// Handler returns the routed API
func (api *API) Handler() http.Handler {
	mux := http.NewServeMux()

	route := func(pattern, name string, h http.HandlerFunc) {
		mux.Handle(pattern, api.metrics.WrapHandler(name, h))
	}

	route("GET /api/rooms", "rooms", api.handleRooms)
	route("GET /api/rooms/{id}", "room", api.handleRoom)
	route("GET /api/rooms/{id}/history", "room_history", api.handleHistory)
	route("POST /api/rooms/{id}/target", "room_target", api.handleTarget)
	route("POST /api/rooms/{id}/mode", "room_mode", api.handleMode)
	route("GET /api/status", "status", api.handleStatus)
	route("GET /api/limits", "limits", api.handleLimits)
	route("PUT /api/limits/{category}", "limits_update", api.handleLimitsUpdate)

	if api.metrics != nil {
		mux.Handle("GET /metrics", api.metrics.Handler())
	}

	return mux
}

type errorResponse struct {
	Error string `json:"error"`
}

func (api *API) handleRooms(w http.ResponseWriter, r *http.Request) {
	api.writeJSON(w, http.StatusOK, api.agent.Rooms())
}

func (api *API) handleRoom(w http.ResponseWriter, r *http.Request) {
	view, ok := api.agent.Room(r.PathValue("id"))
	if !ok {
		api.writeError(w, http.StatusNotFound, ErrUnknownRoom)
		return
	}
	api.writeJSON(w, http.StatusOK, view)
}

func (api *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	if api.history == nil {
		api.writeError(w, http.StatusNotFound, errors.New("session history is disabled"))
		return
	}

	roomID := r.PathValue("id")
	if _, ok := api.agent.Room(roomID); !ok {
		api.writeError(w, http.StatusNotFound, ErrUnknownRoom)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			api.writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}

	sessions, err := api.history.Recent(r.Context(), roomID, limit)
	if err != nil {
		api.logger.Error("Failed to read session history", "room", roomID, "error", err)
		api.writeError(w, http.StatusInternalServerError, errors.New("failed to read session history"))
		return
	}
	api.writeJSON(w, http.StatusOK, sessions)
}

func (api *API) handleTarget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Temperature *float64 `json:"temperature"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Temperature == nil {
		api.writeError(w, http.StatusBadRequest, errors.New(`body must be {"temperature": <number>}`))
		return
	}

	if err := api.agent.SetTargetTemperature(r.PathValue("id"), *req.Temperature); err != nil {
		api.writeError(w, commandStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (api *API) handleMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.writeError(w, http.StatusBadRequest, errors.New(`body must be {"mode": "heat"|"off"}`))
		return
	}

	if err := api.agent.SetMode(r.PathValue("id"), req.Mode); err != nil {
		api.writeError(w, commandStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (api *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	api.writeJSON(w, http.StatusOK, api.agent.Status())
}

func (api *API) handleLimits(w http.ResponseWriter, r *http.Request) {
	api.writeJSON(w, http.StatusOK, api.agent.Limits())
}

func (api *API) handleLimitsUpdate(w http.ResponseWriter, r *http.Request) {
	var profile comfort.LimitProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		api.writeError(w, http.StatusBadRequest, errors.New("invalid limits body"))
		return
	}

	category := comfort.Category(r.PathValue("category"))
	if err := api.agent.UpdateLimits(r.Context(), category, profile); err != nil {
		switch {
		case errors.Is(err, ErrUnknownCategory):
			api.writeError(w, http.StatusNotFound, err)
		case errors.Is(err, ErrNotPersisted):
			api.logger.Warn("Comfort limits not persisted", "category", category, "error", err)
			api.writeJSON(w, http.StatusOK, api.agent.Limits()[category])
		default:
			api.writeError(w, http.StatusBadRequest, err)
		}
		return
	}
	api.writeJSON(w, http.StatusOK, api.agent.Limits()[category])
}

func commandStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnknownRoom):
		return http.StatusNotFound
	case errors.Is(err, ErrNoClimateEntity):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func (api *API) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		api.logger.Error("Failed to encode response", "error", err)
	}
}

func (api *API) writeError(w http.ResponseWriter, status int, err error) {
	api.writeJSON(w, status, errorResponse{Error: err.Error()})
}
