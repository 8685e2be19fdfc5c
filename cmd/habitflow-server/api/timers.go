package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/habitflow/habitflow-go/pkg/log"
	"github.com/habitflow/habitflow-go/pkg/store"
	"github.com/habitflow/habitflow-go/pkg/timer"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

// TimersAPI handles timer definition and live timer endpoints.
type TimersAPI struct {
	store       store.Store
	registry    *timer.Registry
	handler     *timer.Handler
	broadcaster *timer.Broadcaster
	events      log.Logger
}

// NewTimersAPI creates a timers API handler. The broadcaster is started
// after the first successful command so timers run without subscribers.
func NewTimersAPI(st store.Store, registry *timer.Registry, handler *timer.Handler, broadcaster *timer.Broadcaster) *TimersAPI {
	return &TimersAPI{
		store:       st,
		registry:    registry,
		handler:     handler,
		broadcaster: broadcaster,
		events:      log.NoopLogger{},
	}
}

// SetEventLogger routes rejected REST command bodies to l.
func (a *TimersAPI) SetEventLogger(l log.Logger) {
	a.events = log.OrNoop(l)
}

// HandleTimers handles GET and POST /api/v1/timers.
func (a *TimersAPI) HandleTimers(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		a.handleList(w, req)
	case http.MethodPost:
		a.handleCreate(w, req)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleTimerByID handles GET, PUT and DELETE /api/v1/timers/{id}.
func (a *TimersAPI) HandleTimerByID(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	switch req.Method {
	case http.MethodGet:
		a.handleGet(w, req, id)
	case http.MethodPut:
		a.handleUpdate(w, req, id)
	case http.MethodDelete:
		a.handleDelete(w, req, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleActive handles GET /api/v1/timers/active.
func (a *TimersAPI) HandleActive(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	active := a.registry.ListActive()
	writeJSONResponse(w, http.StatusOK, ActiveListResponse{
		Timers: active,
		Total:  len(active),
	})
}

// HandleCommand handles POST /api/v1/timers/{id}/commands.
func (a *TimersAPI) HandleCommand(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := req.PathValue("id")

	body, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	cmd, err := timer.ParseRequest(body)
	if err != nil {
		a.events.Log(log.Event{
			Timestamp:  a.registry.Clock().Now(),
			TimerID:    id,
			Direction:  log.DirectionIn,
			Layer:      log.LayerAPI,
			Category:   log.CategoryError,
			RemoteAddr: req.RemoteAddr,
			Error: &log.ErrorEventData{
				Layer:   log.LayerAPI,
				Message: err.Error(),
				Context: "decode command",
			},
		})
		writeJSONError(w, http.StatusBadRequest, "Invalid command", err.Error())
		return
	}

	snap, err := a.handler.Execute(req.Context(), id, cmd)
	if err != nil {
		status, message := commandErrorStatus(err)
		writeJSONError(w, status, message, err.Error())
		return
	}

	if a.broadcaster != nil {
		a.broadcaster.Start()
	}
	writeJSONResponse(w, http.StatusOK, snap)
}

func commandErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, timer.ErrTimerNotFound):
		return http.StatusNotFound, "Timer not found"
	case errors.Is(err, timer.ErrInvalidStateTransition):
		return http.StatusConflict, "Invalid state transition"
	case errors.Is(err, timer.ErrMalformedTimeValue):
		return http.StatusBadRequest, "Malformed time value"
	case errors.Is(err, timer.ErrInvalidDuration):
		return http.StatusBadRequest, "Invalid duration"
	case errors.Is(err, timer.ErrUnknownCommand):
		return http.StatusBadRequest, "Invalid command"
	default:
		return http.StatusInternalServerError, "Command failed"
	}
}

// handleList handles GET /api/v1/timers.
func (a *TimersAPI) handleList(w http.ResponseWriter, req *http.Request) {
	defs, err := a.store.List(req.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "Failed to list timers", err.Error())
		return
	}

	writeJSONResponse(w, http.StatusOK, TimerListResponse{
		Timers: defs,
		Total:  len(defs),
	})
}

// handleCreate handles POST /api/v1/timers.
func (a *TimersAPI) handleCreate(w http.ResponseWriter, req *http.Request) {
	in, ok := decodeInput(w, req)
	if !ok {
		return
	}

	def, err := a.store.Create(req.Context(), in)
	if err != nil {
		writeStoreError(w, err, "Failed to create timer")
		return
	}
	writeJSONResponse(w, http.StatusCreated, def)
}

// handleGet handles GET /api/v1/timers/{id}.
func (a *TimersAPI) handleGet(w http.ResponseWriter, req *http.Request, id string) {
	def, err := a.store.Get(req.Context(), id)
	if err != nil {
		writeStoreError(w, err, "Failed to get timer")
		return
	}
	writeJSONResponse(w, http.StatusOK, def)
}

// handleUpdate handles PUT /api/v1/timers/{id}. A live timer keeps its
// in-memory duration until it is evicted.
func (a *TimersAPI) handleUpdate(w http.ResponseWriter, req *http.Request, id string) {
	in, ok := decodeInput(w, req)
	if !ok {
		return
	}

	def, err := a.store.Update(req.Context(), id, in)
	if err != nil {
		writeStoreError(w, err, "Failed to update timer")
		return
	}
	writeJSONResponse(w, http.StatusOK, def)
}

// handleDelete handles DELETE /api/v1/timers/{id}.
func (a *TimersAPI) handleDelete(w http.ResponseWriter, req *http.Request, id string) {
	if err := a.store.Delete(req.Context(), id); err != nil {
		writeStoreError(w, err, "Failed to delete timer")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeInput(w http.ResponseWriter, req *http.Request) (store.DefinitionInput, bool) {
	var in store.DefinitionInput
	if err := json.NewDecoder(io.LimitReader(req.Body, maxBodyBytes)).Decode(&in); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return in, false
	}
	return in, true
}

func writeStoreError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "Timer not found", "")
	case errors.Is(err, store.ErrInvalidDuration):
		writeJSONError(w, http.StatusBadRequest, "Duration must be greater than 0", err.Error())
	case errors.Is(err, store.ErrInvalidName):
		writeJSONError(w, http.StatusBadRequest, "Name is required", err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, message, err.Error())
	}
}

// writeJSONResponse writes a JSON response with the given status code.
func writeJSONResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, message, details string) {
	writeJSONResponse(w, status, ErrorResponse{
		Error:   message,
		Details: details,
	})
}
