package timer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/habitflow/habitflow-go/pkg/log"
	"github.com/habitflow/habitflow-go/pkg/store"
)

// DefinitionStore is the subset of the definition store the handler needs.
type DefinitionStore interface {
	Get(ctx context.Context, id string) (store.Definition, error)
	UpdateDuration(ctx context.Context, id string, seconds int) error
}

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	// Store seeds timers on first reference and receives set durations.
	// Without a store, commands only reach timers already in the registry.
	Store DefinitionStore

	// Logger receives operational logs. Defaults to slog.Default().
	Logger *slog.Logger

	// EventLogger receives command events. Defaults to log.NoopLogger.
	EventLogger log.Logger

	// PersistTimeout bounds the asynchronous duration write after set.
	// Defaults to DefaultPersistTimeout.
	PersistTimeout time.Duration
}

// DefaultPersistTimeout bounds the store write after a successful set.
const DefaultPersistTimeout = 5 * time.Second

// Handler validates client commands and applies them to the registry.
type Handler struct {
	registry *Registry
	store    DefinitionStore

	logger         *slog.Logger
	events         log.Logger
	persistTimeout time.Duration

	persistWg sync.WaitGroup

	// afterLookup runs between the registry lookup and the update. Tests
	// use it to evict the timer in that window.
	afterLookup func(id string)
}

// NewHandler creates a command handler bound to registry.
func NewHandler(registry *Registry, cfg HandlerConfig) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = DefaultPersistTimeout
	}
	return &Handler{
		registry:       registry,
		store:          cfg.Store,
		logger:         cfg.Logger,
		events:         log.OrNoop(cfg.EventLogger),
		persistTimeout: cfg.PersistTimeout,
	}
}

// Start begins the countdown from the full duration.
func (h *Handler) Start(ctx context.Context, id string) (Snapshot, error) {
	return h.Execute(ctx, id, Request{Command: CmdStart})
}

// Pause freezes a rolling timer.
func (h *Handler) Pause(ctx context.Context, id string) (Snapshot, error) {
	return h.Execute(ctx, id, Request{Command: CmdPause})
}

// Resume continues a paused timer where it left off.
func (h *Handler) Resume(ctx context.Context, id string) (Snapshot, error) {
	return h.Execute(ctx, id, Request{Command: CmdResume})
}

// Stop resets the timer to its full duration.
func (h *Handler) Stop(ctx context.Context, id string) (Snapshot, error) {
	return h.Execute(ctx, id, Request{Command: CmdStop})
}

// Set replaces the duration with an HHMMSS value.
func (h *Handler) Set(ctx context.Context, id, hhmmss string) (Snapshot, error) {
	return h.Execute(ctx, id, Request{Command: CmdSet, Value: hhmmss})
}

// Execute applies req to the timer with id and returns the snapshot that
// was pushed to its subscribers.
func (h *Handler) Execute(ctx context.Context, id string, req Request) (Snapshot, error) {
	return h.execute(ctx, id, req, "")
}

// ExecuteFrom is Execute on behalf of a connection, for event correlation.
func (h *Handler) ExecuteFrom(ctx context.Context, id, connID string, req Request) (Snapshot, error) {
	return h.execute(ctx, id, req, connID)
}

func (h *Handler) execute(ctx context.Context, id string, req Request, connID string) (Snapshot, error) {
	begin := time.Now()
	snap, err := h.apply(ctx, id, req)
	elapsed := time.Since(begin)

	ev := &log.CommandEvent{
		Action:         req.Command.String(),
		Value:          req.Value,
		ProcessingTime: &elapsed,
	}
	if err != nil {
		ev.Result = err.Error()
		h.logger.Debug("command rejected", "timer_id", id, "command", req.Command, "error", err)
	}
	h.events.Log(log.Event{
		Timestamp:    h.registry.Clock().Now(),
		ConnectionID: connID,
		TimerID:      id,
		Direction:    log.DirectionIn,
		Layer:        log.LayerEngine,
		Category:     log.CategoryCommand,
		Command:      ev,
	})
	return snap, err
}

func (h *Handler) apply(ctx context.Context, id string, req Request) (Snapshot, error) {
	seconds := 0
	if req.Command == CmdSet {
		s, err := DecodeHHMMSS(req.Value)
		if err != nil {
			return Snapshot{}, err
		}
		seconds = s
	}
	switch req.Command {
	case CmdStart, CmdPause, CmdResume, CmdStop, CmdSet:
	default:
		return Snapshot{}, fmt.Errorf("%w: %d", ErrUnknownCommand, req.Command)
	}

	s, err := h.seed(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}

	apply := func(t *timerState, now time.Time) error {
		return t.apply(req.Command, seconds, now)
	}
	snap, err := h.registry.update(id, s, apply)
	if s == nil && h.store != nil && errors.Is(err, ErrTimerNotFound) {
		// A tick evicted the timer after the lookup. Load it again.
		if s, err = h.load(ctx, id); err != nil {
			return Snapshot{}, err
		}
		snap, err = h.registry.update(id, s, apply)
	}
	if err != nil {
		return Snapshot{}, err
	}

	if req.Command == CmdSet {
		h.persistDuration(id, seconds)
	}
	return snap, nil
}

// seed loads the definition for a timer the registry does not track yet.
// A nil seed means the registry already has it, or there is no store.
func (h *Handler) seed(ctx context.Context, id string) (*seed, error) {
	if h.store == nil {
		return nil, nil
	}
	if _, err := h.registry.Info(id); err == nil {
		if h.afterLookup != nil {
			h.afterLookup(id)
		}
		return nil, nil
	}
	return h.load(ctx, id)
}

// load reads the definition for id from the store.
func (h *Handler) load(ctx context.Context, id string) (*seed, error) {
	def, err := h.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTimerNotFound, id)
		}
		return nil, fmt.Errorf("failed to load timer definition: %w", err)
	}
	return &seed{name: def.Name, seconds: def.Duration}, nil
}

// persistDuration writes a new duration back to the store without
// blocking the command. The in-memory state is never rolled back.
func (h *Handler) persistDuration(id string, seconds int) {
	if h.store == nil {
		return
	}

	h.persistWg.Add(1)
	go func() {
		defer h.persistWg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), h.persistTimeout)
		defer cancel()

		if err := h.store.UpdateDuration(ctx, id, seconds); err != nil {
			h.logger.Warn("failed to persist timer duration", "timer_id", id, "duration", seconds, "error", err)
			h.events.Log(log.Event{
				Timestamp: h.registry.Clock().Now(),
				TimerID:   id,
				Direction: log.DirectionNone,
				Layer:     log.LayerEngine,
				Category:  log.CategoryError,
				Error: &log.ErrorEventData{
					Layer:   log.LayerEngine,
					Message: err.Error(),
					Context: "persist duration",
				},
			})
		}
	}()
}

// Wait blocks until pending duration writes have finished.
func (h *Handler) Wait() {
	h.persistWg.Wait()
}
