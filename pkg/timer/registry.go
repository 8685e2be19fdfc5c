package timer

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/habitflow/habitflow-go/pkg/clock"
	"github.com/habitflow/habitflow-go/pkg/log"
)

// RegistryConfig configures a Registry. Zero values select defaults.
type RegistryConfig struct {
	// Clock is the time source. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives operational logs. Defaults to slog.Default().
	Logger *slog.Logger

	// EventLogger receives protocol events. Defaults to log.NoopLogger.
	EventLogger log.Logger
}

// Registry is the single authoritative map from timer id to live state.
type Registry struct {
	mu     sync.Mutex
	timers map[string]*timerState

	clock  clock.Clock
	logger *slog.Logger
	events log.Logger
}

// TickResult summarizes one broadcast tick.
type TickResult struct {
	Rolling  int // timers that were rolling when the tick began
	Finished int // timers that reached zero during the tick
	Pushed   int // snapshots accepted by subscribers
	Failed   int // subscribers dropped after a failed send
	Evicted  int // idle timers removed
}

// seed carries the definition used to create a timer on first reference.
type seed struct {
	name    string
	seconds int
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Registry{
		timers: make(map[string]*timerState),
		clock:  cfg.Clock,
		logger: cfg.Logger,
		events: log.OrNoop(cfg.EventLogger),
	}
}

// Clock returns the registry's time source.
func (r *Registry) Clock() clock.Clock {
	return r.clock
}

// GetOrCreate returns the timer with id, creating it stopped with the
// given name and duration if absent. An existing timer keeps its own name
// and duration.
func (r *Registry) GetOrCreate(id, name string, seconds int) Info {
	var buf []log.Event

	r.mu.Lock()
	now := r.clock.Now()
	t := r.getOrCreateLocked(id, seed{name: name, seconds: seconds}, now, &buf)
	info := t.info(now)
	r.mu.Unlock()

	r.flush(buf)
	return info
}

// Subscribe adds sub to an existing timer and sends it one snapshot
// immediately. It fails with ErrTimerNotFound if the timer is not tracked.
func (r *Registry) Subscribe(id string, sub Subscriber) error {
	return r.subscribe(id, nil, sub)
}

// SubscribeOrCreate is GetOrCreate and Subscribe under one lock, so a tick
// cannot evict the freshly created timer in between.
func (r *Registry) SubscribeOrCreate(id, name string, seconds int, sub Subscriber) error {
	return r.subscribe(id, &seed{name: name, seconds: seconds}, sub)
}

func (r *Registry) subscribe(id string, s *seed, sub Subscriber) error {
	var buf []log.Event

	r.mu.Lock()
	now := r.clock.Now()

	t := r.timers[id]
	if t == nil {
		if s == nil {
			r.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrTimerNotFound, id)
		}
		t = r.getOrCreateLocked(id, *s, now, &buf)
	}

	t.subscribers[sub.ID()] = sub
	buf = append(buf, connectionEvent(now, t.id, sub.ID(), "", "subscribed", ""))

	snap := t.snapshot(now)
	sendErr := sub.Send(snap)
	if sendErr != nil {
		delete(t.subscribers, sub.ID())
		buf = append(buf, sendErrorEvent(now, t.id, sub.ID(), sendErr, "initial snapshot"))
		r.removeIfIdleLocked(t, "initial send failed", now, &buf)
	} else {
		buf = append(buf, snapshotEvent(now, t.id, sub.ID(), snap, log.TriggerSubscribe))
	}
	r.mu.Unlock()

	r.flush(buf)
	if sendErr != nil {
		return fmt.Errorf("%w: %w", ErrSubscriberSend, sendErr)
	}
	return nil
}

// Unsubscribe removes a subscriber and evicts the timer if it became idle.
// It reports whether the timer was evicted.
func (r *Registry) Unsubscribe(id, subscriberID string) bool {
	var buf []log.Event

	r.mu.Lock()
	now := r.clock.Now()
	t := r.timers[id]
	if t == nil {
		r.mu.Unlock()
		return false
	}
	if _, ok := t.subscribers[subscriberID]; ok {
		delete(t.subscribers, subscriberID)
		buf = append(buf, connectionEvent(now, id, subscriberID, "subscribed", "unsubscribed", ""))
	}
	evicted := r.removeIfIdleLocked(t, "last subscriber left", now, &buf)
	r.mu.Unlock()

	r.flush(buf)
	return evicted
}

// RemoveIfIdle deletes the timer iff it has no subscribers and is stopped
// or finished.
func (r *Registry) RemoveIfIdle(id string) bool {
	var buf []log.Event

	r.mu.Lock()
	evicted := false
	if t := r.timers[id]; t != nil {
		evicted = r.removeIfIdleLocked(t, "idle", r.clock.Now(), &buf)
	}
	r.mu.Unlock()

	r.flush(buf)
	return evicted
}

// Info returns the introspection view of one timer.
func (r *Registry) Info(id string) (Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.timers[id]
	if t == nil {
		return Info{}, fmt.Errorf("%w: %s", ErrTimerNotFound, id)
	}
	return t.info(r.clock.Now()), nil
}

// Snapshot returns the current wire snapshot of one timer.
func (r *Registry) Snapshot(id string) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.timers[id]
	if t == nil {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrTimerNotFound, id)
	}
	return t.snapshot(r.clock.Now()), nil
}

// SnapshotAll returns the introspection view of every tracked timer,
// keyed by id. The map is a copy.
func (r *Registry) SnapshotAll() map[string]Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	out := make(map[string]Info, len(r.timers))
	for id, t := range r.timers {
		out[id] = t.info(now)
	}
	return out
}

// ListActive returns every tracked timer ordered by id.
func (r *Registry) ListActive() []Info {
	all := r.SnapshotAll()
	out := make([]Info, 0, len(all))
	for _, info := range all {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of tracked timers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// update applies fn to one timer and, on success, pushes the resulting
// snapshot to all of its subscribers before releasing the lock. When s is
// non-nil a missing timer is created from it first.
func (r *Registry) update(id string, s *seed, fn func(t *timerState, now time.Time) error) (Snapshot, error) {
	var buf []log.Event

	r.mu.Lock()
	now := r.clock.Now()

	t := r.timers[id]
	if t == nil {
		if s == nil {
			r.mu.Unlock()
			return Snapshot{}, fmt.Errorf("%w: %s", ErrTimerNotFound, id)
		}
		t = r.getOrCreateLocked(id, *s, now, &buf)
	}

	old := t.status
	if err := fn(t, now); err != nil {
		r.removeIfIdleLocked(t, "idle after rejected command", now, &buf)
		r.mu.Unlock()
		r.flush(buf)
		return Snapshot{}, err
	}
	if t.status != old {
		buf = append(buf, timerStateEvent(now, id, old, t.status, "command"))
	}

	snap := t.snapshot(now)
	failed := r.pushLocked(t, snap, log.TriggerCommand, now, &buf)
	r.dropLocked(t, failed, now, &buf)
	r.removeIfIdleLocked(t, "idle after command", now, &buf)
	r.mu.Unlock()

	r.flush(buf)
	return snap, nil
}

// tick advances every rolling timer, pushes its snapshot, then drops
// failed subscribers and evicts idle timers, all in one critical section.
func (r *Registry) tick() TickResult {
	buf, result := r.tickLocked()
	r.flush(buf)
	return result
}

func (r *Registry) tickLocked() ([]log.Event, TickResult) {
	var (
		buf    []log.Event
		result TickResult
	)

	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()

	failedBy := make(map[*timerState][]string)
	for id, t := range r.timers {
		if t.status != StatusRolling {
			continue
		}
		result.Rolling++

		if t.advance(now) {
			result.Finished++
			buf = append(buf, timerStateEvent(now, id, StatusRolling, StatusFinished, "countdown elapsed"))
		}

		snap := t.snapshot(now)
		failed := r.pushLocked(t, snap, log.TriggerTick, now, &buf)
		result.Pushed += len(t.subscribers) - len(failed)
		if len(failed) > 0 {
			failedBy[t] = failed
		}
	}

	for t, failed := range failedBy {
		result.Failed += len(failed)
		r.dropLocked(t, failed, now, &buf)
	}

	for _, t := range r.timers {
		if r.removeIfIdleLocked(t, "idle after tick", now, &buf) {
			result.Evicted++
		}
	}
	return buf, result
}

func (r *Registry) getOrCreateLocked(id string, s seed, now time.Time, buf *[]log.Event) *timerState {
	if t := r.timers[id]; t != nil {
		return t
	}
	t := newTimerState(id, s.name, s.seconds)
	r.timers[id] = t
	*buf = append(*buf, timerStateEvent(now, id, 0, StatusStopped, "registered"))
	r.logger.Debug("timer registered", "timer_id", id, "name", s.name, "duration", s.seconds)
	return t
}

// pushLocked offers snap to every subscriber and returns the ids of those
// that refused it. Delivery continues past failures.
func (r *Registry) pushLocked(t *timerState, snap Snapshot, trigger log.SnapshotTrigger, now time.Time, buf *[]log.Event) []string {
	var failed []string
	for subID, sub := range t.subscribers {
		if err := sub.Send(snap); err != nil {
			failed = append(failed, subID)
			*buf = append(*buf, sendErrorEvent(now, t.id, subID, err, trigger.String()))
			continue
		}
		*buf = append(*buf, snapshotEvent(now, t.id, subID, snap, trigger))
	}
	return failed
}

func (r *Registry) dropLocked(t *timerState, subIDs []string, now time.Time, buf *[]log.Event) {
	for _, subID := range subIDs {
		delete(t.subscribers, subID)
		*buf = append(*buf, connectionEvent(now, t.id, subID, "subscribed", "dropped", "send failed"))
		r.logger.Warn("dropping subscriber after failed send", "timer_id", t.id, "subscriber", subID)
	}
}

func (r *Registry) removeIfIdleLocked(t *timerState, reason string, now time.Time, buf *[]log.Event) bool {
	if !t.idle() {
		return false
	}
	delete(r.timers, t.id)
	*buf = append(*buf, log.Event{
		Timestamp: now,
		TimerID:   t.id,
		Direction: log.DirectionNone,
		Layer:     log.LayerEngine,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityTimer,
			OldState: t.status.String(),
			NewState: "evicted",
			Reason:   reason,
		},
	})
	r.logger.Debug("timer evicted", "timer_id", t.id, "status", t.status, "reason", reason)
	return true
}

func (r *Registry) flush(buf []log.Event) {
	for _, e := range buf {
		r.events.Log(e)
	}
}

func timerStateEvent(now time.Time, id string, from, to Status, reason string) log.Event {
	sc := &log.StateChangeEvent{
		Entity:   log.StateEntityTimer,
		NewState: to.String(),
		Reason:   reason,
	}
	if reason != "registered" {
		sc.OldState = from.String()
	}
	return log.Event{
		Timestamp:   now,
		TimerID:     id,
		Direction:   log.DirectionNone,
		Layer:       log.LayerEngine,
		Category:    log.CategoryState,
		StateChange: sc,
	}
}

func connectionEvent(now time.Time, timerID, subID, from, to, reason string) log.Event {
	return log.Event{
		Timestamp:    now,
		TimerID:      timerID,
		ConnectionID: subID,
		Direction:    log.DirectionNone,
		Layer:        log.LayerEngine,
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: from,
			NewState: to,
			Reason:   reason,
		},
	}
}

func snapshotEvent(now time.Time, timerID, subID string, snap Snapshot, trigger log.SnapshotTrigger) log.Event {
	return log.Event{
		Timestamp:    now,
		TimerID:      timerID,
		ConnectionID: subID,
		Direction:    log.DirectionOut,
		Layer:        log.LayerEngine,
		Category:     log.CategorySnapshot,
		Snapshot: &log.SnapshotEvent{
			Remaining: snap.Remaining,
			Status:    snap.Status.String(),
			Trigger:   trigger,
		},
	}
}

func sendErrorEvent(now time.Time, timerID, subID string, err error, context string) log.Event {
	return log.Event{
		Timestamp:    now,
		TimerID:      timerID,
		ConnectionID: subID,
		Direction:    log.DirectionOut,
		Layer:        log.LayerEngine,
		Category:     log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerEngine,
			Message: err.Error(),
			Context: context,
		},
	}
}
