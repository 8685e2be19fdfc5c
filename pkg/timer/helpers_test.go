package timer

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/habitflow/habitflow-go/pkg/clock"
	"github.com/habitflow/habitflow-go/pkg/log"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

var errBrokenPipe = errors.New("broken pipe")

// recordingSubscriber keeps every snapshot it is sent.
type recordingSubscriber struct {
	id string

	mu    sync.Mutex
	snaps []Snapshot
	fail  bool
}

func newSubscriber(id string) *recordingSubscriber {
	return &recordingSubscriber{id: id}
}

func (s *recordingSubscriber) ID() string { return s.id }

func (s *recordingSubscriber) Send(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errBrokenPipe
	}
	s.snaps = append(s.snaps, snap)
	return nil
}

func (s *recordingSubscriber) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *recordingSubscriber) received() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Snapshot, len(s.snaps))
	copy(out, s.snaps)
	return out
}

func (s *recordingSubscriber) last() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.snaps) == 0 {
		return Snapshot{}
	}
	return s.snaps[len(s.snaps)-1]
}

// captureLogger collects protocol events.
type captureLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (c *captureLogger) Log(e log.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureLogger) byCategory(cat log.Category) []log.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []log.Event
	for _, e := range c.events {
		if e.Category == cat {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	clock    *clock.Fake
	events   *captureLogger
	registry *Registry
	handler  *Handler
	bc       *Broadcaster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clk := clock.NewFake(epoch)
	events := &captureLogger{}
	reg := NewRegistry(RegistryConfig{Clock: clk, EventLogger: events})
	return &fixture{
		clock:    clk,
		events:   events,
		registry: reg,
		handler:  NewHandler(reg, HandlerConfig{EventLogger: events}),
		bc:       NewBroadcaster(reg, BroadcasterConfig{}),
	}
}

// advance moves the clock and runs one tick.
func (f *fixture) advance(d time.Duration) TickResult {
	f.clock.Advance(d)
	return f.bc.Tick()
}
