package timer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountdownScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := newSubscriber("a")

	f.registry.GetOrCreate("t", "tea", 3)
	require.NoError(t, f.registry.Subscribe("t", a))

	_, err := f.handler.Start(ctx, "t")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		f.clock.Set(f.clock.Now().Add(time.Second))
		f.bc.Tick()
	}

	assert.Equal(t, []Snapshot{
		{Remaining: "000003", Status: StatusStopped},
		{Remaining: "000003", Status: StatusRolling},
		{Remaining: "000002", Status: StatusRolling},
		{Remaining: "000001", Status: StatusRolling},
		{Remaining: "000000", Status: StatusFinished},
	}, a.received())

	// The finished push is delivered once.
	f.clock.Set(f.clock.Now().Add(time.Second))
	res := f.bc.Tick()
	assert.Zero(t, res.Rolling)
	assert.Len(t, a.received(), 5)
}

func TestPauseReachesAllSubscribers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := newSubscriber("a"), newSubscriber("b")
	require.NoError(t, f.registry.SubscribeOrCreate("t", "tea", 60, a))
	require.NoError(t, f.registry.Subscribe("t", b))

	_, err := f.handler.Start(ctx, "t")
	require.NoError(t, err)
	f.advance(5 * time.Second)

	_, err = f.handler.ExecuteFrom(ctx, "t", "a", Request{Command: CmdPause})
	require.NoError(t, err)

	want := Snapshot{Remaining: "000055", Status: StatusPaused}
	assert.Equal(t, want, a.last())
	assert.Equal(t, want, b.last())
}

func TestTickIsolatesFailingSubscriber(t *testing.T) {
	f := newFixture(t)
	a, b, c := newSubscriber("a"), newSubscriber("b"), newSubscriber("c")
	require.NoError(t, f.registry.SubscribeOrCreate("t", "tea", 10, a))
	require.NoError(t, f.registry.Subscribe("t", b))
	require.NoError(t, f.registry.Subscribe("t", c))
	_, err := f.handler.Start(context.Background(), "t")
	require.NoError(t, err)

	b.setFail(true)
	res := f.advance(time.Second)
	assert.Equal(t, TickResult{Rolling: 1, Pushed: 2, Failed: 1}, res)
	assert.Equal(t, "000009", a.last().Remaining)
	assert.Equal(t, "000009", c.last().Remaining)

	info, _ := f.registry.Info("t")
	assert.Equal(t, 2, info.Subscribers)

	// b is gone for good, even once it recovers.
	b.setFail(false)
	before := len(b.received())
	f.advance(time.Second)
	assert.Len(t, b.received(), before)
}

func TestCommandPushFailureDropsSubscriber(t *testing.T) {
	f := newFixture(t)
	a, b := newSubscriber("a"), newSubscriber("b")
	require.NoError(t, f.registry.SubscribeOrCreate("t", "tea", 10, a))
	require.NoError(t, f.registry.Subscribe("t", b))

	b.setFail(true)
	_, err := f.handler.Start(context.Background(), "t")
	require.NoError(t, err)

	info, _ := f.registry.Info("t")
	assert.Equal(t, 1, info.Subscribers)
	assert.Equal(t, StatusRolling, a.last().Status)
}

func TestTickEvictsFinishedWithoutSubscribers(t *testing.T) {
	f := newFixture(t)
	a := newSubscriber("a")
	require.NoError(t, f.registry.SubscribeOrCreate("t", "tea", 2, a))
	_, err := f.handler.Start(context.Background(), "t")
	require.NoError(t, err)
	f.registry.Unsubscribe("t", "a")

	res := f.advance(time.Second)
	assert.Equal(t, TickResult{Rolling: 1}, res)
	assert.Equal(t, 1, f.registry.Len())

	res = f.advance(time.Second)
	assert.Equal(t, TickResult{Rolling: 1, Finished: 1, Evicted: 1}, res)
	assert.Zero(t, f.registry.Len())
}

func TestTickEvictsAfterLastSubscriberFails(t *testing.T) {
	f := newFixture(t)
	a := newSubscriber("a")
	require.NoError(t, f.registry.SubscribeOrCreate("t", "tea", 1, a))
	_, err := f.handler.Start(context.Background(), "t")
	require.NoError(t, err)

	a.setFail(true)
	res := f.advance(time.Second)
	assert.Equal(t, TickResult{Rolling: 1, Finished: 1, Failed: 1, Evicted: 1}, res)
	assert.Zero(t, f.registry.Len())
}

func TestTimersAreIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := newSubscriber("a"), newSubscriber("b")
	require.NoError(t, f.registry.SubscribeOrCreate("short", "short", 2, a))
	require.NoError(t, f.registry.SubscribeOrCreate("long", "long", 5, b))
	_, err := f.handler.Start(ctx, "short")
	require.NoError(t, err)
	f.advance(time.Second)
	_, err = f.handler.Start(ctx, "long")
	require.NoError(t, err)

	f.advance(time.Second)
	assert.Equal(t, Snapshot{Remaining: "000000", Status: StatusFinished}, a.last())
	assert.Equal(t, Snapshot{Remaining: "000004", Status: StatusRolling}, b.last())
}

func TestBroadcasterStartIdempotent(t *testing.T) {
	f := newFixture(t)

	assert.False(t, f.bc.Running())
	f.bc.Start()
	f.bc.Start()
	assert.True(t, f.bc.Running())
	assert.Equal(t, 1, f.clock.TickerCount())

	f.bc.Stop()
	assert.False(t, f.bc.Running())
	assert.Zero(t, f.clock.TickerCount())

	f.bc.Stop()
	f.bc.Start()
	assert.Equal(t, 1, f.clock.TickerCount())
	f.bc.Stop()
}

func TestBroadcasterLoopTicks(t *testing.T) {
	f := newFixture(t)
	ticks := make(chan TickResult, 8)
	bc := NewBroadcaster(f.registry, BroadcasterConfig{
		Interval: time.Second,
		OnTick:   func(r TickResult) { ticks <- r },
	})
	a := newSubscriber("a")
	require.NoError(t, f.registry.SubscribeOrCreate("t", "tea", 3, a))
	_, err := f.handler.Start(context.Background(), "t")
	require.NoError(t, err)

	bc.Start()
	defer bc.Stop()

	for want := 2; want >= 1; want-- {
		f.clock.Advance(time.Second)
		select {
		case res := <-ticks:
			assert.Equal(t, 1, res.Rolling)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for tick")
		}
		assert.Equal(t, EncodeHHMMSS(want), a.last().Remaining)
	}
}

// panicSubscriber blows up on send while armed.
type panicSubscriber struct {
	armed    atomic.Bool
	panicked atomic.Bool
}

func (p *panicSubscriber) ID() string { return "panic" }

func (p *panicSubscriber) Send(Snapshot) error {
	if p.armed.Load() {
		p.panicked.Store(true)
		panic("subscriber exploded")
	}
	return nil
}

func TestBroadcasterSurvivesPanic(t *testing.T) {
	f := newFixture(t)
	ticks := make(chan TickResult, 8)
	bc := NewBroadcaster(f.registry, BroadcasterConfig{
		OnTick: func(r TickResult) { ticks <- r },
	})
	bad := &panicSubscriber{}
	require.NoError(t, f.registry.SubscribeOrCreate("t", "tea", 10, bad))
	_, err := f.handler.Start(context.Background(), "t")
	require.NoError(t, err)

	bc.Start()
	defer bc.Stop()

	bad.armed.Store(true)
	f.clock.Advance(time.Second)

	// The registry lock is released even though the tick blew up.
	require.Eventually(t, bad.panicked.Load, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		_, err := f.registry.Snapshot("t")
		return err == nil
	}, time.Second, 5*time.Millisecond)
	assert.True(t, bc.Running())

	bad.armed.Store(false)
	f.clock.Advance(time.Second)
	select {
	case res := <-ticks:
		assert.Equal(t, 1, res.Rolling)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not tick after a panic")
	}
}
