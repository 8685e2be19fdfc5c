package timer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habitflow/habitflow-go/pkg/log"
)

func TestGetOrCreateExistingWins(t *testing.T) {
	f := newFixture(t)

	info := f.registry.GetOrCreate("t", "tea", 180)
	assert.Equal(t, Info{
		ID:               "t",
		Name:             "tea",
		Duration:         "000300",
		Remaining:        "000300",
		Status:           StatusStopped,
		DurationSeconds:  180,
		RemainingSeconds: 180,
	}, info)

	again := f.registry.GetOrCreate("t", "coffee", 60)
	assert.Equal(t, "tea", again.Name)
	assert.Equal(t, 180, again.DurationSeconds)
	assert.Equal(t, 1, f.registry.Len())
}

func TestSubscribeUnknownTimer(t *testing.T) {
	f := newFixture(t)
	sub := newSubscriber("a")

	err := f.registry.Subscribe("ghost", sub)
	assert.ErrorIs(t, err, ErrTimerNotFound)
	assert.Empty(t, sub.received())
}

func TestSubscribeSendsInitialSnapshot(t *testing.T) {
	f := newFixture(t)
	f.registry.GetOrCreate("t", "tea", 3)
	sub := newSubscriber("a")

	require.NoError(t, f.registry.Subscribe("t", sub))
	assert.Equal(t, []Snapshot{{Remaining: "000003", Status: StatusStopped}}, sub.received())

	info, _ := f.registry.Info("t")
	assert.Equal(t, 1, info.Subscribers)
}

func TestSubscribeInitialSendFailure(t *testing.T) {
	f := newFixture(t)
	sub := newSubscriber("a")
	sub.setFail(true)

	err := f.registry.SubscribeOrCreate("t", "tea", 3, sub)
	assert.ErrorIs(t, err, ErrSubscriberSend)
	assert.ErrorIs(t, err, errBrokenPipe)
	assert.Zero(t, f.registry.Len(), "failed subscriber must not keep the timer alive")
}

func TestUnsubscribeEvictsIdle(t *testing.T) {
	f := newFixture(t)
	a, b := newSubscriber("a"), newSubscriber("b")
	require.NoError(t, f.registry.SubscribeOrCreate("t", "tea", 3, a))
	require.NoError(t, f.registry.Subscribe("t", b))

	assert.False(t, f.registry.Unsubscribe("t", "a"))
	assert.Equal(t, 1, f.registry.Len())

	assert.True(t, f.registry.Unsubscribe("t", "b"))
	assert.Zero(t, f.registry.Len())

	assert.False(t, f.registry.Unsubscribe("t", "b"))
}

func TestUnattendedTimersKeepRunning(t *testing.T) {
	ctx := context.Background()
	for _, status := range []Status{StatusRolling, StatusPaused} {
		t.Run(status.String(), func(t *testing.T) {
			f := newFixture(t)
			sub := newSubscriber("a")
			require.NoError(t, f.registry.SubscribeOrCreate("t", "tea", 10, sub))
			_, err := f.handler.Start(ctx, "t")
			require.NoError(t, err)
			if status == StatusPaused {
				_, err = f.handler.Pause(ctx, "t")
				require.NoError(t, err)
			}

			assert.False(t, f.registry.Unsubscribe("t", "a"))
			assert.False(t, f.registry.RemoveIfIdle("t"))

			f.advance(2 * time.Second)
			info, err := f.registry.Info("t")
			require.NoError(t, err)
			assert.Equal(t, status, info.Status)
			assert.Zero(t, info.Subscribers)
		})
	}
}

func TestRemoveIfIdle(t *testing.T) {
	f := newFixture(t)
	f.registry.GetOrCreate("t", "tea", 3)

	assert.True(t, f.registry.RemoveIfIdle("t"))
	assert.False(t, f.registry.RemoveIfIdle("t"))
	_, err := f.registry.Info("t")
	assert.ErrorIs(t, err, ErrTimerNotFound)
	_, err = f.registry.Snapshot("t")
	assert.ErrorIs(t, err, ErrTimerNotFound)
}

func TestListActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.registry.SubscribeOrCreate("b", "bread", 600, newSubscriber("s1")))
	require.NoError(t, f.registry.SubscribeOrCreate("a", "apple", 60, newSubscriber("s2")))
	_, err := f.handler.Start(ctx, "a")
	require.NoError(t, err)
	f.advance(15 * time.Second)

	active := f.registry.ListActive()
	require.Len(t, active, 2)
	assert.Equal(t, "a", active[0].ID)
	assert.Equal(t, "000045", active[0].Remaining)
	assert.Equal(t, StatusRolling, active[0].Status)
	assert.Equal(t, "b", active[1].ID)
	assert.Equal(t, "001000", active[1].Remaining)
	assert.Equal(t, 1, active[1].Subscribers)

	all := f.registry.SnapshotAll()
	assert.Len(t, all, 2)
	assert.Equal(t, active[0], all["a"])
}

func TestRegistryEvents(t *testing.T) {
	f := newFixture(t)
	sub := newSubscriber("conn-1")
	require.NoError(t, f.registry.SubscribeOrCreate("t", "tea", 3, sub))
	_, err := f.handler.ExecuteFrom(context.Background(), "t", "conn-1", Request{Command: CmdStart})
	require.NoError(t, err)

	cmds := f.events.byCategory(log.CategoryCommand)
	require.Len(t, cmds, 1)
	assert.Equal(t, "conn-1", cmds[0].ConnectionID)
	assert.Equal(t, "start", cmds[0].Command.Action)
	assert.Empty(t, cmds[0].Command.Result)
	assert.NotNil(t, cmds[0].Command.ProcessingTime)

	snaps := f.events.byCategory(log.CategorySnapshot)
	require.Len(t, snaps, 2)
	assert.Equal(t, log.TriggerSubscribe, snaps[0].Snapshot.Trigger)
	assert.Equal(t, log.TriggerCommand, snaps[1].Snapshot.Trigger)
	assert.Equal(t, "rolling", snaps[1].Snapshot.Status)

	var transitions []string
	for _, e := range f.events.byCategory(log.CategoryState) {
		if e.StateChange.Entity == log.StateEntityTimer {
			transitions = append(transitions, e.StateChange.OldState+">"+e.StateChange.NewState)
		}
	}
	assert.Equal(t, []string{">stopped", "stopped>rolling"}, transitions)
}

func TestRejectedCommandEvent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.registry.SubscribeOrCreate("t", "tea", 3, newSubscriber("a")))

	_, err := f.handler.Pause(context.Background(), "t")
	require.Error(t, err)

	cmds := f.events.byCategory(log.CategoryCommand)
	require.Len(t, cmds, 1)
	assert.Equal(t, "pause", cmds[0].Command.Action)
	assert.Contains(t, cmds[0].Command.Result, "cannot pause a stopped timer")
}
