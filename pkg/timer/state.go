package timer

import "time"

// timerState is the live countdown of one timer. Only the Registry holds
// references to it, and only under the registry lock.
type timerState struct {
	id   string
	name string

	duration  time.Duration
	remaining time.Duration
	status    Status

	startedAt time.Time
	// pausedAt is kept across resume for diagnostics.
	pausedAt time.Time

	subscribers map[string]Subscriber
}

func newTimerState(id, name string, seconds int) *timerState {
	if seconds < 0 {
		seconds = 0
	}
	d := time.Duration(seconds) * time.Second
	return &timerState{
		id:          id,
		name:        name,
		duration:    d,
		remaining:   d,
		status:      StatusStopped,
		subscribers: make(map[string]Subscriber),
	}
}

func (t *timerState) elapsed(now time.Time) time.Duration {
	if t.startedAt.IsZero() {
		return 0
	}
	return now.Sub(t.startedAt)
}

// remainingAt derives the countdown while rolling and returns the frozen
// value otherwise.
func (t *timerState) remainingAt(now time.Time) time.Duration {
	if t.status != StatusRolling {
		return t.remaining
	}
	return clampDuration(t.duration-t.elapsed(now), t.duration)
}

// advance recomputes a rolling timer and reports whether it just finished.
func (t *timerState) advance(now time.Time) bool {
	if t.status != StatusRolling {
		return false
	}
	t.remaining = t.remainingAt(now)
	if t.remaining <= 0 {
		t.remaining = 0
		t.status = StatusFinished
		t.startedAt = time.Time{}
		return true
	}
	return false
}

func (t *timerState) snapshot(now time.Time) Snapshot {
	return Snapshot{
		Remaining: EncodeHHMMSS(wholeSeconds(t.remainingAt(now))),
		Status:    t.status,
	}
}

func (t *timerState) info(now time.Time) Info {
	rem := wholeSeconds(t.remainingAt(now))
	dur := wholeSeconds(t.duration)
	return Info{
		ID:               t.id,
		Name:             t.name,
		Duration:         EncodeHHMMSS(dur),
		Remaining:        EncodeHHMMSS(rem),
		Status:           t.status,
		Subscribers:      len(t.subscribers),
		DurationSeconds:  dur,
		RemainingSeconds: rem,
	}
}

func (t *timerState) idle() bool {
	return len(t.subscribers) == 0 && t.status.Idle()
}

func clampDuration(d, max time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > max {
		return max
	}
	return d
}

// wholeSeconds truncates toward zero.
func wholeSeconds(d time.Duration) int {
	return int(d / time.Second)
}
