package timer

import "time"

// apply runs one state machine transition. A failed transition leaves the
// state untouched. seconds is only used by CmdSet.
func (t *timerState) apply(cmd Command, seconds int, now time.Time) error {
	switch cmd {
	case CmdStart:
		if t.status != StatusStopped && t.status != StatusFinished {
			return &TransitionError{Command: cmd, Status: t.status}
		}
		if t.duration <= 0 {
			return ErrInvalidDuration
		}
		t.remaining = t.duration
		t.startedAt = now
		t.status = StatusRolling

	case CmdPause:
		if t.status != StatusRolling {
			return &TransitionError{Command: cmd, Status: t.status}
		}
		t.remaining = clampDuration(t.duration-t.elapsed(now), t.duration)
		t.pausedAt = now
		t.startedAt = time.Time{}
		t.status = StatusPaused

	case CmdResume:
		if t.status != StatusPaused {
			return &TransitionError{Command: cmd, Status: t.status}
		}
		t.startedAt = now.Add(-(t.duration - t.remaining))
		t.status = StatusRolling

	case CmdStop:
		t.remaining = t.duration
		t.startedAt = time.Time{}
		t.status = StatusStopped

	case CmdSet:
		if t.status == StatusRolling {
			return &TransitionError{Command: cmd, Status: t.status}
		}
		if seconds < 0 {
			return ErrInvalidDuration
		}
		d := time.Duration(seconds) * time.Second
		t.duration = d
		t.remaining = d

	default:
		return ErrUnknownCommand
	}
	return nil
}
