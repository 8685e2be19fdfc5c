package timer

import "fmt"

// Status is the state machine position of a timer.
type Status uint8

const (
	// StatusStopped is the initial state; remaining equals duration.
	StatusStopped Status = iota

	// StatusRolling is counting down.
	StatusRolling

	// StatusPaused is frozen mid-countdown.
	StatusPaused

	// StatusFinished reached zero on a tick.
	StatusFinished
)

// String returns the wire name of the status.
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusRolling:
		return "rolling"
	case StatusPaused:
		return "paused"
	case StatusFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Idle reports whether a timer in this status may be evicted once it has
// no subscribers.
func (s Status) Idle() bool {
	return s == StatusStopped || s == StatusFinished
}

// MarshalText encodes the status as its wire name.
func (s Status) MarshalText() ([]byte, error) {
	if s > StatusFinished {
		return nil, fmt.Errorf("timer: invalid status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a wire status name.
func (s *Status) UnmarshalText(text []byte) error {
	st, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// ParseStatus parses a wire status name.
func ParseStatus(name string) (Status, error) {
	switch name {
	case "stopped":
		return StatusStopped, nil
	case "rolling":
		return StatusRolling, nil
	case "paused":
		return StatusPaused, nil
	case "finished":
		return StatusFinished, nil
	default:
		return 0, fmt.Errorf("timer: unknown status %q", name)
	}
}

// Command is a client operation on a timer.
type Command uint8

const (
	CmdStart Command = iota + 1
	CmdPause
	CmdResume
	CmdStop
	CmdSet
)

// String returns the wire name of the command.
func (c Command) String() string {
	switch c {
	case CmdStart:
		return "start"
	case CmdPause:
		return "pause"
	case CmdResume:
		return "resume"
	case CmdStop:
		return "stop"
	case CmdSet:
		return "set"
	default:
		return "unknown"
	}
}

// ParseCommand maps an "action" value to a command. set is not an action;
// it travels in its own field.
func ParseCommand(action string) (Command, error) {
	switch action {
	case "start":
		return CmdStart, nil
	case "pause":
		return CmdPause, nil
	case "resume":
		return CmdResume, nil
	case "stop":
		return CmdStop, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, action)
	}
}
