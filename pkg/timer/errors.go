package timer

import (
	"errors"
	"fmt"
)

// Timer engine errors.
var (
	ErrTimerNotFound          = errors.New("timer not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrMalformedTimeValue     = errors.New("malformed time value")
	ErrInvalidDuration        = errors.New("invalid duration")
	ErrSubscriberSend         = errors.New("subscriber send failed")
	ErrMalformedRequest       = errors.New("malformed request")
	ErrUnknownCommand         = errors.New("unknown command")
)

// TransitionError reports a command that is illegal in the timer's status.
// It matches ErrInvalidStateTransition with errors.Is.
type TransitionError struct {
	Command Command
	Status  Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: cannot %s a %s timer", e.Command, e.Status)
}

// Is reports whether target is ErrInvalidStateTransition.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}
