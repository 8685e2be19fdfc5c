package timer

// Snapshot is the point-in-time state pushed to subscribers.
// It is the server-to-client wire message.
type Snapshot struct {
	Remaining string `json:"timer_state"`
	Status    Status `json:"timer_status"`
}

// Subscriber receives snapshots for one timer.
type Subscriber interface {
	// ID uniquely identifies the subscriber within a timer.
	ID() string

	// Send hands a snapshot to the subscriber. It is called with the
	// registry lock held and must not block on I/O; implementations queue
	// the value and return an error if they cannot accept it.
	Send(Snapshot) error
}

// Info is the introspection view of a tracked timer.
type Info struct {
	ID               string `json:"timer_id"`
	Name             string `json:"name"`
	Duration         string `json:"duration"`
	Remaining        string `json:"timer_state"`
	Status           Status `json:"timer_status"`
	Subscribers      int    `json:"subscribers"`
	DurationSeconds  int    `json:"duration_seconds"`
	RemainingSeconds int    `json:"remaining_seconds"`
}
