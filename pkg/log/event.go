package log

import "time"

// Event is a single timer protocol event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the subscriber connection (UUID), if any.
	ConnectionID string `cbor:"2,keyasint,omitempty"`

	// TimerID identifies the timer the event concerns.
	TimerID string `cbor:"3,keyasint,omitempty"`

	// Direction indicates message flow relative to the server.
	Direction Direction `cbor:"4,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"5,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"6,keyasint"`

	// RemoteAddr is the peer address, when known.
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Command     *CommandEvent     `cbor:"10,keyasint,omitempty"`
	Snapshot    *SnapshotEvent    `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn is client to server.
	DirectionIn Direction = 0
	// DirectionOut is server to client.
	DirectionOut Direction = 1
	// DirectionNone marks internal events such as tick-driven state changes.
	DirectionNone Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionNone:
		return "-"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which component captured the event.
type Layer uint8

const (
	// LayerGateway is the subscription gateway (connections, decoding).
	LayerGateway Layer = 0
	// LayerEngine is the registry, command handler and broadcast loop.
	LayerEngine Layer = 1
	// LayerAPI is the REST request/response layer.
	LayerAPI Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerGateway:
		return "GATEWAY"
	case LayerEngine:
		return "ENGINE"
	case LayerAPI:
		return "API"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryCommand is a client command (start, pause, set, ...).
	CategoryCommand Category = 0
	// CategorySnapshot is a state snapshot pushed to a subscriber.
	CategorySnapshot Category = 1
	// CategoryState is a timer or connection state change.
	CategoryState Category = 2
	// CategoryError is a contained error.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryCommand:
		return "COMMAND"
	case CategorySnapshot:
		return "SNAPSHOT"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// CommandEvent captures an inbound command and its outcome.
type CommandEvent struct {
	// Action is the command name ("start", "pause", "resume", "stop", "set").
	Action string `cbor:"1,keyasint"`

	// Value is the HHMMSS argument of a set command.
	Value string `cbor:"2,keyasint,omitempty"`

	// Result is empty on success, otherwise the error text.
	Result string `cbor:"3,keyasint,omitempty"`

	// ProcessingTime from receipt to applied (nanoseconds).
	ProcessingTime *time.Duration `cbor:"4,keyasint,omitempty"`
}

// SnapshotEvent captures one pushed snapshot.
type SnapshotEvent struct {
	// Remaining is the HHMMSS countdown value sent.
	Remaining string `cbor:"1,keyasint"`

	// Status is the timer status sent.
	Status string `cbor:"2,keyasint"`

	// Trigger says what caused the push.
	Trigger SnapshotTrigger `cbor:"3,keyasint"`
}

// SnapshotTrigger says why a snapshot was pushed.
type SnapshotTrigger uint8

const (
	// TriggerTick is the periodic broadcast.
	TriggerTick SnapshotTrigger = 0
	// TriggerCommand is the out-of-band push after a command.
	TriggerCommand SnapshotTrigger = 1
	// TriggerSubscribe is the initial push to a new subscriber.
	TriggerSubscribe SnapshotTrigger = 2
)

// String returns the trigger name.
func (t SnapshotTrigger) String() string {
	switch t {
	case TriggerTick:
		return "TICK"
	case TriggerCommand:
		return "COMMAND"
	case TriggerSubscribe:
		return "SUBSCRIBE"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures timer and connection lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityTimer is a timer status transition or eviction.
	StateEntityTimer StateEntity = 0
	// StateEntityConnection is a subscriber connecting or leaving.
	StateEntityConnection StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityTimer:
		return "TIMER"
	case StateEntityConnection:
		return "CONNECTION"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures an error that was contained rather than propagated.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error text.
	Message string `cbor:"2,keyasint"`

	// Context describes what was being attempted.
	Context string `cbor:"3,keyasint,omitempty"`
}
