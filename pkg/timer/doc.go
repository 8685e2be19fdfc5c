// Package timer implements the live countdown engine.
//
// A Registry owns the in-memory state of every active timer. A Handler
// applies client commands against it, enforcing the timer state machine,
// and a Broadcaster advances running countdowns once per tick and pushes
// snapshots to every subscriber.
//
// # State Machine
//
//	stopped  --start-->  rolling
//	finished --start-->  rolling
//	rolling  --pause-->  paused
//	paused   --resume--> rolling
//	any      --stop-->   stopped
//	rolling  --(remaining reaches 0 on a tick)--> finished
//
// set(HHMMSS) changes the duration of a timer that is not rolling.
//
// # Time Arithmetic
//
// Remaining time is never decremented. While rolling it is derived from
// the recorded start time:
//
//	remaining = clamp(duration - (now - startedAt), 0, duration)
//
// Resuming rewrites startedAt to now - (duration - remaining), so the
// countdown continues exactly where it was paused.
//
// # Concurrency
//
// All state lives behind one mutex per Registry. Commands, subscriptions
// and ticks are serialized on it, which gives per-timer ordering: the
// snapshot pushed after a command is always queued before the next tick's
// snapshot. Subscribers must accept snapshots without blocking; socket
// I/O happens outside the lock.
//
// # Lifetime
//
// A timer is created on first reference and evicted only when it has no
// subscribers and is stopped or finished. Rolling and paused timers keep
// running unattended.
package timer
