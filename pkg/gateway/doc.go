// Package gateway binds WebSocket connections to live timers.
//
// Each connection is scoped to one timer id taken from the request path.
// On connect the gateway resolves the timer definition, subscribes the
// connection to the registry (which sends the current snapshot right away)
// and makes sure the broadcast loop is running. Inbound frames are decoded
// as commands and relayed to the command handler. Frames that cannot be
// decoded, and commands that are rejected, are logged and ignored; the
// connection stays open.
//
// Outbound snapshots are queued per connection and written by a dedicated
// goroutine, so a slow client never holds the registry lock.
package gateway
