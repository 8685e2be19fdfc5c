// Package client talks to a habitflow server.
//
// Conn is a live push connection to one timer: it delivers every snapshot
// the server sends and carries commands back. API wraps the REST surface
// for timer definitions and the active-timer view.
package client
