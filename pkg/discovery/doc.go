// Package discovery implements mDNS/DNS-SD discovery for habitflow servers.
//
// A server advertises one instance of _habitflow._tcp in the local domain.
// The instance name is user-friendly and the port is the HTTP listener.
//
// TXT records:
//   - v:    server version (required)
//   - api:  REST path prefix, default /api/v1
//   - ws:   push channel path prefix, default /timer/ws
//   - name: human-readable server name (optional)
//
// Browsing aggregates the answers received on several interfaces into a
// single Service per instance.
package discovery
