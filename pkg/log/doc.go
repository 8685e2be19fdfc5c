// Package log captures timer protocol events for offline inspection.
//
// This is separate from operational logging (slog). Every inbound command,
// outbound snapshot, timer state change and containment error can be
// written to a Logger, producing a machine-readable trace of what each
// subscriber saw and when.
//
// # Basic Usage
//
//	// Console, during development
//	events := log.NewSlogAdapter(slog.Default())
//
//	// Binary trace file
//	events, _ := log.NewFileLogger("/var/log/habitflow/server.tlog")
//
//	// Both
//	events := log.NewMultiLogger(console, file)
//
// # File Format
//
// Trace files are a stream of CBOR-encoded events with integer keys
// (.tlog extension). The habitflow-log command views and summarizes them.
package log
