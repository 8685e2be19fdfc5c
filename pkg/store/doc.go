// Package store persists timer definitions: the static id, name and
// duration a live timer is initialized from.
//
// Two implementations are provided. SQLiteStore is used by the server;
// MemoryStore is used by tests and by embedders that do not need
// persistence. Neither stores live countdown state.
package store
