// Package journal keeps a local SQLite history of finished recording sessions.
//
// The recordings log lives on the removable drive and disappears with it; the
// journal survives drive swaps so operators can see what was captured where.
// Entries are append-only. Schema changes bump schemaVersion in schema.go and
// require deleting journal.db.
package journal
