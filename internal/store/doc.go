// Package store persists local gallery state in SQLite.
//
// It holds two things: a small key-value table used for settings such as
// remembered upload credentials, and an append-only history of upload
// outcomes so `gallery history` can show what was sent and what failed.
// Writes retry briefly on SQLITE_BUSY so the CLI and daemon can share the
// database file.
package store
