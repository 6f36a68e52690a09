// Package logging assembles structured slog loggers and formatting helpers used
// by the gallery daemon and CLI.
//
// It owns the console and JSON handlers, the optional rotating log file, and
// context-aware helpers that tag log lines with upload item IDs, batch numbers,
// and request correlation IDs. A no-op logger is provided for tests and wiring
// code that cannot fail.
package logging
