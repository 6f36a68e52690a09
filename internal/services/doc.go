// Package services defines shared utilities consumed by the upload pipeline,
// the backend client, and the proxy handlers.
//
// Key responsibilities:
//   - Context helpers that stamp upload item IDs, batch numbers, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (validation vs unauthorized vs transient) with errors.Is.
package services
