// Package daemon coordinates the long-running galleryd process.
//
// It binds the proxy handler to the configured address inside a single
// lifecycle with flock-based locking to prevent multiple instances, and shuts
// the HTTP server down gracefully when the context ends or Stop is called.
//
// Request handling lives in the proxy package; the daemon only owns startup,
// shutdown, and status.
package daemon
