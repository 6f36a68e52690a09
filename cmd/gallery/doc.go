// Package main hosts the gallery CLI entrypoint and command graph.
//
// The Cobra command tree drives the batch upload pipeline (intake, metadata
// extraction, paced submission) against the configured ingest endpoint and
// exposes browse, search and similar-image queries for quick inspection from a
// terminal. Credentials and upload history live in the local SQLite store.
//
// Keep this package thin: behaviour belongs in the internal packages and is
// surfaced here through flags and rendering.
package main
