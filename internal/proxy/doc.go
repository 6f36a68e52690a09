// Package proxy serves the gallery's public HTTP surface and relays each call
// to the search backend.
//
// Browse-style endpoints (gallery, search, random query, autocomplete)
// degrade to an empty but well-formed success response when the backend
// fails, so clients show "no results" instead of an error. Ingest, similar
// images, and description generation pass the backend's status and message
// through, because the caller must know the request did not succeed.
package proxy
