// Package backend talks to the search backend over HTTP.
//
// Client exposes one typed method per backend contract (gallery pages, text
// search, similar images, random queries, autocomplete, ingest, description
// generation) and a raw Forward call the proxy uses to relay requests
// verbatim. Non-2xx responses become *HTTPError values carrying the backend
// status and its `detail` or `error` message, wrapped with a services marker
// so callers can classify them.
//
// The same client works against galleryd's /api routes, which accept the
// same payloads.
package backend
