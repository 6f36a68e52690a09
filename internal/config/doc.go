// Package config loads, normalizes, and validates gallery configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// BACKEND_URL and REDIS_ADDR. The Config type centralizes every knob the proxy
// daemon and the upload CLI need, so backend location, upload pacing, and cache
// settings are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
