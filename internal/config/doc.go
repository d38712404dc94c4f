// Package config loads, normalizes, and validates screener configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for the
// worker endpoints (SCREENER_PARSE_URL, SCREENER_MATCH_URL,
// SCREENER_SCHEDULE_URL). The Config type centralizes every knob the daemon
// and CLI need so the orchestrator, the worker clients, and the HTTP surface
// are wired from one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized URLs, canonical log formats, and clear validation errors.
package config
