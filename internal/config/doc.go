// Package config loads, normalizes, and validates modelforge configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// worker daemon and CLI need: queue lease timing, sandbox module resolution,
// the external generator command, and logging.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
