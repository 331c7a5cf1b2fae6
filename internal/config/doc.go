// Package config loads, normalizes, and validates scriptview configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the SCRIPTVIEW_FEED_PATH
// environment override. The Config type centralizes every knob the daemon and
// CLI need, so the feed location, state directory and reader defaults are
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
