// Package config loads, normalizes, and validates simloop configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes the worker
// frame rate, canvas size, capture defaults and output directories so the CLI
// and the app runtime discover them in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
