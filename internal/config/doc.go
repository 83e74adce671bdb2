// Package config loads, normalizes, and validates retake configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files from ~/.config/retake/config.toml or a
// project-local retake.toml. The Config type centralizes the editor's knobs:
// working directories, the default selection window, reassembly watchdog
// budgets, capture devices, and log output.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
