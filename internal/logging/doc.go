// Package logging assembles structured slog loggers and formatting helpers used
// across retake.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline and session code can
// tag log lines with timeline IDs, phases, and correlation IDs. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup to ensure new
// components emit data with the same shape and routing guarantees as the rest
// of the system.
package logging
