// Package logging assembles structured slog loggers and formatting helpers used
// across scriptview.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context helpers so a reload cycle's correlation ID and
// trigger appear on every line it emits. The daemon tees console output into a
// JSON log file and stamps each record with the run's session ID. A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
