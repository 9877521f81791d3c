// Package diag is the bootloader's logging surface: structured,
// single-line breadcrumbs written with log/slog, the way the application
// firmware's own logging bridges into slog. There is no network export
// here — the bootloader runs before any radio or transport is brought
// up — only a text handler writing to the console/UART (tinygo builds)
// or stderr (host builds and tests).
package diag

import "log/slog"

var logger = slog.New(newHandler())

// Logger returns the process-wide structured logger.
func Logger() *slog.Logger { return logger }

// Info logs an informational breadcrumb, e.g. "swap: forward complete".
func Info(msg string, args ...any) { logger.Info(msg, args...) }

// Warn logs a recoverable anomaly, e.g. a copy-list found but ignored as
// invalid.
func Warn(msg string, args ...any) { logger.Warn(msg, args...) }

// Error logs an unrecoverable condition immediately before the caller
// traps. Logging is best-effort: a stuck UART must not prevent the trap.
func Error(msg string, args ...any) { logger.Error(msg, args...) }
