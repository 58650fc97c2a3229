package testutil

import (
	"log/slog"
)

// DiscardLogger returns a slog.Logger that discards all output.
// Use this in tests to reduce noise; it is the same type the internal/log
// package aliases, so it plugs into any constructor taking a logger.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
