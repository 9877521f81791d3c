//go:build tinygo

package diag

import (
	"log/slog"
	"machine"
)

func newHandler() slog.Handler {
	return slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{Level: slog.LevelInfo})
}
