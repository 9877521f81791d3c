//go:build !tinygo

package diag

import (
	"log/slog"
	"os"
)

func newHandler() slog.Handler {
	return slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
}
