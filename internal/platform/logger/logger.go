package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger: structured JSON on stdout. Handlers and
// services receive it by injection so tests can swap in a discard logger.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}
