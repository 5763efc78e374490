// Package obs holds the structured logger shared by the service.
package obs

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the process-wide structured logger. It defaults to a text handler
// on stderr so packages can log before InitLogger runs.
var Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// InitLogger replaces Logger with a handler writing to w in the given format
// ("json" or "text") at the given level.
func InitLogger(w io.Writer, format, level string) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var h slog.Handler
	if strings.EqualFold(format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	Logger = slog.New(h)
	slog.SetDefault(Logger)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
