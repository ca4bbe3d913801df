package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// level backs the default logger so it can change at runtime.
var level slog.LevelVar

// Setup initialises the global slog default logger writing to stdout.
// level may be "debug", "info", "warn", or "error" (default "info").
// format may be "json" or "text" (default "json").
func Setup(lvl, format string) {
	level.Set(ParseLevel(lvl))
	slog.SetDefault(slog.New(newHandler(os.Stdout, &level, format)))
}

// SetLevel changes the level of the logger installed by Setup.
func SetLevel(lvl string) {
	level.Set(ParseLevel(lvl))
}

// New builds a logger writing to w. The CLI uses it to keep stdout free for
// GeoJSON output.
func New(w io.Writer, level, format string) *slog.Logger {
	return slog.New(newHandler(w, ParseLevel(level), format))
}

func newHandler(w io.Writer, level slog.Leveler, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(format) == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
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
