package app

import (
	"io"
	"log/slog"
)

// newLogger builds the run logger. It never touches slog.Default, so tests
// can run several apps side by side. Config.Validate has already rejected
// unknown levels; anything unparsable falls back to info.
func newLogger(levelStr, formatStr string, logW io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelStr)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: level == slog.LevelDebug && formatStr == "json"}
	var handler slog.Handler = slog.NewTextHandler(logW, opts)
	if formatStr == "json" {
		handler = slog.NewJSONHandler(logW, opts)
	}
	return slog.New(handler).With("app", "pipegrid")
}
