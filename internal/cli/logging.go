package cli

import (
	"io"
	"log/slog"

	"github.com/ubuntu/mail-reports-collector/internal/constants"
)

// LogLevel returns the level matching the number of -v flags given on the command line.
// Without any, only warnings and errors are logged.
func LogLevel(verbosity int) slog.Level {
	switch {
	case verbosity <= 0:
		return constants.DefaultLogLevel
	case verbosity == 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// SetupLogger replaces the default logger with one writing to w at the level selected by verbosity.
// Logs are written as JSON objects when jsonLogs is set, as logfmt otherwise.
func SetupLogger(w io.Writer, verbosity int, jsonLogs bool) {
	opts := &slog.HandlerOptions{Level: LogLevel(verbosity)}

	var h slog.Handler = slog.NewTextHandler(w, opts)
	if jsonLogs {
		h = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
}
