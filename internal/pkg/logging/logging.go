package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup installs the process-wide slog logger writing to stdout.
// level is any name slog understands ("debug", "info", "warn", "error",
// optionally with an offset such as "info+2"); unknown names mean info.
// format is "json" (default) or "text". At debug level records carry their
// source location.
func Setup(level, format string) {
	slog.SetDefault(slog.New(NewHandler(os.Stdout, level, format)))
}

// NewHandler builds the handler Setup installs.
func NewHandler(w io.Writer, level, format string) slog.Handler {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl, AddSource: lvl <= slog.LevelDebug}

	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}
