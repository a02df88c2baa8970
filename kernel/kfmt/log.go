package kfmt

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// sinkWriter forwards writes to whatever output sink is active at the time
// of the write.
type sinkWriter struct{}

func (sinkWriter) Write(p []byte) (int, error) {
	return GetOutputSink().Write(p)
}

var (
	defaultLogger = NewLogger(sinkWriter{}, "INFO")
	activeLogger  = defaultLogger
)

// Logger returns the structured logger used by kernel components.
func Logger() *slog.Logger { return activeLogger }

// SetLogger replaces the structured logger. Passing nil restores the default
// logger which writes to the active output sink at INFO level.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = defaultLogger
	}
	activeLogger = l
}

// NewLogger returns a text logger that writes to w, filtering records below
// level. Unknown levels fall back to INFO.
func NewLogger(w io.Writer, level string) *slog.Logger {
	lvl, err := ParseLevel(level)
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	if err != nil {
		logger.Warn(err.Error())
	}
	return logger
}

// SinkLogger returns a text logger that writes to the active output sink.
func SinkLogger(level string) *slog.Logger {
	return NewLogger(sinkWriter{}, level)
}

// ParseLevel converts a level name (DEBUG, INFO, WARN, ERROR) to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "WARN":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q; using INFO", level)
	}
}
