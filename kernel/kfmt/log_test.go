package kfmt

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	specs := []struct {
		in     string
		exp    slog.Level
		expErr bool
	}{
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"WARN", slog.LevelWarn, false},
		{"ERROR", slog.LevelError, false},
		{"LOUD", slog.LevelInfo, true},
	}

	for _, spec := range specs {
		lvl, err := ParseLevel(spec.in)
		assert.Equal(t, spec.exp, lvl, spec.in)
		if spec.expErr {
			assert.Error(t, err, spec.in)
		} else {
			assert.NoError(t, err, spec.in)
		}
	}
}

func TestLoggerUsesOutputSink(t *testing.T) {
	defer func() {
		SetOutputSink(nil)
		SetLogger(nil)
	}()

	var buf bytes.Buffer
	SetOutputSink(&buf)
	SetLogger(SinkLogger("DEBUG"))

	Logger().Debug("frame pool initialized", "frames", 512)
	require.Contains(t, buf.String(), "frame pool initialized")
	assert.Contains(t, buf.String(), "frames=512")

	SetLogger(nil)
	buf.Reset()
	Logger().Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestNewLoggerWarnsOnUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "LOUD")
	assert.Contains(t, buf.String(), "unknown log level")
}
