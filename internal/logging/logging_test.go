package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), "line: %s", line)
		out = append(out, m)
	}
	return out
}

func TestHandler_JSONFields(t *testing.T) {
	assert := assert.New(t)
	var buf bytes.Buffer
	logger := New(Config{Level: "debug", Format: "json", Output: &buf})

	logger.Info("panel refreshed",
		"panel", "weather",
		"latency_ms", int64(42),
		"fresh", true,
		"error", errors.New("boom"),
		"took", 1500*time.Millisecond,
	)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	line := lines[0]
	assert.Equal("info", line["level"])
	assert.Equal("panel refreshed", line["message"])
	assert.Equal("weather", line["panel"])
	assert.EqualValues(42, line["latency_ms"])
	assert.Equal(true, line["fresh"])
	assert.Equal("boom", line["error"])
	assert.Contains(line, zerolog.TimestampFieldName)
}

func TestHandler_LevelFilter(t *testing.T) {
	assert := assert.New(t)
	var buf bytes.Buffer
	logger := New(Config{Level: "warn", Output: &buf})

	assert.False(logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(logger.Enabled(context.Background(), slog.LevelError))

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal("warn", lines[0]["level"])
}

func TestHandler_WithAttrsAndGroup(t *testing.T) {
	assert := assert.New(t)
	var buf bytes.Buffer
	logger := New(Config{Output: &buf}).
		With("component", "scheduler").
		WithGroup("job").
		With("id", "transit")

	logger.Info("tick", "run", 3, slog.Group("source", "status", 200))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	line := lines[0]
	assert.Equal("scheduler", line["component"])
	assert.Equal("transit", line["job.id"])
	assert.EqualValues(3, line["job.run"])
	assert.EqualValues(200, line["job.source.status"])
}

func TestHandler_ConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: "console", Output: &buf})

	logger.Info("hub started", "subscribers", 0)

	out := buf.String()
	assert.Contains(t, out, "hub started")
	assert.Contains(t, out, "subscribers=")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"DEBUG":   zerolog.DebugLevel,
		" warn ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"trace":   zerolog.TraceLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}
