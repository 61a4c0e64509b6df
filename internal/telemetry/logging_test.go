package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{" debug ", slog.LevelDebug},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestNewLogger_JSONWithIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogOptions{Level: "INFO", Output: &buf})

	WithExecutorID(WithJobID(logger, "job-1"), "exec-1").Info("dispatched")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "dispatched", entry["msg"])
	assert.Equal(t, "job-1", entry["job_id"])
	assert.Equal(t, "exec-1", entry["executor_id"])
}

func TestNewLogger_LevelVarChangesAtRuntime(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := NewLogger(LogOptions{Level: "WARN", Format: "text", Output: &buf, LevelVar: levelVar})

	assert.Equal(t, slog.LevelWarn, levelVar.Level())
	logger.Info("hidden")
	assert.Empty(t, buf.String())

	levelVar.Set(slog.LevelDebug)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
	logger.Info("visible")
	assert.Contains(t, buf.String(), "visible")
}
