package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Cornman92/Better11-sub004/internal/ports"
)

type logEntry map[string]any

func TestLoggerInfoWithFields(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log, err := New(Options{Level: "info", Writer: buf, Component: "orchestrator"})
	require.NoError(t, err)

	derived := log.With("app_id", "git", "phase", "download")
	derived.Info(context.Background(), "starting download", "bytes", 42)

	var entry logEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "starting download", entry["message"])
	require.Equal(t, "git", entry["app_id"])
	require.Equal(t, "download", entry["phase"])
	require.Equal(t, "orchestrator", entry["component"])
	require.Equal(t, float64(42), entry["bytes"])
	require.Equal(t, "info", entry["level"])
}

func TestLoggerDebugRespectsLevel(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log, err := New(Options{Level: "info", Writer: buf})
	require.NoError(t, err)

	log.Debug(context.Background(), "this should not appear")
	require.Equal(t, "", strings.TrimSpace(buf.String()))
}

func TestLoggerErrorIncludesContext(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log, err := New(Options{Level: "debug", Writer: buf})
	require.NoError(t, err)

	ctx := ports.WithCorrelationID(context.Background(), "corr-1")
	log.With("app_id", "vscode").Error(ctx, "install failed", "error", errors.New("boom"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry logEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "install failed", entry["message"])
	require.Equal(t, "vscode", entry["app_id"])
	require.Equal(t, "boom", entry["error"])
	require.Equal(t, "corr-1", entry["correlation_id"])
}

func TestLoggerCallFieldsOverridePersistent(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log, err := New(Options{Writer: buf})
	require.NoError(t, err)

	log.With("app_id", "old").Warn(context.Background(), "retrying", "app_id", "new")

	var entry logEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "new", entry["app_id"])
	require.Equal(t, "warn", entry["level"])
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Level: "loud"})
	require.Error(t, err)
}

func TestNoOpLogger(t *testing.T) {
	t.Parallel()

	log := NewNoOp()
	require.NotPanics(t, func() {
		log.With("k", "v").Info(context.Background(), "discarded")
	})
}
