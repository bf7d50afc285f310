package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cornman92/Better11-sub004/internal/domain/app"
	"github.com/Cornman92/Better11-sub004/internal/logger"
)

func TestPublisherFanOutAndUnsubscribe(t *testing.T) {
	first := &Recorder{}
	second := &Recorder{}
	pub := NewPublisher(first)
	sub := pub.Subscribe(second)

	ctx := context.Background()
	pub.Report(ctx, app.Progress{AppID: "git", Stage: app.StageInitializing})
	sub.Unsubscribe()
	pub.Report(ctx, app.Progress{AppID: "git", Stage: app.StageCompleted, Percent: 100})

	assert.Len(t, first.Records(), 2)
	require.Len(t, second.Records(), 1)
	assert.Equal(t, app.StageInitializing, second.Records()[0].Stage)
}

func TestPublisherNilSinkIgnored(t *testing.T) {
	pub := NewPublisher()
	sub := pub.Subscribe(nil)
	assert.NotPanics(t, func() {
		sub.Unsubscribe()
		pub.Report(context.Background(), app.Progress{AppID: "x"})
	})
}

func TestLoggingSinkLevels(t *testing.T) {
	buf := &bytes.Buffer{}
	log, err := logger.New(logger.Options{Level: "info", Writer: buf})
	require.NoError(t, err)
	sink := NewLoggingSink(log)

	ctx := context.Background()
	sink.Report(ctx, app.Progress{AppID: "git", Stage: app.StageDownloading, Percent: 30, Message: "downloading"})
	sink.Report(ctx, app.Progress{AppID: "git", Stage: app.StageFailed, Percent: 70, Message: "failed", Error: "hash mismatch"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "info", first["level"])
	assert.Equal(t, "downloading", first["stage"])
	assert.Equal(t, "error", second["level"])
	assert.Equal(t, "hash mismatch", second["error"])
	assert.Equal(t, "progress", second["component"])
}

func TestTerminalSinkNonInteractiveWritesStageChanges(t *testing.T) {
	buf := &bytes.Buffer{}
	sink := NewTerminalSink(buf, 20, false)
	ctx := context.Background()

	sink.Report(ctx, app.Progress{AppID: "git", Stage: app.StageDownloading, Percent: 30})
	sink.Report(ctx, app.Progress{AppID: "git", Stage: app.StageDownloading, Percent: 50, BytesDownloaded: 512, BytesTotal: 1024})
	sink.Report(ctx, app.Progress{AppID: "git", Stage: app.StageCompleted, Percent: 100})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "git")
	assert.Contains(t, lines[0], "downloading")
	assert.Contains(t, lines[1], "completed")
}

func TestTerminalSinkInteractiveOverwritesLine(t *testing.T) {
	buf := &bytes.Buffer{}
	sink := NewTerminalSink(buf, 20, true)
	ctx := context.Background()

	sink.Report(ctx, app.Progress{AppID: "git", Stage: app.StageDownloading, Percent: 40, BytesDownloaded: 2048, BytesTotal: 4096})
	sink.Report(ctx, app.Progress{AppID: "git", Stage: app.StageFailed, Percent: 70, Error: "boom"})

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "\r"))
	assert.Contains(t, out, "2.0 KiB/4.0 KiB")
	assert.True(t, strings.HasSuffix(out, "\n"))
	assert.Contains(t, out, "boom")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KiB", formatBytes(1536))
	assert.Equal(t, "3.0 MiB", formatBytes(3*1024*1024))
}
