package utils

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogInterceptor(t *testing.T) {
	var out bytes.Buffer
	li := NewLogInterceptor(&out)
	li.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	n, err := li.Write([]byte("first\r\nsec"))
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, "line=1 time=2026-01-02T03:04:05Z first\n", out.String())

	_, err = li.Write([]byte("ond\n"))
	require.NoError(t, err)

	_, err = li.Write([]byte("tail"))
	require.NoError(t, err)
	require.NoError(t, li.Close())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "line=2 time=2026-01-02T03:04:05Z second", lines[1])
	assert.Equal(t, "line=3 time=2026-01-02T03:04:05Z tail", lines[2])

	// nothing left to flush
	require.NoError(t, li.Close())
	assert.Len(t, strings.Split(strings.TrimSpace(out.String()), "\n"), 3)
}

func TestMultiLogHandler(t *testing.T) {
	var debug, warn bytes.Buffer
	h := NewMultiLogHandler(
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)

	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))

	logger := slog.New(h).With("run", "r1").WithGroup("sync")
	logger.Debug("scanning", "dir", "/a")
	logger.Warn("skipped", "path", "/b")

	assert.Contains(t, debug.String(), "msg=scanning run=r1 sync.dir=/a")
	assert.Contains(t, debug.String(), "msg=skipped")
	assert.NotContains(t, warn.String(), "scanning")
	assert.Contains(t, warn.String(), "msg=skipped run=r1 sync.path=/b")
}
