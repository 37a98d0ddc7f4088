package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleHasNoColorOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(Console(&buf, slog.LevelInfo))

	logger.Debug("hidden")
	logger.Info("acl created", "identity", "Document[42]")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "acl created")
	assert.Contains(t, out, "identity=Document[42]")
	assert.NotContains(t, out, "\x1b[")
}

func TestFileAppendsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "aclstore.log")

	for i := 0; i < 2; i++ {
		handler, closer, err := File(path, slog.LevelDebug)
		require.NoError(t, err)
		slog.New(handler).Debug("cache miss", "run", i)
		require.NoError(t, closer.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	for i, line := range lines {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		assert.Equal(t, "cache miss", rec["msg"])
		assert.EqualValues(t, i, rec["run"])
	}
}

func TestFileRejectsEmptyPath(t *testing.T) {
	_, _, err := File("", slog.LevelInfo)
	assert.Error(t, err)
}

func TestFanoutRespectsEachLevel(t *testing.T) {
	var info, debug bytes.Buffer
	logger := slog.New(Fanout(
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)).With("component", "repository").WithGroup("acl")

	logger.Debug("read rows", "keys", 3)
	logger.Info("acl deleted", "identity", "Document[1]")

	assert.NotContains(t, info.String(), "read rows")
	assert.Contains(t, info.String(), "component=repository")
	assert.Contains(t, info.String(), "acl.identity=Document[1]")
	assert.Contains(t, debug.String(), "acl.keys=3")
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("disk full") }

func TestFanoutJoinsErrors(t *testing.T) {
	var buf bytes.Buffer
	h := Fanout(
		failingHandler{slog.NewTextHandler(&buf, nil)},
		slog.NewTextHandler(&buf, nil),
	)

	err := h.Handle(context.Background(), slog.NewRecord(time.Time{}, slog.LevelInfo, "x", 0))
	assert.ErrorContains(t, err, "disk full")
	assert.Contains(t, buf.String(), "msg=x")
	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
}
