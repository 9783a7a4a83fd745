package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "entry=%s", buf.String())
	return entry
}

func TestErrorCarriesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithOrderID(ctx, "order-9")
	ctx = log.WithFields(ctx, map[string]any{"attempt": 2})
	log.Error(ctx, "boom", errors.New("socket closed"))

	entry := decodeLine(t, buf)
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "order-9", entry["order_id"])
	assert.Equal(t, float64(2), entry["attempt"])
	assert.Equal(t, "test", entry["service"])
	assert.Equal(t, "socket closed", entry["error"])
	assert.Equal(t, "error", entry["level"])
	assert.NotEmpty(t, entry["stack"])
}

func TestFieldsDoNotLeakIntoParentContext(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})

	parent := log.WithField(context.Background(), "scope", "parent")
	_ = log.WithField(parent, "child_only", true)
	log.Info(parent, "hello")

	entry := decodeLine(t, buf)
	assert.Equal(t, "parent", entry["scope"])
	assert.NotContains(t, entry, "child_only")
}

func TestWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{ServiceName: "test", Output: buf}).Warn(context.Background(), "quiet")
	assert.NotContains(t, decodeLine(t, buf), "stack")

	buf.Reset()
	New(Options{ServiceName: "test", Output: buf, WarnStack: true}).Warn(context.Background(), "loud")
	assert.Contains(t, decodeLine(t, buf), "stack")
}

func TestLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: zerolog.WarnLevel, Output: buf})
	log.Info(context.Background(), "hidden")
	log.Debug(context.Background(), "hidden")
	assert.Zero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("invalid"))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warn"))
}
