package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	l := newLogger()

	formatter, ok := l.Formatter.(*logrus.TextFormatter)
	require.True(t, ok)
	assert.Equal(t, time.RFC3339Nano, formatter.TimestampFormat)
	assert.True(t, formatter.FullTimestamp)
}

func TestGetLogger(t *testing.T) {
	t.Run("falls back to global", func(t *testing.T) {
		entry := G(context.Background())
		assert.Equal(t, L.Logger, entry.Logger)
	})

	t.Run("returns context logger", func(t *testing.T) {
		custom := logrus.NewEntry(logrus.New()).WithField("component", "test")
		ctx := WithLogger(context.Background(), custom)

		entry := G(ctx)
		assert.Equal(t, "test", entry.Data["component"])
	})

	t.Run("with field accumulates", func(t *testing.T) {
		ctx := WithField(context.Background(), "a", 1)
		ctx = WithField(ctx, "b", 2)

		entry := G(ctx)
		assert.Equal(t, 1, entry.Data["a"])
		assert.Equal(t, 2, entry.Data["b"])
	})
}

func TestConfigure(t *testing.T) {
	origLevel := L.Logger.GetLevel()
	origFormatter := L.Logger.Formatter
	origOut := L.Logger.Out
	t.Cleanup(func() {
		L.Logger.SetLevel(origLevel)
		L.Logger.Formatter = origFormatter
		L.Logger.SetOutput(origOut)
	})

	var buf bytes.Buffer
	require.NoError(t, Configure(Config{Level: "debug", Format: "json", Output: &buf}))
	assert.Equal(t, logrus.DebugLevel, L.Logger.GetLevel())

	G(context.Background()).WithField("slug", "invoice-sorter").Debug("packed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "packed", line["message"])
	assert.Equal(t, "debug", line["logLevel"])
	assert.Equal(t, "invoice-sorter", line["slug"])
	assert.Contains(t, line, "timestamp")
}

func TestConfigureRejectsBadInput(t *testing.T) {
	assert.Error(t, Configure(Config{Level: "loud"}))
	assert.Error(t, Configure(Config{Format: "xml"}))
}
