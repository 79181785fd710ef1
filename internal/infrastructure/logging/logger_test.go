package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerWritesCategoriesAndExtras(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := NewZapFromCore(core)

	logger.Warn(WebSocket, Dispatch, "malformed payload", map[ExtraKey]any{
		ConnectionID: "c1",
		Event:        "new message",
	})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "malformed payload", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "WebSocket", fields["Category"])
	assert.Equal(t, "Dispatch", fields["SubCategory"])
	assert.Equal(t, "c1", fields[string(ConnectionID)])
	assert.Equal(t, "new message", fields[string(Event)])
}

func TestZapLoggerNilExtras(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := NewZapFromCore(core)

	logger.Info(General, Startup, "starting", nil)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "General", logs.All()[0].ContextMap()["Category"])
}

func TestZeroLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := &zeroLogger{cfg: &LoggerConfig{Logger: "zerolog", Level: "info", AppName: "parley"}, out: &buf}
	l.Init()

	l.Debug(WebSocket, Delivery, "dropped", nil)
	assert.Zero(t, buf.Len())

	l.Info(WebSocket, Connection, "connected", map[ExtraKey]any{UserID: "u1"})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "connected", line["message"])
	assert.Equal(t, "WebSocket", line["Category"])
	assert.Equal(t, "Connection", line["SubCategory"])
	assert.Equal(t, "u1", line[string(UserID)])
	assert.Equal(t, "parley", line[string(AppName)])
}

func TestNewLoggerRejectsUnknownBackend(t *testing.T) {
	assert.Panics(t, func() {
		NewLogger(&LoggerConfig{Logger: "logrus"})
	})
}
