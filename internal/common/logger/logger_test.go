package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerWritesActionAndFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	lg := FromZap("terminal", zap.New(core))

	lg.Info("order_saved", map[string]any{"order_id": "o-1"})
	lg.Error("commit_failed", errors.New("boom"), nil)

	entries := logs.All()
	require.Len(t, entries, 2)

	first := entries[0].ContextMap()
	assert.Equal(t, "order_saved", entries[0].Message)
	assert.Equal(t, "order_saved", first["action"])
	assert.Equal(t, "o-1", first["order_id"])
	assert.Equal(t, "terminal", first["service"])

	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestNopAndNilAreSafe(t *testing.T) {
	NewNop().Info("x", nil)
	var lg *Logger
	lg.Info("x", nil)
	lg.Sync()
}

func TestNamedKeepsServiceAndAddsComponent(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	lg := FromZap("terminal-service", zap.New(core)).Named("orders")

	lg.Info("order_paid", nil)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "terminal-service", fields["service"])
	assert.Equal(t, "orders", fields["component"])

	var nilLogger *Logger
	assert.Nil(t, nilLogger.Named("x"))
}
