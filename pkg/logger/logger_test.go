package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/columnforge/pkg/errors"
)

func setGlobal(t *testing.T, l *zap.Logger) {
	mu.Lock()
	prev := globalLogger
	globalLogger = l
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		globalLogger = prev
		mu.Unlock()
	})
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := newLogger(Config{Level: "loud"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestNewDefaults(t *testing.T) {
	l, err := newLogger(Config{})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestWithContext(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	setGlobal(t, zap.New(core))

	ctx := ContextWith(context.Background(), RunIDKey, "run-1")
	ctx = ContextWith(ctx, InputKey, "events.ndjson")
	WithContext(ctx).Info("batch written")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "run-1", fields["run_id"])
	assert.Equal(t, "events.ndjson", fields["input"])
	assert.NotContains(t, fields, "batch")
}

func TestGetFallsBackToDefault(t *testing.T) {
	setGlobal(t, nil)
	l := Get()
	require.NotNil(t, l)
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.Same(t, l, Get())
}

func TestInitReplacesGlobal(t *testing.T) {
	setGlobal(t, nil)
	require.NoError(t, Init(Config{Level: "debug", Encoding: "console"}))
	assert.True(t, Get().Core().Enabled(zapcore.DebugLevel))
	assert.Error(t, Init(Config{Level: "loud"}))
}
