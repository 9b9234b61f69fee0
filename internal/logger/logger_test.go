package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}

func TestNew(t *testing.T) {
	l, err := New("llm-recommender", "debug")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestComponentAddsField(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	Component(zap.New(core), "Ingest").Info("batch done")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Ingest", logs.All()[0].ContextMap()["component"])
}

func TestComponentNilLogger(t *testing.T) {
	assert.NotPanics(t, func() { Component(nil, "x").Info("dropped") })
}
