package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsUnknownSettings(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	require.Error(t, err)

	_, err = New(Config{Level: "debug", Format: "xml"})
	require.Error(t, err)

	l, err := New(Config{Level: "debug", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestLogErrReturnsErrorAndRecordsIt(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := L()
	Set(zap.New(core, zap.AddCaller()))
	t.Cleanup(func() { Set(prev) })

	assert.NoError(t, LogErr(nil))

	cause := errors.New("boom")
	assert.Same(t, cause, LogErr(cause))

	err := LogError("load %s: %w", "code", cause)
	assert.ErrorIs(t, err, cause)

	Warn("slow query %d", 3)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "boom", entries[0].Message)
	assert.Equal(t, "load code: boom", entries[1].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Contains(t, entries[0].Caller.File, "logger_test.go")
}
