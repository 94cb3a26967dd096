package log

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHookAppliedBeforeEmit(t *testing.T) {
	logger, err := New(Config{Level: "debug"})
	require.NoError(t, err)

	var captured []Field

	logger.AddHook(HookFunc(func(ctx context.Context, msg string, fields ...Field) []Field {
		captured = fields
		return append(fields, String("injected", "yes"))
	}))

	logger.Info(context.Background(), "hello", String("k", "v"))

	assert.NotNil(t, captured)
}

func TestGlobalDefaultsWhenUnset(t *testing.T) {
	SetGlobal(nil)

	l := Global()
	require.NotNil(t, l)

	// Calling through package-level helpers must not panic.
	Debug(context.Background(), "debug msg")
	Info(context.Background(), "info msg")
	Warn(context.Background(), "warn msg", Any("k", "v"))
	Error(context.Background(), "error msg", Cause(nil))
}
