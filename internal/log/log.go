// Package log is a thin structured-logging wrapper around zap, with
// context-aware hooks so callers never have to remember to attach
// trace/request ids by hand.
package log

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a re-export of zap.Field so callers never import zap directly.
type Field = zap.Field

func String(key, val string) Field { return zap.String(key, val) }
func Int(key string, val int) Field { return zap.Int(key, val) }
func Any(key string, val any) Field { return zap.Any(key, val) }
func Cause(err error) Field         { return zap.Error(err) }

// Hook inspects a log call's context and contributes extra fields.
type Hook interface {
	Apply(ctx context.Context, msg string, fields ...Field) []Field
}

// HookFunc adapts a function to the Hook interface.
type HookFunc func(ctx context.Context, msg string, fields ...Field) []Field

func (f HookFunc) Apply(ctx context.Context, msg string, fields ...Field) []Field {
	return f(ctx, msg, fields...)
}

// Config controls the global logger.
type Config struct {
	Level string `conf:"level" yaml:"level" json:"level"`
	// JSON selects JSON encoding; otherwise a human-readable console encoder is used.
	JSON bool `conf:"json" yaml:"json" json:"json"`
}

// Logger wraps a zap.Logger and runs registered hooks before every call.
type Logger struct {
	mu    sync.RWMutex
	base  *zap.Logger
	hooks []Hook
}

// New builds a Logger from Config.
func New(cfg Config) (*Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, err
		}
	}

	zapCfg := zap.NewProductionConfig()
	if !cfg.JSON {
		zapCfg = zap.NewDevelopmentConfig()
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	base, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{base: base}, nil
}

// AddHook registers a hook that contributes fields to every subsequent call.
func (l *Logger) AddHook(h Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.hooks = append(l.hooks, h)
}

func (l *Logger) applyHooks(ctx context.Context, msg string, fields []Field) []Field {
	l.mu.RLock()
	hooks := l.hooks
	l.mu.RUnlock()

	for _, h := range hooks {
		fields = h.Apply(ctx, msg, fields...)
	}

	return fields
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.base.Debug(msg, l.applyHooks(ctx, msg, fields)...)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...Field) {
	l.base.Info(msg, l.applyHooks(ctx, msg, fields)...)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.base.Warn(msg, l.applyHooks(ctx, msg, fields)...)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...Field) {
	l.base.Error(msg, l.applyHooks(ctx, msg, fields)...)
}

func (l *Logger) Sync() error {
	return l.base.Sync()
}

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

// SetGlobal installs the process-wide logger used by the package-level helpers.
func SetGlobal(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()

	globalLogger = l
}

// Global returns the process-wide logger, building a default one if none was set.
func Global() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()

	if l != nil {
		return l
	}

	l, _ = New(Config{Level: "info"})
	SetGlobal(l)

	return l
}

func Debug(ctx context.Context, msg string, fields ...Field) { Global().Debug(ctx, msg, fields...) }
func Info(ctx context.Context, msg string, fields ...Field)  { Global().Info(ctx, msg, fields...) }
func Warn(ctx context.Context, msg string, fields ...Field)  { Global().Warn(ctx, msg, fields...) }
func Error(ctx context.Context, msg string, fields ...Field) { Global().Error(ctx, msg, fields...) }
