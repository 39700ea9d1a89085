// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     logging
// Description: Structured logger with key-value API on top of zap
// Author:      Mike Stoffels with Claude
// Created:     2025-12-06
// License:     MIT
// ============================================================================

package logging

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents log severity
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger is a named logger taking alternating key-value pairs.
// It follows the process-wide configuration set by Configure, including
// reconfiguration after the logger was created.
type Logger struct {
	name   string
	fields []interface{}
	min    *Level
	nop    bool

	mu     sync.Mutex
	gen    uint64
	cached *zap.SugaredLogger
}

// New creates a logger for the given component name
func New(name string) *Logger {
	return &Logger{name: name}
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return &Logger{name: "nop", nop: true}
}

// Name returns the component name
func (l *Logger) Name() string {
	return l.name
}

// With returns a child logger that always carries the given key-value pairs
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	fields := make([]interface{}, 0, len(l.fields)+len(keysAndValues))
	fields = append(fields, l.fields...)
	fields = append(fields, keysAndValues...)
	return &Logger{name: l.name, fields: fields, min: l.min, nop: l.nop}
}

// WithLevel returns a logger that drops entries below level
func (l *Logger) WithLevel(level Level) *Logger {
	lv := level
	return &Logger{name: l.name, fields: l.fields, min: &lv, nop: l.nop}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	if s := l.sugar(); s != nil {
		s.Debugw(msg, keysAndValues...)
	}
}

// Info logs an info message
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	if s := l.sugar(); s != nil {
		s.Infow(msg, keysAndValues...)
	}
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	if s := l.sugar(); s != nil {
		s.Warnw(msg, keysAndValues...)
	}
}

// Error logs an error message
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	if s := l.sugar(); s != nil {
		s.Errorw(msg, keysAndValues...)
	}
}

func (l *Logger) sugar() *zap.SugaredLogger {
	if l == nil || l.nop {
		return nil
	}

	gen := atomic.LoadUint64(&generation)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cached != nil && l.gen == gen {
		return l.cached
	}

	base := current().Named(l.name)
	if l.min != nil {
		base = base.WithOptions(zap.IncreaseLevel(l.min.zapLevel()))
	}
	l.cached = base.Sugar().With(l.fields...)
	l.gen = gen
	return l.cached
}
