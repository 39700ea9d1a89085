// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     logging
// Description: Process-wide logger configuration (zap core, file rotation)
// Author:      Mike Stoffels with Claude
// Created:     2025-12-06
// License:     MIT
// ============================================================================

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds configuration for the process-wide logger
type Config struct {
	// Level is one of debug, info, warn, error
	Level string

	// Format is "json" or "console"
	Format string

	// File enables rotating file output. Empty means stderr.
	File string

	// Rotation settings for File output
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Output overrides the destination (tests). Ignored when File is set.
	Output io.Writer
}

// DefaultConfig returns the default configuration: console output on stderr
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 14,
	}
}

var (
	baseMu     sync.RWMutex
	base       *zap.Logger
	closer     io.Closer
	generation uint64
)

func init() {
	base = build(DefaultConfig(), zapcore.AddSync(os.Stderr))
}

// Configure replaces the process-wide logger. Loggers created earlier pick
// up the new configuration on their next call.
func Configure(cfg Config) error {
	var sink zapcore.WriteSyncer
	var c io.Closer

	switch {
	case cfg.File != "":
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		sink = zapcore.AddSync(lj)
		c = lj
	case cfg.Output != nil:
		sink = zapcore.AddSync(cfg.Output)
	default:
		sink = zapcore.AddSync(os.Stderr)
	}

	logger := build(cfg, sink)

	baseMu.Lock()
	old, oldCloser := base, closer
	base, closer = logger, c
	baseMu.Unlock()
	atomic.AddUint64(&generation, 1)

	_ = old.Sync()
	if oldCloser != nil {
		_ = oldCloser.Close()
	}
	return nil
}

// Sync flushes buffered log entries
func Sync() error {
	return current().Sync()
}

// ParseLevel converts a level name to a Level. Unknown names map to info.
func ParseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error", "fatal":
		return LevelError
	default:
		return LevelInfo
	}
}

func current() *zap.Logger {
	baseMu.RLock()
	defer baseMu.RUnlock()
	return base
}

func build(cfg Config, sink zapcore.WriteSyncer) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if cfg.Format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, sink, zap.NewAtomicLevelAt(ParseLevel(cfg.Level).zapLevel()))
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}
