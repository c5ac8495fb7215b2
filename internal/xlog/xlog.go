// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package xlog is the interpreter's structured logger: Trace/Debug/Info/
// Warn methods taking a message plus alternating key-value pairs, the same
// calling convention the teacher's own `log` package uses throughout the
// wider monorepo (e.g. `log.Trace("pob verifyHeader", "block number", n)`).
// Built on stdlib log/slog rather than the teacher's package itself, since
// that package is project-internal to the blockchain node and not a
// separately fetchable module.
package xlog

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps an *slog.Logger with the teacher's message-first calling
// convention.
type Logger struct {
	inner *slog.Logger
}

// New returns a Logger writing leveled text to stderr, dropping records
// below level.
func New(level slog.Level) *Logger {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &Logger{inner: slog.New(h)}
}

// Default is the package-level logger used by callers that don't need a
// dedicated instance, mirroring the teacher's package-level log.Trace etc.
var Default = New(slog.LevelInfo)

func Trace(msg string, kv ...any) { Default.Trace(msg, kv...) }
func Debug(msg string, kv ...any) { Default.Debug(msg, kv...) }
func Info(msg string, kv ...any)  { Default.Info(msg, kv...) }
func Warn(msg string, kv ...any)  { Default.Warn(msg, kv...) }
func Error(msg string, kv ...any) { Default.Error(msg, kv...) }

// Trace logs at a level below Debug — slog has no native Trace level, so
// this is LevelDebug minus 4, the conventional "verbose debug" offset.
func (l *Logger) Trace(msg string, kv ...any) {
	l.inner.Log(context.Background(), slog.LevelDebug-4, msg, kv...)
}
func (l *Logger) Debug(msg string, kv ...any) { l.inner.Debug(msg, kv...) }
func (l *Logger) Info(msg string, kv ...any)  { l.inner.Info(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.inner.Warn(msg, kv...) }
func (l *Logger) Error(msg string, kv ...any) { l.inner.Error(msg, kv...) }
