// Package tuilog provides file-based logging for curios.
// It is a separate package so the tui, chat and api packages can share
// one logger without import cycles.
package tuilog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes to a file because stdout/stderr belong to the terminal UI
// while it runs. A zero Logger discards everything.
type Logger struct {
	mu      sync.RWMutex
	sugar   *zap.SugaredLogger
	level   zap.AtomicLevel
	file    *os.File
	enabled bool
}

var (
	// Log is the global logger instance.
	Log = &Logger{level: zap.NewAtomicLevelAt(zapcore.InfoLevel)}
)

// Init points the global logger at path. An empty path disables logging.
// Calling Init again replaces the previous file.
func Init(path string) error {
	return Log.open(path)
}

// SetVerbose switches the global logger between info and debug level.
func SetVerbose(v bool) {
	if v {
		Log.level.SetLevel(zapcore.DebugLevel)
		return
	}
	Log.level.SetLevel(zapcore.InfoLevel)
}

func (l *Logger) open(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closeLocked()
	if path == "" {
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	l.file = f
	l.sugar = newSugar(zapcore.AddSync(f), l.level)
	l.enabled = true
	l.sugar.Infow("Logger initialized", "path", path)
	return nil
}

// NewWriterLogger returns a Logger that writes to w at debug level.
// Tests use it to capture output.
func NewWriterLogger(w io.Writer) *Logger {
	level := zap.NewAtomicLevelAt(zapcore.DebugLevel)
	return &Logger{
		sugar:   newSugar(zapcore.AddSync(w), level),
		level:   level,
		enabled: true,
	}
}

func newSugar(ws zapcore.WriteSyncer, level zap.AtomicLevel) *zap.SugaredLogger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), ws, level)
	return zap.New(core).Sugar()
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked()
}

func (l *Logger) closeLocked() error {
	if l.sugar != nil {
		_ = l.sugar.Sync()
	}
	l.sugar = nil
	l.enabled = false
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Enabled returns whether logging is active.
func (l *Logger) Enabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.enabled
}

// Writer returns the underlying log file for use with other libraries
// (the chi request logger, for one).
func (l *Logger) Writer() io.Writer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.enabled || l.file == nil {
		return io.Discard
	}
	return l.file
}

func (l *Logger) get() *zap.SugaredLogger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.enabled {
		return nil
	}
	return l.sugar
}

// Debug logs a debug message with optional key-value pairs.
func (l *Logger) Debug(msg string, keyvals ...any) {
	if s := l.get(); s != nil {
		s.Debugw(msg, keyvals...)
	}
}

// Info logs an info message with optional key-value pairs.
func (l *Logger) Info(msg string, keyvals ...any) {
	if s := l.get(); s != nil {
		s.Infow(msg, keyvals...)
	}
}

// Warn logs a warning message with optional key-value pairs.
func (l *Logger) Warn(msg string, keyvals ...any) {
	if s := l.get(); s != nil {
		s.Warnw(msg, keyvals...)
	}
}

// Error logs an error message with optional key-value pairs.
func (l *Logger) Error(msg string, keyvals ...any) {
	if s := l.get(); s != nil {
		s.Errorw(msg, keyvals...)
	}
}

// Debugf logs a formatted debug message.
func (l *Logger) Debugf(format string, args ...any) {
	if s := l.get(); s != nil {
		s.Debugf(format, args...)
	}
}

// Warnf logs a formatted warning message.
func (l *Logger) Warnf(format string, args ...any) {
	if s := l.get(); s != nil {
		s.Warnf(format, args...)
	}
}

// Timed logs the duration of an operation. Usage:
//
//	defer tuilog.Log.Timed("load history")()
func (l *Logger) Timed(operation string) func() {
	s := l.get()
	if s == nil {
		return func() {}
	}
	start := time.Now()
	s.Debugw(operation, "status", "started")
	return func() {
		s.Debugw(operation, "status", "completed", "duration", time.Since(start))
	}
}
