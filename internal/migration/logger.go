// ABOUTME: Logger handed to migration steps, backed by slog or an append-only file
// ABOUTME: Step authors log through this interface rather than a concrete logger

package migration

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Logger is the logging surface available to migration steps
type Logger interface {
	Log(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogLogger adapts a *slog.Logger
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger wraps logger, or slog.Default() when nil
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger}
}

// Log writes an info record
func (l *SlogLogger) Log(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

// Error writes an error record
func (l *SlogLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

// FileLogger appends JSON records to a file
type FileLogger struct {
	mu     sync.Mutex
	file   *os.File
	logger *slog.Logger
}

// NewFileLogger opens path for appending, creating parent directories
func NewFileLogger(path string) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	return &FileLogger{
		file:   f,
		logger: slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}, nil
}

// Log writes an info record
func (l *FileLogger) Log(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Info(msg, args...)
}

// Error writes an error record
func (l *FileLogger) Error(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Error(msg, args...)
}

// Close closes the underlying file
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// multiLogger fans records out to several loggers
type multiLogger []Logger

// Tee returns a Logger writing to every non-nil logger
func Tee(loggers ...Logger) Logger {
	var out multiLogger
	for _, l := range loggers {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

func (m multiLogger) Log(msg string, args ...any) {
	for _, l := range m {
		l.Log(msg, args...)
	}
}

func (m multiLogger) Error(msg string, args ...any) {
	for _, l := range m {
		l.Error(msg, args...)
	}
}
