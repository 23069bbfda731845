package lotto

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// DefaultLogger implements Logger using standard log package
type DefaultLogger struct{}

// Info logs an info message
func (l *DefaultLogger) Info(msg string, args ...any) {
	log.Printf("[INFO] "+msg, args...)
}

// Warn logs a warning message
func (l *DefaultLogger) Warn(msg string, args ...any) {
	log.Printf("[WARN] "+msg, args...)
}

// Error logs an error message
func (l *DefaultLogger) Error(msg string, args ...any) {
	log.Printf("[ERROR] "+msg, args...)
}

// Debug logs a debug message
func (l *DefaultLogger) Debug(msg string, args ...any) {
	log.Printf("[DEBUG] "+msg, args...)
}

// SilentLogger implements Logger interface but does not output any logs
// This is useful for testing environments where log output is not desired
type SilentLogger struct{}

// NewSilentLogger creates a new silent logger instance
func NewSilentLogger() *SilentLogger {
	return &SilentLogger{}
}

func (l *SilentLogger) Info(msg string, args ...any)  {}
func (l *SilentLogger) Warn(msg string, args ...any)  {}
func (l *SilentLogger) Error(msg string, args ...any) {}
func (l *SilentLogger) Debug(msg string, args ...any) {}

// SlogOptions configures a SlogLogger.
type SlogOptions struct {
	Level      slog.Leveler // slog.LevelInfo, slog.LevelDebug, etc.
	Writer     io.Writer    // default: os.Stderr
	TimeFormat string       // default: 15:04:05
	NoColor    bool
}

// SlogLogger adapts a colorized tint slog handler to the printf-style Logger.
type SlogLogger struct {
	l *slog.Logger
}

// NewSlogLogger creates a logger writing through tint.
func NewSlogLogger(opts *SlogOptions) *SlogLogger {
	if opts == nil {
		opts = &SlogOptions{}
	}
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}
	timeFormat := opts.TimeFormat
	if timeFormat == "" {
		timeFormat = "15:04:05"
	}
	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}

	handler := tint.NewHandler(writer, &tint.Options{
		Level:      level,
		TimeFormat: timeFormat,
		NoColor:    opts.NoColor,
	})
	return &SlogLogger{l: slog.New(handler)}
}

// Slog exposes the underlying structured logger.
func (s *SlogLogger) Slog() *slog.Logger { return s.l }

func (s *SlogLogger) Info(msg string, args ...any)  { s.l.Info(fmt.Sprintf(msg, args...)) }
func (s *SlogLogger) Warn(msg string, args ...any)  { s.l.Warn(fmt.Sprintf(msg, args...)) }
func (s *SlogLogger) Error(msg string, args ...any) { s.l.Error(fmt.Sprintf(msg, args...)) }
func (s *SlogLogger) Debug(msg string, args ...any) { s.l.Debug(fmt.Sprintf(msg, args...)) }

// ParseLogLevel maps a level name to a slog level. Unknown names fall back to info.
func ParseLogLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
