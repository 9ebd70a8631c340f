// Package logger provides structured logging for the PDF translator.
// Log entries go to a size-rotated file and optionally to the console.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log message.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the level name used in log entries.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Field is a key-value pair attached to a log entry.
type Field struct {
	Key   string
	Value any
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an integer field.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 creates an int64 field.
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Float64 creates a float64 field.
func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a boolean field.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Err creates an "error" field from err, which may be nil.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Any creates a field holding an arbitrary value.
func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Logger is the logging interface used throughout the application.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	SetLevel(level Level)
	Close() error
}

// Config holds logger settings.
type Config struct {
	// LogFilePath is the log file location. Parent directories are created.
	LogFilePath string
	// MaxFileSize is the rotation threshold in bytes.
	MaxFileSize int64
	// MaxBackups is how many rotated files to keep.
	MaxBackups int
	// Level is the minimum level written.
	Level Level
	// EnableConsole mirrors entries to stdout.
	EnableConsole bool
}

// DefaultConfig returns the standard logger configuration.
func DefaultConfig() *Config {
	return &Config{
		LogFilePath:   "pdf-translator.log",
		MaxFileSize:   10 * 1024 * 1024,
		MaxBackups:    5,
		Level:         LevelInfo,
		EnableConsole: false,
	}
}

// FileLogger writes formatted entries to a rotating log file.
type FileLogger struct {
	mu     sync.Mutex
	cfg    *Config
	file   *os.File
	out    io.Writer
	level  Level
	size   int64
}

// NewFileLogger opens (or creates) the configured log file.
func NewFileLogger(cfg *Config) (*FileLogger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	l := &FileLogger{cfg: cfg, level: cfg.Level}

	if dir := filepath.Dir(cfg.LogFilePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *FileLogger) open() error {
	f, err := os.OpenFile(l.cfg.LogFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	l.file = f
	l.size = info.Size()
	l.out = f
	if l.cfg.EnableConsole {
		l.out = io.MultiWriter(f, os.Stdout)
	}
	return nil
}

// Debug logs a debug message.
func (l *FileLogger) Debug(msg string, fields ...Field) {
	l.write(LevelDebug, msg, nil, fields)
}

// Info logs an informational message.
func (l *FileLogger) Info(msg string, fields ...Field) {
	l.write(LevelInfo, msg, nil, fields)
}

// Warn logs a warning.
func (l *FileLogger) Warn(msg string, fields ...Field) {
	l.write(LevelWarn, msg, nil, fields)
}

// Error logs an error message. err may be nil.
func (l *FileLogger) Error(msg string, err error, fields ...Field) {
	l.write(LevelError, msg, err, fields)
}

// SetLevel changes the minimum level written.
func (l *FileLogger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// Close flushes and closes the log file.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *FileLogger) write(level Level, msg string, err error, fields []Field) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level || l.file == nil {
		return
	}

	entry := formatEntry(level, msg, err, fields)

	if l.size+int64(len(entry)) > l.cfg.MaxFileSize {
		l.rotate()
	}
	n, _ := l.out.Write([]byte(entry))
	l.size += int64(n)
}

func formatEntry(level Level, msg string, err error, fields []Field) string {
	var b strings.Builder
	b.WriteString(time.Now().Format("2006-01-02T15:04:05.000"))
	b.WriteString(" [")
	b.WriteString(level.String())
	b.WriteString("] ")
	b.WriteString(msg)

	if err != nil {
		fields = append([]Field{Err(err)}, fields...)
	}
	for _, f := range fields {
		b.WriteByte(' ')
		b.WriteString(f.Key)
		b.WriteByte('=')
		writeValue(&b, f.Value)
	}
	if level >= LevelError {
		if site := callSite(); site != "" {
			b.WriteString(" at=")
			b.WriteString(site)
		}
	}
	b.WriteByte('\n')
	return b.String()
}

func writeValue(b *strings.Builder, v any) {
	s := fmt.Sprintf("%v", v)
	if strings.ContainsAny(s, " \t\"") {
		s = fmt.Sprintf("%q", s)
	}
	b.WriteString(s)
}

// callSite reports the first caller frame outside this package.
func callSite() string {
	for i := 3; i < 12; i++ {
		_, file, line, ok := runtime.Caller(i)
		if !ok {
			return ""
		}
		if strings.Contains(file, "internal/logger") && !strings.HasSuffix(file, "_test.go") {
			continue
		}
		return fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}
	return ""
}

// rotate shifts existing backups up by one and starts a fresh file.
// Callers hold l.mu.
func (l *FileLogger) rotate() {
	l.file.Close()

	os.Remove(fmt.Sprintf("%s.%d", l.cfg.LogFilePath, l.cfg.MaxBackups))
	for i := l.cfg.MaxBackups - 1; i >= 1; i-- {
		os.Rename(
			fmt.Sprintf("%s.%d", l.cfg.LogFilePath, i),
			fmt.Sprintf("%s.%d", l.cfg.LogFilePath, i+1),
		)
	}
	os.Rename(l.cfg.LogFilePath, l.cfg.LogFilePath+".1")

	if err := l.open(); err != nil {
		// Last resort: keep running with stderr so entries are not lost.
		l.file = nil
		l.out = os.Stderr
	}
}

var (
	globalMu     sync.RWMutex
	globalLogger Logger
)

// Init installs a FileLogger built from cfg as the global logger.
func Init(cfg *Config) error {
	l, err := NewFileLogger(cfg)
	if err != nil {
		return err
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger != nil {
		globalLogger.Close()
	}
	globalLogger = l
	return nil
}

// GetLogger returns the global logger, or a no-op logger before Init.
func GetLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger == nil {
		return noop{}
	}
	return globalLogger
}

// SetGlobalLogger replaces the global logger. Useful in tests.
func SetGlobalLogger(l Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

// Close shuts down the global logger.
func Close() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		return nil
	}
	err := globalLogger.Close()
	globalLogger = nil
	return err
}

// Debug logs through the global logger.
func Debug(msg string, fields ...Field) { GetLogger().Debug(msg, fields...) }

// Info logs through the global logger.
func Info(msg string, fields ...Field) { GetLogger().Info(msg, fields...) }

// Warn logs through the global logger.
func Warn(msg string, fields ...Field) { GetLogger().Warn(msg, fields...) }

// Error logs through the global logger.
func Error(msg string, err error, fields ...Field) { GetLogger().Error(msg, err, fields...) }

type noop struct{}

func (noop) Debug(string, ...Field)        {}
func (noop) Info(string, ...Field)         {}
func (noop) Warn(string, ...Field)         {}
func (noop) Error(string, error, ...Field) {}
func (noop) SetLevel(Level)                {}
func (noop) Close() error                  { return nil }
