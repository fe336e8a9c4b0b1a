package common

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// LogLevel controls console verbosity for CLI entrypoints
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// Logger writes leveled, optionally emoji-tagged lines to stdout. It is
// presentation only; session records go through the file logger.
type Logger struct {
	Level      LogLevel
	ShowEmojis bool
	SilentMode bool
}

// NewLogger creates a console logger at info level with emojis on
func NewLogger() *Logger {
	return &Logger{Level: LogLevelInfo, ShowEmojis: true}
}

// SetSilentMode suppresses everything except errors
func (l *Logger) SetSilentMode(silent bool) {
	l.SilentMode = silent
}

// write prints one tagged line when the level is enabled. Errors print
// even in silent mode.
func (l *Logger) write(level LogLevel, emoji, tag, format string, args ...interface{}) {
	if level != LogLevelError && l.SilentMode {
		return
	}
	if l.Level < level {
		return
	}

	prefix := emoji
	if !l.ShowEmojis {
		prefix = tag
	}
	fmt.Printf("%s %s\n", prefix, fmt.Sprintf(format, args...))
}

// Header prints a section title with an underline
func (l *Logger) Header(title string) {
	if l.SilentMode {
		return
	}

	prefix := "🎯"
	if !l.ShowEmojis {
		prefix = "***"
	}
	fmt.Printf("\n%s %s\n%s\n", prefix, strings.ToUpper(title), strings.Repeat("=", len(title)+5))
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.write(LogLevelError, "❌", "[ERROR]", format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.write(LogLevelWarn, "⚠️ ", "[WARN]", format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.write(LogLevelInfo, "ℹ️ ", "[INFO]", format, args...)
}

func (l *Logger) Success(format string, args ...interface{}) {
	l.write(LogLevelInfo, "✅", "[SUCCESS]", format, args...)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.write(LogLevelDebug, "🔍", "[DEBUG]", format, args...)
}

// EnvLoader loads .env files into the process environment
type EnvLoader struct {
	logger *Logger
}

// NewEnvLoader creates an environment loader reporting through logger
func NewEnvLoader(logger *Logger) *EnvLoader {
	return &EnvLoader{logger: logger}
}

// LoadEnvFile loads environment variables from path. A missing file is
// not an error: the system environment is used as-is.
func (e *EnvLoader) LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		e.logger.Warn("Environment file %s not found, using system environment", path)
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		e.logger.Warn("Could not load environment file %s: %v", path, err)
		return err
	}

	e.logger.Debug("Environment loaded from %s", path)
	return nil
}

// FormatCurrency formats a value as currency
func FormatCurrency(value float64) string {
	return fmt.Sprintf("$%.2f", value)
}

// Global instances for convenience
var (
	DefaultLogger    = NewLogger()
	DefaultEnvLoader = NewEnvLoader(DefaultLogger)
)

// Convenience functions using global instances
func Header(title string)                        { DefaultLogger.Header(title) }
func Info(format string, args ...interface{})    { DefaultLogger.Info(format, args...) }
func Error(format string, args ...interface{})   { DefaultLogger.Error(format, args...) }
func Success(format string, args ...interface{}) { DefaultLogger.Success(format, args...) }
func Warn(format string, args ...interface{})    { DefaultLogger.Warn(format, args...) }

func LoadEnvFile(path string) error { return DefaultEnvLoader.LoadEnvFile(path) }
