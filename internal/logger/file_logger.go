package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger represents a file logger for execution and risk activities
type Logger struct {
	name    string
	logFile *os.File
	logger  *log.Logger
	mu      sync.Mutex
	logDir  string
}

// LogLevel represents different types of log entries
type LogLevel string

const (
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARN"
	LogLevelError   LogLevel = "ERROR"
	LogLevelTrade   LogLevel = "TRADE"
	LogLevelRisk    LogLevel = "RISK"
	LogLevelStatus  LogLevel = "STATUS"
)

// NewLogger creates a new file logger for the named engine instance
func NewLogger(name string) (*Logger, error) {
	logDir := "logs"
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("%s_%s.log", name, timestamp)
	logPath := filepath.Join(logDir, filename)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := &Logger{
		name:    name,
		logFile: file,
		logger:  log.New(file, "", 0),
		logDir:  logDir,
	}

	l.writeSessionHeader()

	return l, nil
}

func (l *Logger) writeSessionHeader() {
	l.mu.Lock()
	defer l.mu.Unlock()

	header := fmt.Sprintf(`
================================================================================
EXECUTION ENGINE SESSION STARTED
================================================================================
Engine: %s
Started: %s
================================================================================
`, l.name, time.Now().Format("2006-01-02 15:04:05"))

	l.logger.Print(header)
}

// Log writes a formatted log entry with the specified level
func (l *Logger) Log(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	message := fmt.Sprintf(format, args...)
	l.logger.Println(fmt.Sprintf("[%s] [%s] %s", timestamp, level, message))
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.Log(LogLevelInfo, format, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(format string, args ...interface{}) {
	l.Log(LogLevelWarning, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.Log(LogLevelError, format, args...)
}

// Trade logs an order execution event
func (l *Logger) Trade(format string, args ...interface{}) {
	l.Log(LogLevelTrade, format, args...)
}

// Risk logs a risk control event
func (l *Logger) Risk(format string, args ...interface{}) {
	l.Log(LogLevelRisk, format, args...)
}

// Status logs engine status information
func (l *Logger) Status(format string, args ...interface{}) {
	l.Log(LogLevelStatus, format, args...)
}

// LogOrderExecution logs order execution details in a block
func (l *Logger) LogOrderExecution(orderID, symbol, side string, quantity, filled int, avgPrice float64, strategy string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")

	block := fmt.Sprintf(`
[%s] [TRADE] ==================== ORDER EXECUTED ====================
Order ID: %s
Symbol: %s | Side: %s | Strategy: %s
Quantity: %d | Filled: %d
Avg Fill Price: $%.2f
=============================================================`,
		timestamp, orderID, symbol, side, strategy, quantity, filled, avgPrice)

	l.logger.Println(block)
}

// LogRiskViolation logs a risk violation in a block
func (l *Logger) LogRiskViolation(violationType, severity, symbol, message string, observed, limit float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	if symbol == "" {
		symbol = "(portfolio)"
	}

	block := fmt.Sprintf(`
[%s] [RISK] ==================== RISK VIOLATION ====================
Type: %s | Severity: %s | Symbol: %s
%s
Observed: %.4f | Limit: %.4f
=============================================================`,
		timestamp, violationType, severity, symbol, message, observed, limit)

	l.logger.Println(block)
}

// LogHalt logs a trading halt or resume transition
func (l *Logger) LogHalt(halted bool, reason string) {
	if halted {
		l.Risk("TRADING HALTED: %s", reason)
	} else {
		l.Risk("Trading resumed: %s", reason)
	}
}

// LogError logs error with context
func (l *Logger) LogError(context string, err error) {
	l.Error("%s: %v", context, err)
}

// Close closes the log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		footer := fmt.Sprintf(`
================================================================================
EXECUTION ENGINE SESSION ENDED
================================================================================
Ended: %s
================================================================================

`, time.Now().Format("2006-01-02 15:04:05"))
		l.logger.Print(footer)

		return l.logFile.Close()
	}
	return nil
}

// GetLogPath returns the current log file path
func (l *Logger) GetLogPath() string {
	timestamp := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("%s_%s.log", l.name, timestamp)
	return filepath.Join(l.logDir, filename)
}
