package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Logger is a file logger for one trading session
type Logger struct {
	sessionID string
	symbols   []string
	logFile   *os.File
	logger    *log.Logger
	mu        sync.Mutex
	logPath   string
}

// LogLevel represents different types of log entries
type LogLevel string

const (
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARN"
	LogLevelError   LogLevel = "ERROR"
	LogLevelTrade   LogLevel = "TRADE"
	LogLevelAlert   LogLevel = "ALERT"
	LogLevelAudit   LogLevel = "AUDIT"
)

// NewLogger creates a session log file under logs/ and writes the session header
func NewLogger(sessionID string, symbols []string) (*Logger, error) {
	logDir := "logs"
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	filename := fmt.Sprintf("session_%s_%s.log", time.Now().Format("2006-01-02"), sessionID)
	logPath := filepath.Join(logDir, filename)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := &Logger{
		sessionID: sessionID,
		symbols:   symbols,
		logFile:   file,
		logger:    log.New(file, "", 0),
		logPath:   logPath,
	}

	l.writeSessionHeader()
	return l, nil
}

func (l *Logger) writeSessionHeader() {
	l.mu.Lock()
	defer l.mu.Unlock()

	header := fmt.Sprintf(`
================================================================================
🚀 TRADING SESSION STARTED
================================================================================
Session: %s | Symbols: %s
Started: %s
================================================================================
`, l.sessionID, strings.Join(l.symbols, ", "), time.Now().Format("2006-01-02 15:04:05"))

	l.logger.Print(header)
}

// Log writes a formatted log entry with the specified level
func (l *Logger) Log(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] [%s] %s", timestamp, level, message)
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

// Trade logs a trading action
func (l *Logger) Trade(format string, args ...interface{}) {
	l.Log(LogLevelTrade, format, args...)
}

// Alert logs a raised alert
func (l *Logger) Alert(format string, args ...interface{}) {
	l.Log(LogLevelAlert, format, args...)
}

// Audit logs a configuration or state change that must be traceable
func (l *Logger) Audit(format string, args ...interface{}) {
	l.Log(LogLevelAudit, format, args...)
}

// LogTradeExecution logs a confirmed fill with its portfolio effect
func (l *Logger) LogTradeExecution(side, symbol, orderID string, quantity, price, notional, equity float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")

	tradeLog := fmt.Sprintf(`
[%s] [TRADE] ==================== %s EXECUTED ====================
✅ Order ID: %s
📦 Quantity: %.6f %s
💰 Price: $%.2f
💵 Notional: $%.2f
📊 Equity: $%.2f
=============================================================`,
		timestamp, side, orderID, quantity, symbol, price, notional, equity)

	l.logger.Println(tradeLog)
}

// LogTickStatus logs per-tick pipeline output for one symbol
func (l *Logger) LogTickStatus(symbol string, price float64, action string, confidence, amount float64) {
	l.Log(LogLevelInfo, "%s @ $%.2f -> %s (confidence %.1f%%, amount $%.2f)",
		symbol, price, action, confidence*100, amount)
}

// LogError logs error with context
func (l *Logger) LogError(context string, err error) {
	l.Error("%s: %v", context, err)
}

// Close writes the session footer and closes the log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile == nil {
		return nil
	}

	footer := fmt.Sprintf(`
================================================================================
🛑 TRADING SESSION ENDED
================================================================================
Ended: %s
================================================================================

`, time.Now().Format("2006-01-02 15:04:05"))
	l.logger.Print(footer)

	return l.logFile.Close()
}

// GetLogPath returns the current log file path
func (l *Logger) GetLogPath() string {
	return l.logPath
}
