package util

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	loggerMu        sync.Mutex
	currentLogLevel = LevelInfo
	logger          = newLogger(os.Stderr)
)

func newLogger(w io.Writer) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           log.InfoLevel,
	})
}

func charmLevel(level LogLevel) log.Level {
	switch level {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// SetLogLevel sets the minimum log level to display
func SetLogLevel(level LogLevel) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	currentLogLevel = level
	logger.SetLevel(charmLevel(level))
}

// SetVerbose enables verbose (debug) logging
func SetVerbose(verbose bool) {
	if verbose {
		SetLogLevel(LevelDebug)
	}
}

// SetQuiet enables quiet mode (errors only)
func SetQuiet(quiet bool) {
	if quiet {
		SetLogLevel(LevelError)
	}
}

// IsQuiet reports whether only errors are being logged
func IsQuiet() bool {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	return currentLogLevel >= LevelError
}

// SetOutput redirects log output, mostly useful in tests
func SetOutput(w io.Writer) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger.SetOutput(w)
}

// DebugLog logs debug messages
func DebugLog(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}

// InfoLog logs informational messages
func InfoLog(format string, args ...interface{}) {
	logger.Infof(format, args...)
}

// WarnLog logs warning messages
func WarnLog(format string, args ...interface{}) {
	logger.Warnf(format, args...)
}

// ErrorLog logs error messages
func ErrorLog(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}

// SuccessLog logs success messages (always shown unless quiet)
func SuccessLog(format string, args ...interface{}) {
	logger.WithPrefix("OK").Infof(format, args...)
}
