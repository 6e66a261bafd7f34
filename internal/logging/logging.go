package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// LogLevel orders message severities; a message is emitted when its
// level is at or above the configured one.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[LogLevel]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", l)
}

var (
	currentLevel LogLevel
	levelOnce    sync.Once
)

// parseLevel resolves the configured level from the LOG_LEVEL and DEBUG
// values. DEBUG takes precedence when truthy; unrecognized input falls
// back to info.
func parseLevel(logLevel, debug string) LogLevel {
	switch strings.ToLower(debug) {
	case "1", "true", "yes", "on":
		return LevelDebug
	}

	switch strings.ToLower(logLevel) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// GetLevel returns the configured level, resolving it from the
// environment on first use.
func GetLevel() LogLevel {
	levelOnce.Do(func() {
		currentLevel = parseLevel(os.Getenv("LOG_LEVEL"), os.Getenv("DEBUG"))
	})
	return currentLevel
}

// IsDebugEnabled reports whether debug messages are being emitted.
// Callers use it to skip building expensive debug output.
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

func logf(level LogLevel, format string, args ...interface{}) {
	if GetLevel() <= level {
		log.Printf("["+strings.ToUpper(level.String())+"] "+format, args...)
	}
}

// Debug logs a debug message. Suppressed unless LOG_LEVEL=debug or
// DEBUG is set truthy.
func Debug(format string, args ...interface{}) {
	logf(LevelDebug, format, args...)
}

// Info logs an operational message.
func Info(format string, args ...interface{}) {
	logf(LevelInfo, format, args...)
}

// Warn logs a warning.
func Warn(format string, args ...interface{}) {
	logf(LevelWarn, format, args...)
}

// Error logs an error.
func Error(format string, args ...interface{}) {
	logf(LevelError, format, args...)
}

// Fatal logs the message and exits the process. Never suppressed.
func Fatal(format string, args ...interface{}) {
	log.Fatalf("[FATAL] "+format, args...)
}
