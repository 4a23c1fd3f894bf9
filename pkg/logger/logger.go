package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// DebugLevel for detailed debugging information
	DebugLevel LogLevel = iota
	// InfoLevel for general informational messages
	InfoLevel
	// WarnLevel for warning messages
	WarnLevel
	// ErrorLevel for error messages
	ErrorLevel
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config or flag value onto a LogLevel. Unknown values fall back to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger provides levelled logging with an application prefix and an
// optional component tag.
type Logger struct {
	logger    *log.Logger
	level     *atomic.Int32
	prefix    string
	component string
	useColor  bool
}

// New creates a new Logger instance
func New(out io.Writer, prefix string, level LogLevel) *Logger {
	lvl := new(atomic.Int32)
	lvl.Store(int32(level))
	return &Logger{
		logger:   log.New(out, "", log.LstdFlags),
		level:    lvl,
		prefix:   prefix,
		useColor: isTerminal(out),
	}
}

// NewDefault creates a logger with default settings (INFO level)
func NewDefault(prefix string) *Logger {
	return New(os.Stdout, prefix, InfoLevel)
}

// Named returns a child logger tagging every line with [component].
// Children share the parent's level, so SetLevel on either affects both.
func (l *Logger) Named(component string) *Logger {
	return &Logger{
		logger:    l.logger,
		level:     l.level,
		prefix:    l.prefix,
		component: component,
		useColor:  l.useColor,
	}
}

// SetLevel sets the minimum log level. Safe to call while children log.
func (l *Logger) SetLevel(level LogLevel) {
	l.level.Store(int32(level))
}

// Level returns the current minimum level
func (l *Logger) Level() LogLevel {
	return LogLevel(l.level.Load())
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	if l.Level() <= DebugLevel {
		l.log(DebugLevel, format, v...)
	}
}

// Info logs an informational message
func (l *Logger) Info(format string, v ...interface{}) {
	if l.Level() <= InfoLevel {
		l.log(InfoLevel, format, v...)
	}
}

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) {
	if l.Level() <= WarnLevel {
		l.log(WarnLevel, format, v...)
	}
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	if l.Level() <= ErrorLevel {
		l.log(ErrorLevel, format, v...)
	}
}

// Printf provides backward compatibility with standard log.Logger
func (l *Logger) Printf(format string, v ...interface{}) {
	l.Info(format, v...)
}

// Println provides backward compatibility with standard log.Logger
func (l *Logger) Println(v ...interface{}) {
	l.Info("%s", fmt.Sprint(v...))
}

func (l *Logger) log(level LogLevel, format string, v ...interface{}) {
	levelStr := level.String()
	if l.useColor {
		levelStr = colorize(level, levelStr)
	}

	message := fmt.Sprintf(format, v...)
	if l.component != "" {
		l.logger.Printf("%s [%s] [%s] %s", l.prefix, levelStr, l.component, message)
		return
	}
	l.logger.Printf("%s [%s] %s", l.prefix, levelStr, message)
}

func colorize(level LogLevel, text string) string {
	const (
		colorReset  = "\033[0m"
		colorGray   = "\033[90m"
		colorGreen  = "\033[32m"
		colorYellow = "\033[33m"
		colorRed    = "\033[31m"
	)

	switch level {
	case DebugLevel:
		return colorGray + text + colorReset
	case InfoLevel:
		return colorGreen + text + colorReset
	case WarnLevel:
		return colorYellow + text + colorReset
	case ErrorLevel:
		return colorRed + text + colorReset
	default:
		return text
	}
}

// isTerminal checks if the writer is a terminal
func isTerminal(w io.Writer) bool {
	if w == os.Stdout || w == os.Stderr {
		term := os.Getenv("TERM")
		return term != "" && !strings.Contains(term, "dumb")
	}
	return false
}
