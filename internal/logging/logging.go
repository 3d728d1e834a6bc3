package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Logger is a simple logger that writes to the console. Messages take
// trailing key/value pairs: logger.Info("saved", "id", id).
type Logger struct {
	*log.Logger
	debug bool
}

// NewLogger creates a new Logger writing to stdout.
func NewLogger() *Logger {
	return NewLoggerTo(os.Stdout, false)
}

// NewLoggerTo creates a Logger writing to w. Debug messages are dropped
// unless debug is set.
func NewLoggerTo(w io.Writer, debug bool) *Logger {
	return &Logger{
		Logger: log.New(w, "", log.LstdFlags),
		debug:  debug,
	}
}

// Info logs an informational message.
func (l *Logger) Info(msg string, args ...any) {
	l.Println("INFO: " + format(msg, args))
}

// Warn logs a warning.
func (l *Logger) Warn(msg string, args ...any) {
	l.Println("WARN: " + format(msg, args))
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...any) {
	l.Println("ERROR: " + format(msg, args))
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...any) {
	if !l.debug {
		return
	}
	l.Println("DEBUG: " + format(msg, args))
}

func format(msg string, args []any) string {
	if len(args) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 == len(args) {
			fmt.Fprintf(&b, " %v", args[i])
			break
		}
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	return b.String()
}
