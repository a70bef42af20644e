// Package utils holds small cross-cutting helpers shared by the server
// packages.
package utils

import (
	"log"
	"os"
)

// Logger writes leveled log lines for the API, hub and room code paths.
// Info goes to stdout, Error to stderr, so operational noise and failures
// can be collected separately.
type Logger struct {
	infoLog  *log.Logger
	errorLog *log.Logger
}

// NewLogger creates a logger with date, time and caller information
func NewLogger() *Logger {
	flags := log.Ldate | log.Ltime | log.Lshortfile
	return &Logger{
		infoLog:  log.New(os.Stdout, "INFO: ", flags),
		errorLog: log.New(os.Stderr, "ERROR: ", flags),
	}
}

// Info logs a formatted informational message
func (l *Logger) Info(format string, v ...interface{}) {
	l.infoLog.Printf(format, v...)
}

// Error logs a formatted error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.errorLog.Printf(format, v...)
}
