// Package testlog provides a log.Logger that records messages for assertions in tests.
package testlog

import (
	"fmt"
	"sync"

	"github.com/bitrise-io/go-utils/v2/log"
)

// Logger records Errorf and Warnf messages and forwards everything to a real logger.
type Logger struct {
	log.Logger

	mu     sync.Mutex
	errors []string
	warns  []string
}

// New creates a recording Logger.
func New() *Logger {
	return &Logger{Logger: log.NewLogger()}
}

// Errorf records the formatted message.
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.mu.Lock()
	l.errors = append(l.errors, fmt.Sprintf(format, v...))
	l.mu.Unlock()
	l.Logger.Errorf(format, v...)
}

// Warnf records the formatted message.
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.mu.Lock()
	l.warns = append(l.warns, fmt.Sprintf(format, v...))
	l.mu.Unlock()
	l.Logger.Warnf(format, v...)
}

// Errors returns the recorded error messages.
func (l *Logger) Errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errors...)
}

// Warnings returns the recorded warning messages.
func (l *Logger) Warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}
