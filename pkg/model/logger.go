package model

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	defaultLoggerMu sync.RWMutex
	defaultLogger   logrus.FieldLogger = newTextLogger(logrus.InfoLevel, os.Stderr)
)

// NewLogger creates a text logger writing to stderr at the named level.
// Accepted levels are the logrus level names; an empty level means info.
func NewLogger(level string) (*logrus.Logger, error) {
	lvl := logrus.InfoLevel
	if level = strings.TrimSpace(level); level != "" {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("%w: log level %q", ErrInvalidArgument, level)
		}
		lvl = parsed
	}
	return newTextLogger(lvl, os.Stderr), nil
}

// NewNoOpLogger returns a logger that discards all log messages.
func NewNoOpLogger() logrus.FieldLogger {
	return newTextLogger(logrus.PanicLevel, io.Discard)
}

func newTextLogger(level logrus.Level, out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// SetDefaultLogger replaces the logger used when no logger is configured.
func SetDefaultLogger(l logrus.FieldLogger) {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	defaultLogger = l
}

// GetDefaultLogger returns the logger used when no logger is configured.
func GetDefaultLogger() logrus.FieldLogger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}
