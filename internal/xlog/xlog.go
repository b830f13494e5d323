// Package xlog builds the single injected logging handle the rest of the
// bridge receives instead of reaching for a package-level singleton.
package xlog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Level is the enumerated log verbosity accepted from configuration.
type Level string

const (
	LevelTrace   Level = "trace"
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

func (l Level) toLogrus() logrus.Level {
	switch l {
	case LevelTrace:
		return logrus.TraceLevel
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarning:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// New builds a *logrus.Logger that writes one record per line to stderr and,
// if logFile is non-empty, appends the same records to that file.
func New(level Level, logFile string) (*logrus.Logger, error) {
	l := logrus.New()
	l.SetLevel(level.toLogrus())
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	out := io.Writer(os.Stderr)
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		out = io.MultiWriter(os.Stderr, f)
	}
	l.SetOutput(out)
	return l, nil
}

// SetLevel updates the log level of an already-built logger in place, so the
// engine can apply a changed LogLevel from the control model without
// tearing down and rebuilding the logger.
func SetLevel(l *logrus.Logger, level Level) {
	l.SetLevel(level.toLogrus())
}
