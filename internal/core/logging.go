package core

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// LogrusLogger adapts a logrus logger to Logger. Args are folded into fields;
// an odd trailing arg is kept under "arg".
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger wraps logger, or the logrus standard logger when nil.
func NewLogrusLogger(logger *logrus.Logger) *LogrusLogger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogrusLogger{entry: logrus.NewEntry(logger)}
}

func fields(args []any) logrus.Fields {
	f := make(logrus.Fields, (len(args)+1)/2)
	for i := 0; i < len(args); i += 2 {
		if i+1 == len(args) {
			f["arg"] = args[i]
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		f[key] = args[i+1]
	}
	return f
}

// Debug implements Logger.
func (l *LogrusLogger) Debug(msg string, args ...any) { l.entry.WithFields(fields(args)).Debug(msg) }

// Info implements Logger.
func (l *LogrusLogger) Info(msg string, args ...any) { l.entry.WithFields(fields(args)).Info(msg) }

// Warn implements Logger.
func (l *LogrusLogger) Warn(msg string, args ...any) { l.entry.WithFields(fields(args)).Warn(msg) }

// Error implements Logger.
func (l *LogrusLogger) Error(msg string, args ...any) { l.entry.WithFields(fields(args)).Error(msg) }
