package log

import (
	"github.com/sirupsen/logrus"
)

// New builds the application logger. An empty or unknown level falls back
// to info rather than failing startup.
func New(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	logger.SetLevel(logrus.InfoLevel)
	if level != "" {
		if parsed, err := logrus.ParseLevel(level); err == nil {
			logger.SetLevel(parsed)
		} else {
			logger.Warnf("Invalid log level %q, using 'info'", level)
		}
	}
	return logger
}

// BadgerAdapter bridges logrus into badger's Logger interface. Badger's
// internal chatter is demoted so routine value-log GC lines don't drown
// scan progress output.
type BadgerAdapter struct {
	entry *logrus.Entry
}

// NewBadgerAdapter wraps a logrus entry for use as a badger.Logger.
func NewBadgerAdapter(entry *logrus.Entry) *BadgerAdapter {
	return &BadgerAdapter{entry: entry.WithField("component", "badger")}
}

// Errorf logs an error message.
func (l *BadgerAdapter) Errorf(f string, v ...interface{}) { l.entry.Errorf(f, v...) }

// Warningf logs a warning message.
func (l *BadgerAdapter) Warningf(f string, v ...interface{}) { l.entry.Warningf(f, v...) }

// Infof logs badger info lines at debug; they are noise at normal verbosity.
func (l *BadgerAdapter) Infof(f string, v ...interface{}) { l.entry.Debugf(f, v...) }

// Debugf logs a debug message.
func (l *BadgerAdapter) Debugf(f string, v ...interface{}) { l.entry.Debugf(f, v...) }
