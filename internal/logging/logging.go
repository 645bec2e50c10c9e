// Package logging builds the logrus loggers used across structgraph.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/hanpama/structgraph/internal/config"
)

// Logger is what components accept; both *logrus.Logger and *logrus.Entry
// satisfy it.
type Logger = logrus.FieldLogger

// Fields represents structured logging fields
type Fields = logrus.Fields

// New returns a JSON logger whose entries carry the service name. The level
// comes from LOG_LEVEL.
func New(service string) *logrus.Entry {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(config.LogLevel())
	return l.WithField("service", service)
}

// Discard returns a logger that drops everything, for tests.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
