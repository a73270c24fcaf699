// Package log provides the logging interface for the cmdpool SDK.
//
// The SDK accepts any implementation of [Logger]. Use [Noop] to disable
// logging (this is the default when no logger is configured), or [NewLogrus]
// to log through a logrus entry:
//
//	pool, err := lib.New(ctx, lib.Config{
//		Logger: log.NewLogrus(logrus.NewEntry(logrus.StandardLogger())),
//	})
//
// To integrate with any other logger, implement the [Logger] interface.
package log

import (
	"github.com/sirupsen/logrus"

	"github.com/slok/cmdpool/internal/log"
	loglogrus "github.com/slok/cmdpool/internal/log/logrus"
)

// Logger is the interface that loggers must implement for the SDK.
type Logger = log.Logger

// Kv is a helper type for structured logging key-value pairs.
type Kv = log.Kv

// Noop is a logger that discards all log output. This is the default logger
// when none is provided in [lib.Config].
var Noop = log.Noop

// NewLogrus returns a Logger that writes to the logrus entry.
func NewLogrus(e *logrus.Entry) Logger {
	return loglogrus.NewLogrus(e)
}
