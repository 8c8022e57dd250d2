// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package logger

import (
	"context"

	"github.com/juju/loggo/v2"

	corelogger "github.com/canonical/filevault/core/logger"
)

// GetLogger returns a logger with the given name and tags, backed by
// loggo's default context.
func GetLogger(name string, tags ...string) corelogger.Logger {
	return WrapLoggo(loggo.GetLoggerWithTags(name, tags...))
}

// WrapLoggo wraps a loggo logger into the core logger interface.
func WrapLoggo(logger loggo.Logger) corelogger.Logger {
	return loggoLogger{logger: logger}
}

type loggoLogger struct {
	logger loggo.Logger
}

// Criticalf logs a message at the critical level.
func (c loggoLogger) Criticalf(ctx context.Context, msg string, args ...any) {
	c.logger.LogCallf(2, loggo.CRITICAL, msg, args...)
}

// Errorf logs a message at the error level.
func (c loggoLogger) Errorf(ctx context.Context, msg string, args ...any) {
	c.logger.LogCallf(2, loggo.ERROR, msg, args...)
}

// Warningf logs a message at the warning level.
func (c loggoLogger) Warningf(ctx context.Context, msg string, args ...any) {
	c.logger.LogCallf(2, loggo.WARNING, msg, args...)
}

// Infof logs a message at the info level.
func (c loggoLogger) Infof(ctx context.Context, msg string, args ...any) {
	c.logger.LogCallf(2, loggo.INFO, msg, args...)
}

// Debugf logs a message at the debug level.
func (c loggoLogger) Debugf(ctx context.Context, msg string, args ...any) {
	c.logger.LogCallf(2, loggo.DEBUG, msg, args...)
}

// Tracef logs a message at the trace level.
func (c loggoLogger) Tracef(ctx context.Context, msg string, args ...any) {
	c.logger.LogCallf(2, loggo.TRACE, msg, args...)
}

// IsLevelEnabled returns true if the given level is enabled for the
// logger.
func (c loggoLogger) IsLevelEnabled(level corelogger.Level) bool {
	return c.logger.IsLevelEnabled(loggo.Level(level))
}

// Child returns a new logger with the given name.
func (c loggoLogger) Child(name string, tags ...string) corelogger.Logger {
	return loggoLogger{logger: c.logger.ChildWithTags(name, tags...)}
}
