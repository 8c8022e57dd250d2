// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package logger

import (
	"context"
)

// Level represents the log level.
type Level int32

// The severity levels. Higher values are more considered more
// important.
const (
	// UNSPECIFIED indicates that no specific log level was set.
	UNSPECIFIED Level = iota
	// TRACE is the lowest log level.
	TRACE
	// DEBUG is a low log level.
	DEBUG
	// INFO is an informational log level.
	INFO
	// WARNING is a log level for messages that are not errors, but
	// are important to note.
	WARNING
	// ERROR is a log level for messages that are errors.
	ERROR
	// CRITICAL is the highest log level.
	CRITICAL
)

// Logger is an interface that provides logging methods.
type Logger interface {
	// Criticalf logs a message at the critical level.
	Criticalf(ctx context.Context, msg string, args ...any)

	// Errorf logs a message at the error level.
	Errorf(ctx context.Context, msg string, args ...any)

	// Warningf logs a message at the warning level.
	Warningf(ctx context.Context, msg string, args ...any)

	// Infof logs a message at the info level.
	Infof(ctx context.Context, msg string, args ...any)

	// Debugf logs a message at the debug level.
	Debugf(ctx context.Context, msg string, args ...any)

	// Tracef logs a message at the trace level.
	Tracef(ctx context.Context, msg string, args ...any)

	// IsLevelEnabled returns true if the given level is enabled for the
	// logger.
	IsLevelEnabled(Level) bool

	// Child returns a new logger with the given name.
	Child(name string, tags ...string) Logger
}
