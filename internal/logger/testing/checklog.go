// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import (
	"context"
	"fmt"

	"github.com/canonical/filevault/core/logger"
)

// CheckLog is implemented by *testing.T and *tc.C.
type CheckLog interface {
	Logf(string, ...any)
}

// WrapCheckLog returns a logger that writes through the given test
// log, so test failures show the messages emitted on the way there.
func WrapCheckLog(log CheckLog) logger.Logger {
	return checkLogger{log: log}
}

type checkLogger struct {
	log CheckLog
}

func (c checkLogger) Criticalf(_ context.Context, msg string, args ...any) {
	c.log.Logf(fmt.Sprintf("CRITICAL: %s", msg), args...)
}

func (c checkLogger) Errorf(_ context.Context, msg string, args ...any) {
	c.log.Logf(fmt.Sprintf("ERROR: %s", msg), args...)
}

func (c checkLogger) Warningf(_ context.Context, msg string, args ...any) {
	c.log.Logf(fmt.Sprintf("WARNING: %s", msg), args...)
}

func (c checkLogger) Infof(_ context.Context, msg string, args ...any) {
	c.log.Logf(fmt.Sprintf("INFO: %s", msg), args...)
}

func (c checkLogger) Debugf(_ context.Context, msg string, args ...any) {
	c.log.Logf(fmt.Sprintf("DEBUG: %s", msg), args...)
}

func (c checkLogger) Tracef(_ context.Context, msg string, args ...any) {
	c.log.Logf(fmt.Sprintf("TRACE: %s", msg), args...)
}

func (c checkLogger) IsLevelEnabled(logger.Level) bool { return true }

func (c checkLogger) Child(string, ...string) logger.Logger { return c }
