// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package txn

import (
	"context"
	"database/sql"
	"time"

	"github.com/canonical/sqlair"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"

	"github.com/canonical/filevault/core/logger"
)

const (
	// DefaultTimeout is the timeout applied to every transaction unless
	// overridden with WithTimeout.
	DefaultTimeout = time.Second * 30
)

// Option updates the underlying transaction runner configuration.
type Option func(*option)

// WithTimeout sets the timeout for each transaction attempt.
func WithTimeout(timeout time.Duration) Option {
	return func(o *option) {
		o.timeout = timeout
	}
}

// WithLogger sets the logger used for transaction tracing.
func WithLogger(logger logger.Logger) Option {
	return func(o *option) {
		o.logger = logger
	}
}

// WithRetryStrategy sets the function used to run a transaction attempt
// under retry semantics.
func WithRetryStrategy(strategy RetryStrategy) Option {
	return func(o *option) {
		o.retryStrategy = strategy
	}
}

type option struct {
	timeout       time.Duration
	logger        logger.Logger
	retryStrategy RetryStrategy
}

func newOptions() *option {
	return &option{
		timeout:       DefaultTimeout,
		logger:        noopLogger{},
		retryStrategy: defaultRetryStrategy(clock.WallClock, noopLogger{}),
	}
}

// RetryStrategy defines a function for retrying a transaction.
type RetryStrategy func(context.Context, func() error) error

// RetryingTxnRunner defines a generic runner for applying transactions
// to a given database. It expects that no individual transaction
// function should take longer than the default timeout.
// Transient errors (busy or locked database) are retried with backoff;
// all other errors abort the transaction immediately.
type RetryingTxnRunner struct {
	timeout       time.Duration
	logger        logger.Logger
	retryStrategy RetryStrategy
}

// NewRetryingTxnRunner returns a new RetryingTxnRunner.
func NewRetryingTxnRunner(opts ...Option) *RetryingTxnRunner {
	o := newOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &RetryingTxnRunner{
		timeout:       o.timeout,
		logger:        o.logger,
		retryStrategy: o.retryStrategy,
	}
}

// Txn executes the input function against the tracked database, using
// the sqlair package. The sqlair package provides a mapping library for
// SQL queries and statements.
// Retry semantics are applied automatically based on transient failures.
// This is the function that almost all downstream database consumers
// should use.
func (t *RetryingTxnRunner) Txn(ctx context.Context, db *sqlair.DB, fn func(context.Context, *sqlair.TX) error) error {
	return t.run(ctx, func(ctx context.Context) error {
		tx, err := db.Begin(ctx, nil)
		if err != nil {
			return errors.Trace(err)
		}

		if err := fn(ctx, tx); err != nil {
			if rErr := tx.Rollback(); rErr != nil {
				t.logger.Warningf(ctx, "failed to rollback transaction: %v", rErr)
			}
			return errors.Trace(err)
		}

		return errors.Trace(tx.Commit())
	})
}

// StdTxn executes the input function against the tracked database,
// within a transaction that depends on the input context.
// Retry semantics are applied automatically based on transient failures.
func (t *RetryingTxnRunner) StdTxn(ctx context.Context, db *sql.DB, fn func(context.Context, *sql.Tx) error) error {
	return t.run(ctx, func(ctx context.Context) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return errors.Trace(err)
		}

		if err := fn(ctx, tx); err != nil {
			if rErr := tx.Rollback(); rErr != nil {
				t.logger.Warningf(ctx, "failed to rollback transaction: %v", rErr)
			}
			return errors.Trace(err)
		}

		return errors.Trace(tx.Commit())
	})
}

// Retry defines a generic retry function for applying a function that
// interacts with the database, using the runner's retry strategy.
func (t *RetryingTxnRunner) Retry(ctx context.Context, fn func() error) error {
	return t.retryStrategy(ctx, fn)
}

// run applies the function with the configured timeout, under the retry
// strategy. If the context is cancelled before the transaction begins,
// nothing is run.
func (t *RetryingTxnRunner) run(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	return t.retryStrategy(ctx, func() error {
		if err := ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		return fn(ctx)
	})
}

// defaultRetryStrategy returns a retry strategy that retries transient
// database errors with a doubling backoff.
func defaultRetryStrategy(clk clock.Clock, log logger.Logger) RetryStrategy {
	return func(ctx context.Context, fn func() error) error {
		err := retry.Call(retry.CallArgs{
			Func: fn,
			IsFatalError: func(err error) bool {
				// No point in continuing if the context is done; the
				// retry loop also watches Stop, this just avoids one
				// wasted attempt.
				if ctx.Err() != nil {
					return true
				}
				return !IsErrRetryable(err)
			},
			NotifyFunc: func(lastError error, attempt int) {
				if attempt > 0 && attempt%10 == 0 {
					log.Warningf(ctx, "retrying transaction (attempt %d): %v", attempt, lastError)
				}
			},
			Attempts:    250,
			Delay:       time.Millisecond,
			MaxDelay:    time.Millisecond * 100,
			BackoffFunc: retry.DoubleDelay,
			Clock:       clk,
			Stop:        ctx.Done(),
		})
		return errors.Trace(err)
	}
}

type noopLogger struct{}

func (noopLogger) Criticalf(context.Context, string, ...any) {}
func (noopLogger) Errorf(context.Context, string, ...any)    {}
func (noopLogger) Warningf(context.Context, string, ...any)  {}
func (noopLogger) Infof(context.Context, string, ...any)     {}
func (noopLogger) Debugf(context.Context, string, ...any)    {}
func (noopLogger) Tracef(context.Context, string, ...any)    {}

func (noopLogger) IsLevelEnabled(logger.Level) bool { return false }

func (l noopLogger) Child(string, ...string) logger.Logger { return l }
