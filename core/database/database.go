// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package database

import (
	"context"
	"database/sql"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"
)

// TxnRunner defines an interface for running transactions against the
// metadata database.
type TxnRunner interface {
	// Txn manages the application of a SQLair transaction within which the
	// input function is executed. See https://github.com/canonical/sqlair.
	// The input context can be used by the caller to cancel this process.
	Txn(context.Context, func(context.Context, *sqlair.TX) error) error

	// StdTxn manages the application of a standard library transaction
	// within which the input function is executed.
	// Retry semantics are applied automatically based on transient failures.
	// The input context can be used by the caller to cancel this process.
	StdTxn(context.Context, func(context.Context, *sql.Tx) error) error
}

// TxnRunnerFactory aliases a function that returns a database.TxnRunner
// or an error.
type TxnRunnerFactory = func() (TxnRunner, error)

// NewTxnRunnerFactoryForRunner returns a TxnRunnerFactory
// for the input TxnRunner.
// This is useful in tests and simple composition where the runner is
// already constructed and does not change over time.
func NewTxnRunnerFactoryForRunner(runner TxnRunner) TxnRunnerFactory {
	return func() (TxnRunner, error) {
		return runner, nil
	}
}

// NoopTxnRunner returns a TxnRunner that fails every operation with an
// error satisfying [errors.NotSupported]. It stands in for a database
// that is not available.
func NoopTxnRunner() TxnRunner {
	return noopTxnRunner{}
}

type noopTxnRunner struct{}

// Txn is part of the TxnRunner interface.
func (noopTxnRunner) Txn(context.Context, func(context.Context, *sqlair.TX) error) error {
	return errors.NotSupportedf("database access")
}

// StdTxn is part of the TxnRunner interface.
func (noopTxnRunner) StdTxn(context.Context, func(context.Context, *sql.Tx) error) error {
	return errors.NotSupportedf("database access")
}
