// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package database

import (
	"context"
	"database/sql"

	"github.com/canonical/sqlair"

	coredatabase "github.com/canonical/filevault/core/database"
	"github.com/canonical/filevault/internal/database/txn"
)

// NewTxnRunner returns a TxnRunner for the given database handle.
// All transactions are run through a retrying runner, so transient
// database contention is absorbed here rather than by callers.
func NewTxnRunner(db *sql.DB, opts ...txn.Option) coredatabase.TxnRunner {
	return &txnRunner{
		db:     sqlair.NewDB(db),
		runner: txn.NewRetryingTxnRunner(opts...),
	}
}

type txnRunner struct {
	db     *sqlair.DB
	runner *txn.RetryingTxnRunner
}

// Txn is part of the coredatabase.TxnRunner interface.
func (r *txnRunner) Txn(ctx context.Context, fn func(context.Context, *sqlair.TX) error) error {
	return r.runner.Txn(ctx, r.db, fn)
}

// StdTxn is part of the coredatabase.TxnRunner interface.
func (r *txnRunner) StdTxn(ctx context.Context, fn func(context.Context, *sql.Tx) error) error {
	return r.runner.StdTxn(ctx, r.db.PlainDB(), fn)
}
