// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package txn_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"
	"github.com/juju/tc"
	"github.com/mattn/go-sqlite3"

	databasetesting "github.com/canonical/filevault/internal/database/testing"
	"github.com/canonical/filevault/internal/database/txn"
)

type transactionRunnerSuite struct {
	databasetesting.SqliteSuite
}

func TestTransactionRunnerSuite(t *testing.T) {
	tc.Run(t, &transactionRunnerSuite{})
}

func (s *transactionRunnerSuite) TestStdTxn(c *tc.C) {
	runner := txn.NewRetryingTxnRunner()

	err := runner.StdTxn(c.Context(), s.DB(), func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, "SELECT 1")
		if err != nil {
			return errors.Trace(err)
		}
		defer rows.Close()
		return nil
	})
	c.Assert(err, tc.ErrorIsNil)
}

func (s *transactionRunnerSuite) TestTxn(c *tc.C) {
	runner := txn.NewRetryingTxnRunner()

	db := sqlair.NewDB(s.DB())
	err := runner.Txn(c.Context(), db, func(ctx context.Context, tx *sqlair.TX) error {
		return nil
	})
	c.Assert(err, tc.ErrorIsNil)
}

func (s *transactionRunnerSuite) TestTxnRollsBackOnError(c *tc.C) {
	runner := txn.NewRetryingTxnRunner()

	_, err := s.DB().ExecContext(c.Context(), "CREATE TABLE t (v TEXT)")
	c.Assert(err, tc.ErrorIsNil)

	boom := errors.New("boom")
	err = runner.StdTxn(c.Context(), s.DB(), func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO t VALUES ('orphan')"); err != nil {
			return errors.Trace(err)
		}
		return boom
	})
	c.Assert(err, tc.ErrorIs, boom)

	var count int
	row := s.DB().QueryRowContext(c.Context(), "SELECT COUNT(*) FROM t")
	c.Assert(row.Scan(&count), tc.ErrorIsNil)
	c.Check(count, tc.Equals, 0)
}

func (s *transactionRunnerSuite) TestTxnWithCancelledContext(c *tc.C) {
	ctx, cancel := context.WithCancel(c.Context())
	cancel()

	runner := txn.NewRetryingTxnRunner()

	err := runner.StdTxn(ctx, s.DB(), func(ctx context.Context, tx *sql.Tx) error {
		c.Fatal("should not be called")
		return nil
	})
	c.Assert(err, tc.ErrorMatches, "context canceled")
}

func (s *transactionRunnerSuite) TestRetriesTransientErrors(c *tc.C) {
	runner := txn.NewRetryingTxnRunner()

	var attempts int
	err := runner.Retry(c.Context(), func() error {
		attempts++
		if attempts < 3 {
			return sqlite3.Error{Code: sqlite3.ErrBusy}
		}
		return nil
	})
	c.Assert(err, tc.ErrorIsNil)
	c.Check(attempts, tc.Equals, 3)
}

func (s *transactionRunnerSuite) TestDoesNotRetryFatalErrors(c *tc.C) {
	runner := txn.NewRetryingTxnRunner()

	boom := errors.New("boom")
	var attempts int
	err := runner.Retry(c.Context(), func() error {
		attempts++
		return boom
	})
	c.Assert(err, tc.ErrorIs, boom)
	c.Check(attempts, tc.Equals, 1)
}
