// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package domain

import (
	"sync"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"

	coredatabase "github.com/canonical/filevault/core/database"
)

// StateBase defines a base struct for requesting a database. This will cache
// the database for the lifetime of the struct.
type StateBase struct {
	dbMutex sync.RWMutex
	getDB   coredatabase.TxnRunnerFactory
	db      coredatabase.TxnRunner

	// statements is a cache of sqlair statements keyed on the query string.
	statementMutex sync.RWMutex
	statements     map[string]*sqlair.Statement
}

// NewStateBase returns a new StateBase.
func NewStateBase(getDB coredatabase.TxnRunnerFactory) *StateBase {
	return &StateBase{
		getDB:      getDB,
		statements: make(map[string]*sqlair.Statement),
	}
}

// DB returns the database for a given state base.
func (st *StateBase) DB() (coredatabase.TxnRunner, error) {
	st.dbMutex.RLock()
	if st.db != nil {
		defer st.dbMutex.RUnlock()
		return st.db, nil
	}
	st.dbMutex.RUnlock()

	st.dbMutex.Lock()
	defer st.dbMutex.Unlock()
	if st.getDB == nil {
		return nil, errors.New("nil getDB")
	}
	var err error
	if st.db, err = st.getDB(); err != nil {
		return nil, errors.Annotate(err, "invoking getDB")
	}
	return st.db, nil
}

// Prepare prepares the given query and caches the result. Statement
// preparation only needs to be performed once per query; the prepared
// statement is reused for the lifetime of the state.
func (st *StateBase) Prepare(query string, typeSamples ...any) (*sqlair.Statement, error) {
	st.statementMutex.RLock()
	if stmt, ok := st.statements[query]; ok {
		st.statementMutex.RUnlock()
		return stmt, nil
	}
	st.statementMutex.RUnlock()

	st.statementMutex.Lock()
	defer st.statementMutex.Unlock()
	stmt, err := sqlair.Prepare(query, typeSamples...)
	if err != nil {
		return nil, errors.Annotate(err, "preparing statement")
	}
	st.statements[query] = stmt
	return stmt, nil
}
