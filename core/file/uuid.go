// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package file

import (
	"github.com/juju/errors"
	"github.com/juju/utils/v4"
)

// UUID represents a file unique identifier. It is opaque to callers and
// collision resistant; files keep the same UUID across renames, moves
// and soft deletion.
type UUID string

// NewUUID is a convenience function for generating a new file uuid.
func NewUUID() (UUID, error) {
	uuid, err := utils.NewUUID()
	if err != nil {
		return UUID(""), err
	}
	return UUID(uuid.String()), nil
}

// Validate ensures the consistency of the UUID.
func (u UUID) Validate() error {
	if u == "" {
		return errors.NotValidf("empty file uuid")
	}
	if !utils.IsValidUUIDString(string(u)) {
		return errors.NotValidf("file uuid %q", u)
	}
	return nil
}

// String implements the stringer interface for UUID.
func (u UUID) String() string {
	return string(u)
}
