// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package user

import (
	"github.com/juju/errors"
	"github.com/juju/utils/v4"
)

// UUID represents the unique identifier of the user performing an
// operation. User management itself lives outside this module; revisions
// and audit records only carry the acting user's identifier.
type UUID string

// NewUUID is a convenience function for generating a new user uuid.
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
		return errors.NotValidf("empty user uuid")
	}
	if !utils.IsValidUUIDString(string(u)) {
		return errors.NotValidf("user uuid %q", u)
	}
	return nil
}

// String implements the stringer interface for UUID.
func (u UUID) String() string {
	return string(u)
}
