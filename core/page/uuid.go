// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package page

import (
	"github.com/juju/errors"
	"github.com/juju/utils/v4"
)

// UUID represents a page unique identifier. A page is the container that
// file attachments belong to, and the scope within which live file names
// must be unique.
type UUID string

// NewUUID is a convenience function for generating a new page uuid.
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
		return errors.NotValidf("empty page uuid")
	}
	if !utils.IsValidUUIDString(string(u)) {
		return errors.NotValidf("page uuid %q", u)
	}
	return nil
}

// String implements the stringer interface for UUID.
func (u UUID) String() string {
	return string(u)
}
