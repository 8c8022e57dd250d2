// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package errors

import (
	"github.com/juju/errors"
)

const (
	// FileNotFound describes an error that occurs when the file being
	// operated on does not exist, is not visible in the requested page,
	// or has been soft deleted where only live files are addressable.
	FileNotFound = errors.ConstError("file not found")

	// RevisionNotFound describes an error that occurs when a file has no
	// revision chain visible for the requested scope.
	RevisionNotFound = errors.ConstError("file revision not found")

	// PageNotFound describes an error that occurs when the page a file
	// is being created in or moved to does not exist, or belongs to a
	// different site than the file.
	PageNotFound = errors.ConstError("page not found")

	// BlobNotFound describes an error that occurs when no blob record
	// exists for the requested digest.
	BlobNotFound = errors.ConstError("blob not found")

	// NameConflict describes an error that occurs when a live file with
	// the requested name already exists in the target page.
	NameConflict = errors.ConstError("file name already exists in page")

	// FileNotDeleted describes an error that occurs when restoring a
	// file whose latest revision is not a tombstone.
	FileNotDeleted = errors.ConstError("file is not deleted")

	// MissingContent describes an error that occurs when creating a file
	// without any content bytes. New files must have content; metadata
	// only records are appended to existing chains.
	MissingContent = errors.ConstError("file content required")

	// PermissionDenied describes an error that occurs when the acting
	// user is not authorized for a privileged operation.
	PermissionDenied = errors.ConstError("permission denied")
)
