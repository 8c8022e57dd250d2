// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package file

import (
	"time"

	"github.com/canonical/filevault/core/blob"
	corefile "github.com/canonical/filevault/core/file"
	"github.com/canonical/filevault/core/page"
	"github.com/canonical/filevault/core/user"
)

// CreateFileParams holds everything required to persist a new file and
// its first revision. It is the resolved form of [CreateFileArgs]: the
// content has been stored and the timestamp assigned.
type CreateFileParams struct {
	UUID      corefile.UUID
	PageUUID  page.UUID
	UserUUID  user.UUID
	Name      string
	Blob      blob.Metadata
	Licensing string
	Comment   string
	CreatedAt time.Time
}

// UpdateFileParams holds the changes to apply when appending an update
// revision. Unset fields carry forward from the latest revision.
type UpdateFileParams struct {
	UserUUID  user.UUID
	Comment   string
	Name      Optional[string]
	Blob      Optional[blob.Metadata]
	Licensing Optional[string]
	CreatedAt time.Time
}

// MoveFileParams holds the target location for a move revision.
type MoveFileParams struct {
	UserUUID            user.UUID
	Comment             string
	DestinationPageUUID page.UUID
	Name                Optional[string]
	CreatedAt           time.Time
}

// DeleteFileParams annotates a soft delete.
type DeleteFileParams struct {
	UserUUID  user.UUID
	Comment   string
	CreatedAt time.Time
}

// RestoreFileParams annotates a restore.
type RestoreFileParams struct {
	UserUUID  user.UUID
	Comment   string
	CreatedAt time.Time
}

// HardDeleteAllParams identifies the actor and audit record for a
// permanent purge.
type HardDeleteAllParams struct {
	AuditUUID string
	UserUUID  user.UUID
	CreatedAt time.Time
}

// HardDeleteAllResult reports what a purge removed. RemovedDigests
// lists only the digests whose reference count reached zero; physical
// content removal for those is the caller's responsibility.
type HardDeleteAllResult struct {
	TargetDigest   blob.Digest
	PurgedFiles    []corefile.UUID
	RemovedDigests []blob.Digest
}
