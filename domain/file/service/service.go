// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package service implements the file vault operations: content
// addressed attachment storage with an append-only revision history
// per file, soft deletion and privileged purging.
package service

import (
	"context"
	"io"

	"github.com/juju/clock"
	"github.com/juju/errors"

	"github.com/canonical/filevault/core/blob"
	corefile "github.com/canonical/filevault/core/file"
	"github.com/canonical/filevault/core/logger"
	"github.com/canonical/filevault/core/page"
	"github.com/canonical/filevault/core/user"
	domainfile "github.com/canonical/filevault/domain/file"
	fileerrors "github.com/canonical/filevault/domain/file/errors"
)

// State describes the persistence methods required by the service.
// Every mutating method is a single atomic unit.
type State interface {
	// CreateFile inserts a new file with its first revision.
	CreateFile(ctx context.Context, params domainfile.CreateFileParams) (domainfile.Revision, error)

	// UpdateFile appends an update revision merged over the latest one.
	UpdateFile(ctx context.Context, uuid corefile.UUID, params domainfile.UpdateFileParams) (*domainfile.Revision, error)

	// MoveFile relocates a file and appends a move revision.
	MoveFile(ctx context.Context, uuid corefile.UUID, params domainfile.MoveFileParams) (*domainfile.Revision, error)

	// DeleteFile soft deletes a file and appends a tombstone revision.
	DeleteFile(ctx context.Context, uuid corefile.UUID, params domainfile.DeleteFileParams) (domainfile.File, error)

	// RestoreFile reverses a soft delete and appends a restore revision.
	RestoreFile(ctx context.Context, uuid corefile.UUID, params domainfile.RestoreFileParams) (domainfile.File, error)

	// HardDeleteAll purges every file sharing the target's current
	// content.
	HardDeleteAll(ctx context.Context, uuid corefile.UUID, params domainfile.HardDeleteAllParams) (domainfile.HardDeleteAllResult, error)

	// GetFile returns a file scoped to a page, deleted or not.
	GetFile(ctx context.Context, pageUUID page.UUID, uuid corefile.UUID) (domainfile.File, error)

	// GetFileDirect returns a file by uuid alone.
	GetFileDirect(ctx context.Context, uuid corefile.UUID) (domainfile.File, error)

	// GetLatestRevision returns the newest revision of a page's file.
	GetLatestRevision(ctx context.Context, pageUUID page.UUID, uuid corefile.UUID) (domainfile.Revision, error)

	// ListRevisions returns a file's full chain, oldest first.
	ListRevisions(ctx context.Context, uuid corefile.UUID) ([]domainfile.Revision, error)

	// GetBlob returns a blob record with its reference count.
	GetBlob(ctx context.Context, digest blob.Digest) (blob.Blob, error)

	// CheckNameAvailable probes for a live name conflict in a page.
	CheckNameAvailable(ctx context.Context, pageUUID page.UUID, name string) error

	// ListAudit returns a file's audit records, newest first.
	ListAudit(ctx context.Context, uuid corefile.UUID) ([]domainfile.Audit, error)
}

// BlobStore describes the content addressed store holding the physical
// bytes.
type BlobStore interface {
	// Put stores bytes and returns their content metadata.
	Put(ctx context.Context, data []byte) (blob.Metadata, error)

	// Open returns a reader over stored bytes.
	Open(ctx context.Context, digest blob.Digest) (io.ReadCloser, error)

	// HardDelete removes stored bytes, tolerating absence.
	HardDelete(ctx context.Context, digest blob.Digest) error
}

// Authorizer decides whether a user may perform privileged operations.
type Authorizer interface {
	// CanHardDelete returns an error satisfying
	// [fileerrors.PermissionDenied] if the user may not purge content.
	CanHardDelete(ctx context.Context, userUUID user.UUID) error
}

// Service provides the file vault API.
type Service struct {
	st         State
	blobStore  BlobStore
	authorizer Authorizer
	clock      clock.Clock
	logger     logger.Logger
}

// NewService returns a new file vault service.
func NewService(
	st State,
	blobStore BlobStore,
	authorizer Authorizer,
	clock clock.Clock,
	logger logger.Logger,
) *Service {
	return &Service{
		st:         st,
		blobStore:  blobStore,
		authorizer: authorizer,
		clock:      clock,
		logger:     logger,
	}
}

// GetFile returns the file with the given uuid in the given page.
// Soft deleted files are not visible through page scoped lookups. It
// returns an error satisfying [fileerrors.FileNotFound] if no live
// file matches.
func (s *Service) GetFile(ctx context.Context, pageUUID page.UUID, uuid corefile.UUID) (domainfile.File, error) {
	if err := pageUUID.Validate(); err != nil {
		return domainfile.File{}, errors.Trace(err)
	}
	if err := uuid.Validate(); err != nil {
		return domainfile.File{}, errors.Trace(err)
	}

	file, err := s.st.GetFile(ctx, pageUUID, uuid)
	if err != nil {
		return domainfile.File{}, errors.Trace(err)
	}
	if file.Deleted() {
		return domainfile.File{}, errors.Annotatef(fileerrors.FileNotFound, "file %q in page %q", uuid, pageUUID)
	}
	return file, nil
}

// GetFileOptional is GetFile returning nil instead of an error when no
// live file matches.
func (s *Service) GetFileOptional(ctx context.Context, pageUUID page.UUID, uuid corefile.UUID) (*domainfile.File, error) {
	file, err := s.GetFile(ctx, pageUUID, uuid)
	if errors.Is(err, fileerrors.FileNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	return &file, nil
}

// FileExists reports whether a live file with the given uuid exists in
// the given page.
func (s *Service) FileExists(ctx context.Context, pageUUID page.UUID, uuid corefile.UUID) (bool, error) {
	file, err := s.GetFileOptional(ctx, pageUUID, uuid)
	if err != nil {
		return false, errors.Trace(err)
	}
	return file != nil, nil
}

// GetFileDirect returns the file with the given uuid regardless of
// page and deletion state. It returns an error satisfying
// [fileerrors.FileNotFound] if the file does not exist.
func (s *Service) GetFileDirect(ctx context.Context, uuid corefile.UUID) (domainfile.File, error) {
	if err := uuid.Validate(); err != nil {
		return domainfile.File{}, errors.Trace(err)
	}
	file, err := s.st.GetFileDirect(ctx, uuid)
	if err != nil {
		return domainfile.File{}, errors.Trace(err)
	}
	return file, nil
}

// GetFileDirectOptional is GetFileDirect returning nil instead of an
// error when the file does not exist.
func (s *Service) GetFileDirectOptional(ctx context.Context, uuid corefile.UUID) (*domainfile.File, error) {
	file, err := s.GetFileDirect(ctx, uuid)
	if errors.Is(err, fileerrors.FileNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	return &file, nil
}

// FileExistsDirect reports whether a file with the given uuid exists,
// deleted or not.
func (s *Service) FileExistsDirect(ctx context.Context, uuid corefile.UUID) (bool, error) {
	file, err := s.GetFileDirectOptional(ctx, uuid)
	if err != nil {
		return false, errors.Trace(err)
	}
	return file != nil, nil
}

// GetLatestRevision returns the newest revision of the file with the
// given uuid in the given page. It returns an error satisfying
// [fileerrors.FileNotFound] if no live file matches.
func (s *Service) GetLatestRevision(ctx context.Context, pageUUID page.UUID, uuid corefile.UUID) (domainfile.Revision, error) {
	if _, err := s.GetFile(ctx, pageUUID, uuid); err != nil {
		return domainfile.Revision{}, errors.Trace(err)
	}
	revision, err := s.st.GetLatestRevision(ctx, pageUUID, uuid)
	if err != nil {
		return domainfile.Revision{}, errors.Trace(err)
	}
	return revision, nil
}

// ListRevisions returns the full revision chain of the file with the
// given uuid, oldest first, deleted or not. It returns an error
// satisfying [fileerrors.FileNotFound] if the file does not exist.
func (s *Service) ListRevisions(ctx context.Context, uuid corefile.UUID) ([]domainfile.Revision, error) {
	if err := uuid.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	revisions, err := s.st.ListRevisions(ctx, uuid)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return revisions, nil
}

// GetBlob returns the blob record for the given digest, including its
// reference count. It returns an error satisfying
// [fileerrors.BlobNotFound] if no revision references the digest.
func (s *Service) GetBlob(ctx context.Context, digest blob.Digest) (blob.Blob, error) {
	if err := digest.Validate(); err != nil {
		return blob.Blob{}, errors.Trace(err)
	}
	b, err := s.st.GetBlob(ctx, digest)
	if err != nil {
		return blob.Blob{}, errors.Trace(err)
	}
	return b, nil
}

// OpenBlob returns a reader over the physical content for the given
// digest. The digest must be referenced by at least one revision.
func (s *Service) OpenBlob(ctx context.Context, digest blob.Digest) (io.ReadCloser, error) {
	if _, err := s.GetBlob(ctx, digest); err != nil {
		return nil, errors.Trace(err)
	}
	reader, err := s.blobStore.Open(ctx, digest)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return reader, nil
}

// ListAudit returns the audit records for the given file, newest
// first. Audit records outlive the files they describe.
func (s *Service) ListAudit(ctx context.Context, uuid corefile.UUID) ([]domainfile.Audit, error) {
	if err := uuid.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	records, err := s.st.ListAudit(ctx, uuid)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return records, nil
}
