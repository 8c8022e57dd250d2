// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package service

import (
	"context"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"

	"github.com/canonical/filevault/core/blob"
	corefile "github.com/canonical/filevault/core/file"
	"github.com/canonical/filevault/core/page"
	"github.com/canonical/filevault/core/user"
	domainfile "github.com/canonical/filevault/domain/file"
	fileerrors "github.com/canonical/filevault/domain/file/errors"
)

// Create stores the given content and creates a new file in the given
// page, with the content recorded as revision number one. The content
// is stored before the metadata transaction opens, so a failed create
// leaves at worst an unreferenced blob on disk. It returns the first
// revision, and an error satisfying [fileerrors.MissingContent] if no
// content was supplied, [fileerrors.PageNotFound] if the page does not
// exist, and [fileerrors.NameConflict] if a live file with the same
// name exists in the page.
func (s *Service) Create(ctx context.Context, pageUUID page.UUID, args domainfile.CreateFileArgs, data []byte) (domainfile.Revision, error) {
	if err := pageUUID.Validate(); err != nil {
		return domainfile.Revision{}, errors.Trace(err)
	}
	if err := args.UserUUID.Validate(); err != nil {
		return domainfile.Revision{}, errors.Trace(err)
	}
	if args.Name == "" {
		return domainfile.Revision{}, errors.NotValidf("empty file name")
	}
	if len(data) == 0 {
		return domainfile.Revision{}, errors.Annotatef(fileerrors.MissingContent, "creating file %q", args.Name)
	}

	// The index inside the create transaction is authoritative; this
	// probe only rejects the common conflict before paying for a blob
	// write.
	if err := s.st.CheckNameAvailable(ctx, pageUUID, args.Name); err != nil {
		return domainfile.Revision{}, errors.Trace(err)
	}

	meta, err := s.blobStore.Put(ctx, data)
	if err != nil {
		return domainfile.Revision{}, errors.Annotate(err, "storing content")
	}

	uuid, err := corefile.NewUUID()
	if err != nil {
		return domainfile.Revision{}, errors.Trace(err)
	}

	revision, err := s.st.CreateFile(ctx, domainfile.CreateFileParams{
		UUID:      uuid,
		PageUUID:  pageUUID,
		UserUUID:  args.UserUUID,
		Name:      args.Name,
		Blob:      meta,
		Licensing: args.Licensing,
		Comment:   args.Comment,
		CreatedAt: s.clock.Now().UTC(),
	})
	if err != nil {
		return domainfile.Revision{}, errors.Trace(err)
	}

	s.logger.Infof(ctx, "created file %q (%s) in page %q", args.Name, uuid, pageUUID)
	return revision, nil
}

// Update merges the given changes over the file's latest revision and
// appends the result as a new revision. Unset fields carry forward.
// It returns the appended revision, or nil when no field was set and
// nothing was written. It returns an error satisfying
// [fileerrors.FileNotFound] if the file does not exist or is deleted,
// [fileerrors.MissingContent] if content was set but empty, and
// [fileerrors.NameConflict] if a rename collides with a live file.
func (s *Service) Update(ctx context.Context, uuid corefile.UUID, args domainfile.UpdateFileArgs) (*domainfile.Revision, error) {
	if err := uuid.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if err := args.UserUUID.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if name, ok := args.Name.Value(); ok && name == "" {
		return nil, errors.NotValidf("empty file name")
	}

	var newBlob domainfile.Optional[blob.Metadata]
	if data, ok := args.Data.Value(); ok {
		if len(data) == 0 {
			return nil, errors.Annotatef(fileerrors.MissingContent, "updating file %q", uuid)
		}
		meta, err := s.blobStore.Put(ctx, data)
		if err != nil {
			return nil, errors.Annotate(err, "storing content")
		}
		newBlob = domainfile.Set(meta)
	}

	revision, err := s.st.UpdateFile(ctx, uuid, domainfile.UpdateFileParams{
		UserUUID:  args.UserUUID,
		Comment:   args.Comment,
		Name:      args.Name,
		Blob:      newBlob,
		Licensing: args.Licensing,
		CreatedAt: s.clock.Now().UTC(),
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if revision == nil {
		s.logger.Debugf(ctx, "update of file %q changed nothing", uuid)
		return nil, nil
	}

	s.logger.Infof(ctx, "updated file %q at revision %d", uuid, revision.Number)
	return revision, nil
}

// Move relocates the file to another page in the same site, optionally
// renaming it. It returns the appended move revision, or nil when the
// destination and name already match and nothing was written. It
// returns an error satisfying [fileerrors.FileNotFound] if the file
// does not exist or is deleted, [fileerrors.PageNotFound] if the
// destination page does not exist or is in another site, and
// [fileerrors.NameConflict] if the name collides in the destination.
func (s *Service) Move(ctx context.Context, uuid corefile.UUID, args domainfile.MoveFileArgs) (*domainfile.Revision, error) {
	if err := uuid.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if err := args.UserUUID.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if err := args.DestinationPageUUID.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if name, ok := args.Name.Value(); ok && name == "" {
		return nil, errors.NotValidf("empty file name")
	}

	revision, err := s.st.MoveFile(ctx, uuid, domainfile.MoveFileParams{
		UserUUID:            args.UserUUID,
		Comment:             args.Comment,
		DestinationPageUUID: args.DestinationPageUUID,
		Name:                args.Name,
		CreatedAt:           s.clock.Now().UTC(),
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if revision == nil {
		s.logger.Debugf(ctx, "move of file %q changed nothing", uuid)
		return nil, nil
	}

	s.logger.Infof(ctx, "moved file %q to page %q as %q", uuid, revision.PageUUID, revision.Name)
	return revision, nil
}

// Delete soft deletes the file, releasing its name for reuse in the
// page while keeping the revision chain and content intact. It returns
// the file as it stands after deletion, and an error satisfying
// [fileerrors.FileNotFound] if the file does not exist or is already
// deleted.
func (s *Service) Delete(ctx context.Context, uuid corefile.UUID, args domainfile.DeleteFileArgs) (domainfile.File, error) {
	if err := uuid.Validate(); err != nil {
		return domainfile.File{}, errors.Trace(err)
	}
	if err := args.UserUUID.Validate(); err != nil {
		return domainfile.File{}, errors.Trace(err)
	}

	file, err := s.st.DeleteFile(ctx, uuid, domainfile.DeleteFileParams{
		UserUUID:  args.UserUUID,
		Comment:   args.Comment,
		CreatedAt: s.clock.Now().UTC(),
	})
	if err != nil {
		return domainfile.File{}, errors.Trace(err)
	}

	s.logger.Infof(ctx, "deleted file %q in page %q", uuid, file.PageUUID)
	return file, nil
}

// Restore reverses a soft delete, bringing the file back to life in
// its current page under its current name. It returns an error
// satisfying [fileerrors.FileNotFound] if the file does not exist,
// [fileerrors.FileNotDeleted] if it is not deleted, and
// [fileerrors.NameConflict] if the name has since been claimed by a
// live file in the page.
func (s *Service) Restore(ctx context.Context, uuid corefile.UUID, args domainfile.RestoreFileArgs) (domainfile.File, error) {
	if err := uuid.Validate(); err != nil {
		return domainfile.File{}, errors.Trace(err)
	}
	if err := args.UserUUID.Validate(); err != nil {
		return domainfile.File{}, errors.Trace(err)
	}

	file, err := s.st.RestoreFile(ctx, uuid, domainfile.RestoreFileParams{
		UserUUID:  args.UserUUID,
		Comment:   args.Comment,
		CreatedAt: s.clock.Now().UTC(),
	})
	if err != nil {
		return domainfile.File{}, errors.Trace(err)
	}

	s.logger.Infof(ctx, "restored file %q in page %q", uuid, file.PageUUID)
	return file, nil
}

// HardDeleteAll permanently purges the file's current content and
// every file whose revision chain references it: metadata rows are
// removed atomically with an audit record, then physical content whose
// reference count reached zero is removed from the blob store. It
// returns an error satisfying [fileerrors.PermissionDenied] if the
// user may not purge content, [fileerrors.FileNotFound] if the file
// does not exist, and [fileerrors.MissingContent] if its latest
// revision carries no digest.
func (s *Service) HardDeleteAll(ctx context.Context, uuid corefile.UUID, actor user.UUID) error {
	if err := uuid.Validate(); err != nil {
		return errors.Trace(err)
	}
	if err := actor.Validate(); err != nil {
		return errors.Trace(err)
	}
	if err := s.authorizer.CanHardDelete(ctx, actor); err != nil {
		return errors.Trace(err)
	}

	auditUUID, err := utils.NewUUID()
	if err != nil {
		return errors.Trace(err)
	}

	result, err := s.st.HardDeleteAll(ctx, uuid, domainfile.HardDeleteAllParams{
		AuditUUID: auditUUID.String(),
		UserUUID:  actor,
		CreatedAt: s.clock.Now().UTC(),
	})
	if err != nil {
		return errors.Trace(err)
	}

	s.logger.Infof(ctx, "hard deleted content %q: %d file(s) purged, %d blob(s) released",
		result.TargetDigest, len(result.PurgedFiles), len(result.RemovedDigests))

	// The metadata transaction has committed; a failed physical removal
	// leaves an unreferenced blob on disk, which a later purge of the
	// same digest will remove.
	for _, digest := range result.RemovedDigests {
		if err := s.blobStore.HardDelete(ctx, digest); err != nil {
			s.logger.Warningf(ctx, "removing content %q: %v", digest, err)
		}
	}
	return nil
}
