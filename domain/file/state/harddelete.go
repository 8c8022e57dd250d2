// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"context"
	"fmt"

	"github.com/canonical/sqlair"
	"github.com/juju/collections/transform"
	"github.com/juju/errors"

	"github.com/canonical/filevault/core/blob"
	corefile "github.com/canonical/filevault/core/file"
	domainfile "github.com/canonical/filevault/domain/file"
	fileerrors "github.com/canonical/filevault/domain/file/errors"
)

// HardDeleteAll permanently purges every file whose revision chain
// references the target file's current digest, in one transaction:
// revision rows and file rows are deleted, every digest those chains
// referenced has its reference count decremented by the number of
// deleted references, blob rows reaching zero are removed, and an
// audit record is written. It returns an error satisfying
// [fileerrors.FileNotFound] if the target file does not exist, and
// [fileerrors.MissingContent] if its latest revision carries no
// digest.
func (s *State) HardDeleteAll(ctx context.Context, uuid corefile.UUID, params domainfile.HardDeleteAllParams) (domainfile.HardDeleteAllResult, error) {
	db, err := s.DB()
	if err != nil {
		return domainfile.HardDeleteAllResult{}, errors.Trace(err)
	}

	var result domainfile.HardDeleteAllResult
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		if _, err := s.getFileTx(ctx, tx, uuid); err != nil {
			return errors.Trace(err)
		}
		latest, err := s.latestRevisionTx(ctx, tx, uuid)
		if err != nil {
			return errors.Trace(err)
		}
		if !latest.BlobDigest.Valid {
			return errors.Annotatef(fileerrors.MissingContent,
				"file %q latest revision has no content", uuid)
		}
		target := blob.Digest(latest.BlobDigest.String)

		affected, err := s.filesReferencingTx(ctx, tx, target)
		if err != nil {
			return errors.Trace(err)
		}

		released, err := s.releaseBlobReferencesTx(ctx, tx, affected)
		if err != nil {
			return errors.Trace(err)
		}
		if err := s.purgeFilesTx(ctx, tx, affected); err != nil {
			return errors.Trace(err)
		}
		removed, err := s.reapDeadBlobsTx(ctx, tx, released)
		if err != nil {
			return errors.Trace(err)
		}

		audit := dbAudit{
			UUID:       params.AuditUUID,
			Operation:  "hard-delete-all",
			FileUUID:   uuid.String(),
			BlobDigest: latest.BlobDigest,
			UserUUID:   params.UserUUID.String(),
			Detail: fmt.Sprintf("purged %d file(s), removed %d blob(s)",
				len(affected), len(removed)),
			CreatedAt: params.CreatedAt,
		}
		if err := s.insertAuditTx(ctx, tx, audit); err != nil {
			return errors.Trace(err)
		}

		result = domainfile.HardDeleteAllResult{
			TargetDigest:   target,
			PurgedFiles:    transform.Slice(affected, func(s string) corefile.UUID { return corefile.UUID(s) }),
			RemovedDigests: removed,
		}
		return nil
	})
	if err != nil {
		return domainfile.HardDeleteAllResult{}, errors.Trace(err)
	}
	return result, nil
}

// ListAudit returns the audit records for the given file, newest first.
func (s *State) ListAudit(ctx context.Context, uuid corefile.UUID) ([]domainfile.Audit, error) {
	db, err := s.DB()
	if err != nil {
		return nil, errors.Trace(err)
	}

	args := dbFileUUID{UUID: uuid.String()}
	stmt, err := s.Prepare(`
SELECT &dbAudit.*
FROM file_audit
WHERE file_uuid = $dbFileUUID.uuid
ORDER BY created_at DESC`, dbAudit{}, args)
	if err != nil {
		return nil, errors.Annotate(err, "preparing list audit statement")
	}

	var rows []dbAudit
	err = db.Txn(ctx, func(ctx context.Context, tx *sqlair.TX) error {
		if err := tx.Query(ctx, stmt, args).GetAll(&rows); err != nil && !errors.Is(err, sqlair.ErrNoRows) {
			return errors.Annotatef(err, "listing audit records for file %q", uuid)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return transform.Slice(rows, dbAudit.toDomain), nil
}

// filesReferencingTx collects the uuid of every file whose revision
// chain references the given digest.
func (s *State) filesReferencingTx(ctx context.Context, tx *sqlair.TX, digest blob.Digest) ([]string, error) {
	args := dbDigest{Digest: digest.String()}
	stmt, err := s.Prepare(`
SELECT DISTINCT file_uuid AS &dbFileUUID.uuid
FROM file_revision
WHERE blob_digest = $dbDigest.digest`, dbFileUUID{}, args)
	if err != nil {
		return nil, errors.Annotate(err, "preparing referencing files statement")
	}

	var rows []dbFileUUID
	if err := tx.Query(ctx, stmt, args).GetAll(&rows); err != nil && !errors.Is(err, sqlair.ErrNoRows) {
		return nil, errors.Annotatef(err, "finding files referencing %q", digest)
	}
	return transform.Slice(rows, func(r dbFileUUID) string { return r.UUID }), nil
}

// releaseBlobReferencesTx decrements each blob's reference count by the
// number of revisions the given files hold against it, and returns the
// digests it touched. It must run before the revision rows are deleted.
func (s *State) releaseBlobReferencesTx(ctx context.Context, tx *sqlair.TX, fileUUIDs uuids) (digests, error) {
	selectStmt, err := s.Prepare(`
SELECT DISTINCT blob_digest AS &dbDigest.digest
FROM file_revision
WHERE file_uuid IN ($uuids[:])
AND blob_digest IS NOT NULL`, dbDigest{}, fileUUIDs)
	if err != nil {
		return nil, errors.Annotate(err, "preparing referenced digests statement")
	}

	var rows []dbDigest
	if err := tx.Query(ctx, selectStmt, fileUUIDs).GetAll(&rows); errors.Is(err, sqlair.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Annotate(err, "finding referenced digests")
	}
	released := digests(transform.Slice(rows, func(r dbDigest) string { return r.Digest }))

	updateStmt, err := s.Prepare(`
UPDATE blob
SET ref_count = ref_count - (
    SELECT COUNT(*)
    FROM file_revision r
    WHERE r.blob_digest = blob.digest
    AND r.file_uuid IN ($uuids[:])
)
WHERE digest IN ($digests[:])`, fileUUIDs, released)
	if err != nil {
		return nil, errors.Annotate(err, "preparing release blob references statement")
	}

	if err := tx.Query(ctx, updateStmt, fileUUIDs, released).Run(); err != nil {
		return nil, errors.Annotate(err, "releasing blob references")
	}
	return released, nil
}

// purgeFilesTx deletes the revision rows and file rows of the given
// files.
func (s *State) purgeFilesTx(ctx context.Context, tx *sqlair.TX, fileUUIDs uuids) error {
	revisionStmt, err := s.Prepare(`
DELETE FROM file_revision
WHERE file_uuid IN ($uuids[:])`, fileUUIDs)
	if err != nil {
		return errors.Annotate(err, "preparing purge revisions statement")
	}
	fileStmt, err := s.Prepare(`
DELETE FROM file
WHERE uuid IN ($uuids[:])`, fileUUIDs)
	if err != nil {
		return errors.Annotate(err, "preparing purge files statement")
	}

	if err := tx.Query(ctx, revisionStmt, fileUUIDs).Run(); err != nil {
		return errors.Annotate(err, "purging revisions")
	}
	if err := tx.Query(ctx, fileStmt, fileUUIDs).Run(); err != nil {
		return errors.Annotate(err, "purging files")
	}
	return nil
}

// reapDeadBlobsTx removes blob rows among the given digests whose
// reference count has reached zero and returns the digests removed.
func (s *State) reapDeadBlobsTx(ctx context.Context, tx *sqlair.TX, released digests) ([]blob.Digest, error) {
	if len(released) == 0 {
		return nil, nil
	}

	selectStmt, err := s.Prepare(`
SELECT digest AS &dbDigest.digest
FROM blob
WHERE ref_count <= 0
AND digest IN ($digests[:])`, dbDigest{}, released)
	if err != nil {
		return nil, errors.Annotate(err, "preparing dead blobs statement")
	}

	var rows []dbDigest
	if err := tx.Query(ctx, selectStmt, released).GetAll(&rows); errors.Is(err, sqlair.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Annotate(err, "finding dead blobs")
	}

	dead := digests(transform.Slice(rows, func(r dbDigest) string { return r.Digest }))
	deleteStmt, err := s.Prepare(`
DELETE FROM blob
WHERE digest IN ($digests[:])`, dead)
	if err != nil {
		return nil, errors.Annotate(err, "preparing reap blobs statement")
	}
	if err := tx.Query(ctx, deleteStmt, dead).Run(); err != nil {
		return nil, errors.Annotate(err, "reaping dead blobs")
	}
	return transform.Slice(dead, func(d string) blob.Digest { return blob.Digest(d) }), nil
}

// insertAuditTx writes an audit record.
func (s *State) insertAuditTx(ctx context.Context, tx *sqlair.TX, audit dbAudit) error {
	stmt, err := s.Prepare(`
INSERT INTO file_audit (uuid, operation, file_uuid, blob_digest, user_uuid, detail, created_at)
VALUES ($dbAudit.*)`, audit)
	if err != nil {
		return errors.Annotate(err, "preparing insert audit statement")
	}

	if err := tx.Query(ctx, stmt, audit).Run(); err != nil {
		return errors.Annotate(err, "inserting audit record")
	}
	return nil
}
