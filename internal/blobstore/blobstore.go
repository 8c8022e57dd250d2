// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package blobstore provides the content addressed store holding the
// physical file bytes. Content is addressed by the SHA-256 of the
// bytes, so identical uploads land on the same path and storing is
// naturally idempotent. The database side tracks which digests are
// referenced; this package only moves bytes.
package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/juju/errors"

	"github.com/canonical/filevault/core/blob"
	"github.com/canonical/filevault/core/logger"
	fileerrors "github.com/canonical/filevault/domain/file/errors"
)

const (
	tmpDir = "tmp"

	// fanOutLength is the number of leading digest characters used as
	// an intermediate directory, keeping any one directory from
	// accumulating every blob.
	fanOutLength = 2
)

// Store is a filesystem backed content addressed blob store.
type Store struct {
	root   string
	logger logger.Logger
}

// NewStore returns a Store rooted at the given directory, creating it
// if necessary.
func NewStore(root string, logger logger.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, tmpDir), 0o755); err != nil {
		return nil, errors.Annotatef(err, "creating blob store root %q", root)
	}
	return &Store{
		root:   root,
		logger: logger,
	}, nil
}

// Put stores the given bytes and returns their content metadata. The
// digest is the hex SHA-256 of the bytes, the media type is sniffed
// from the leading bytes. Storing bytes that are already present is a
// no-op returning the same metadata.
func (s *Store) Put(ctx context.Context, data []byte) (blob.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return blob.Metadata{}, errors.Trace(err)
	}

	sum := sha256.Sum256(data)
	meta := blob.Metadata{
		Digest:    blob.Digest(hex.EncodeToString(sum[:])),
		MediaType: http.DetectContentType(data),
		Size:      int64(len(data)),
	}

	path := s.path(meta.Digest)
	if _, err := os.Stat(path); err == nil {
		s.logger.Tracef(ctx, "blob %q already stored", meta.Digest)
		return meta, nil
	} else if !os.IsNotExist(err) {
		return blob.Metadata{}, errors.Annotatef(err, "checking blob %q", meta.Digest)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return blob.Metadata{}, errors.Trace(err)
	}

	// Write to a temp file and rename into place, so a partial write
	// can never be mistaken for stored content.
	tmp, err := os.CreateTemp(filepath.Join(s.root, tmpDir), "blob-*")
	if err != nil {
		return blob.Metadata{}, errors.Annotate(err, "creating temp blob file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return blob.Metadata{}, errors.Annotatef(err, "writing blob %q", meta.Digest)
	}
	if err := tmp.Close(); err != nil {
		return blob.Metadata{}, errors.Trace(err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return blob.Metadata{}, errors.Annotatef(err, "storing blob %q", meta.Digest)
	}

	s.logger.Debugf(ctx, "stored blob %q (%d bytes, %s)", meta.Digest, meta.Size, meta.MediaType)
	return meta, nil
}

// Open returns a reader over the stored bytes for the given digest.
// It returns an error satisfying [fileerrors.BlobNotFound] if the
// digest is not stored.
func (s *Store) Open(ctx context.Context, digest blob.Digest) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	if err := digest.Validate(); err != nil {
		return nil, errors.Trace(err)
	}

	f, err := os.Open(s.path(digest))
	if os.IsNotExist(err) {
		return nil, errors.Annotatef(fileerrors.BlobNotFound, "blob %q", digest)
	} else if err != nil {
		return nil, errors.Annotatef(err, "opening blob %q", digest)
	}
	return f, nil
}

// HardDelete removes the stored bytes for the given digest. Deleting a
// digest that is not stored is a no-op.
func (s *Store) HardDelete(ctx context.Context, digest blob.Digest) error {
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	if err := digest.Validate(); err != nil {
		return errors.Trace(err)
	}

	if err := os.Remove(s.path(digest)); err != nil && !os.IsNotExist(err) {
		return errors.Annotatef(err, "removing blob %q", digest)
	}
	s.logger.Debugf(ctx, "removed blob %q", digest)
	return nil
}

func (s *Store) path(digest blob.Digest) string {
	d := digest.String()
	return filepath.Join(s.root, d[:fanOutLength], d)
}
