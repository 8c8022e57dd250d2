// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package blobstore

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/juju/tc"

	"github.com/canonical/filevault/core/blob"
	fileerrors "github.com/canonical/filevault/domain/file/errors"
	loggertesting "github.com/canonical/filevault/internal/logger/testing"
)

type blobstoreSuite struct {
	root  string
	store *Store
}

func TestBlobstoreSuite(t *testing.T) {
	tc.Run(t, &blobstoreSuite{})
}

func (s *blobstoreSuite) SetUpTest(c *tc.C) {
	s.root = c.MkDir()
	store, err := NewStore(s.root, loggertesting.WrapCheckLog(c))
	c.Assert(err, tc.ErrorIsNil)
	s.store = store
}

func (s *blobstoreSuite) TestPut(c *tc.C) {
	meta, err := s.store.Put(c.Context(), []byte("some text"))
	c.Assert(err, tc.ErrorIsNil)

	sum := sha256.Sum256([]byte("some text"))
	c.Check(meta.Digest, tc.Equals, blob.Digest(hex.EncodeToString(sum[:])))
	c.Check(meta.Size, tc.Equals, int64(len("some text")))
	c.Check(meta.MediaType, tc.Equals, "text/plain; charset=utf-8")
	c.Check(meta.Digest.Validate(), tc.ErrorIsNil)
}

func (s *blobstoreSuite) TestPutIdempotent(c *tc.C) {
	first, err := s.store.Put(c.Context(), []byte("same bytes"))
	c.Assert(err, tc.ErrorIsNil)
	second, err := s.store.Put(c.Context(), []byte("same bytes"))
	c.Assert(err, tc.ErrorIsNil)
	c.Check(second, tc.DeepEquals, first)
}

func (s *blobstoreSuite) TestPutSniffsMediaType(c *tc.C) {
	meta, err := s.store.Put(c.Context(), []byte("%PDF-1.4 trailing bytes"))
	c.Assert(err, tc.ErrorIsNil)
	c.Check(meta.MediaType, tc.Equals, "application/pdf")
}

func (s *blobstoreSuite) TestPutLeavesNoTempFiles(c *tc.C) {
	_, err := s.store.Put(c.Context(), []byte("some text"))
	c.Assert(err, tc.ErrorIsNil)

	entries, err := os.ReadDir(filepath.Join(s.root, tmpDir))
	c.Assert(err, tc.ErrorIsNil)
	c.Check(entries, tc.HasLen, 0)
}

func (s *blobstoreSuite) TestOpen(c *tc.C) {
	meta, err := s.store.Put(c.Context(), []byte("read me back"))
	c.Assert(err, tc.ErrorIsNil)

	reader, err := s.store.Open(c.Context(), meta.Digest)
	c.Assert(err, tc.ErrorIsNil)
	defer reader.Close()
	content, err := io.ReadAll(reader)
	c.Assert(err, tc.ErrorIsNil)
	c.Check(string(content), tc.Equals, "read me back")
}

func (s *blobstoreSuite) TestOpenNotFound(c *tc.C) {
	sum := sha256.Sum256([]byte("never stored"))
	_, err := s.store.Open(c.Context(), blob.Digest(hex.EncodeToString(sum[:])))
	c.Assert(err, tc.ErrorIs, fileerrors.BlobNotFound)
}

func (s *blobstoreSuite) TestOpenRejectsInvalidDigest(c *tc.C) {
	_, err := s.store.Open(c.Context(), blob.Digest("../../etc/passwd"))
	c.Assert(err, tc.NotNil)
}

func (s *blobstoreSuite) TestHardDelete(c *tc.C) {
	meta, err := s.store.Put(c.Context(), []byte("short lived"))
	c.Assert(err, tc.ErrorIsNil)

	c.Assert(s.store.HardDelete(c.Context(), meta.Digest), tc.ErrorIsNil)
	_, err = s.store.Open(c.Context(), meta.Digest)
	c.Assert(err, tc.ErrorIs, fileerrors.BlobNotFound)
}

func (s *blobstoreSuite) TestHardDeleteIdempotent(c *tc.C) {
	meta, err := s.store.Put(c.Context(), []byte("short lived"))
	c.Assert(err, tc.ErrorIsNil)

	c.Assert(s.store.HardDelete(c.Context(), meta.Digest), tc.ErrorIsNil)
	c.Assert(s.store.HardDelete(c.Context(), meta.Digest), tc.ErrorIsNil)
}
