// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"errors"
	"fmt"
	"io"

	"github.com/bodgit/sevenzip"
)

// fileExtension7zip is the file extension for 7zip files
const fileExtension7zip = "7z"

// magicBytes7zip are the magic bytes for 7zip files
var magicBytes7zip = [][]byte{
	{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C},
}

// is7zip checks if the header matches the magic bytes for 7zip files
func is7zip(data []byte) bool {
	return matchesMagicBytes(data, 0, magicBytes7zip)
}

// new7zipWalker reads the header of the 7zip archive in src. An archive with
// encrypted headers is returned as [ErrEncrypted].
func new7zipWalker(src io.ReaderAt, size int64) (*sevenZipWalker, error) {
	reader, err := sevenzip.NewReader(src, size)
	if err != nil {
		if is7zipEncrypted(err) {
			return nil, fmt.Errorf("encrypted archive: %w", ErrEncrypted)
		}
		return nil, fmt.Errorf("cannot create 7zip reader: %w", err)
	}
	return &sevenZipWalker{r: reader}, nil
}

// is7zipEncrypted returns true if err hints at encryption.
func is7zipEncrypted(err error) bool {
	var re *sevenzip.ReadError
	return errors.As(err, &re) && re.Encrypted
}

// sevenZipWalker is a walker for 7zip files
type sevenZipWalker struct {
	r  *sevenzip.Reader
	fp int
}

// Type returns the file extension for 7zip files
func (s *sevenZipWalker) Type() string {
	return fileExtension7zip
}

// Next returns the next entry in the 7zip archive
func (s *sevenZipWalker) Next() (archiveEntry, error) {
	if s.fp >= len(s.r.File) {
		return nil, io.EOF
	}
	defer func() { s.fp++ }()
	return &sevenZipEntry{s.r.File[s.fp]}, nil
}

// sevenZipEntry is an entry in a 7zip archive
type sevenZipEntry struct {
	f *sevenzip.File
}

// Name returns the name of the entry
func (s *sevenZipEntry) Name() string {
	return s.f.Name
}

// Size returns the size of the entry
func (s *sevenZipEntry) Size() int64 {
	return int64(s.f.UncompressedSize)
}

// IsRegular returns true if the entry is a regular file
func (s *sevenZipEntry) IsRegular() bool {
	return s.f.FileInfo().Mode().IsRegular()
}

// IsDir returns true if the entry is a directory
func (s *sevenZipEntry) IsDir() bool {
	return s.f.FileInfo().IsDir()
}

// Open returns a reader for the entry. Reading an encrypted entry fails with
// [ErrEncrypted].
func (s *sevenZipEntry) Open() (io.ReadCloser, error) {
	rc, err := s.f.Open()
	if err != nil && is7zipEncrypted(err) {
		return nil, fmt.Errorf("%s: %w", s.f.Name, ErrEncrypted)
	}
	return rc, err
}
