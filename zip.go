// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
)

// fileExtensionZip is the file extension for zip files.
const fileExtensionZip = "zip"

// zipFlagEncrypted is the general purpose flag of an encrypted zip entry.
const zipFlagEncrypted = 0x1

// magicBytesZip contains the magic bytes for a zip archive. Java archives
// (jar, war, ear) share them.
// reference: https://golang.org/pkg/archive/zip/
var magicBytesZip = [][]byte{
	{0x50, 0x4B, 0x03, 0x04},
}

// isZip checks if data is a zip archive. It returns true if data is a zip archive and false if data is not a zip archive.
func isZip(data []byte) bool {
	return matchesMagicBytes(data, 0, magicBytesZip)
}

// newZipWalker reads the central directory of the zip archive in src.
func newZipWalker(src io.ReaderAt, size int64) (*zipWalker, error) {
	reader, err := zip.NewReader(src, size)
	if err != nil && !(errors.Is(err, zip.ErrInsecurePath) && reader != nil) {
		return nil, fmt.Errorf("cannot create zip reader: %w", err)
	}
	return &zipWalker{zr: reader}, nil
}

// zipWalker is a walker for zip files
type zipWalker struct {
	zr *zip.Reader
	fp int
}

// Type returns the file extension for zip files
func (z *zipWalker) Type() string {
	return fileExtensionZip
}

// Next returns the next entry in the zip archive. Encrypted entries are
// returned as [ErrEncrypted], the walker can continue after them.
func (z *zipWalker) Next() (archiveEntry, error) {
	if z.fp >= len(z.zr.File) {
		return nil, io.EOF
	}
	zf := z.zr.File[z.fp]
	z.fp++
	if zf.Flags&zipFlagEncrypted != 0 {
		return nil, fmt.Errorf("%s: %w", zf.Name, ErrEncrypted)
	}
	return &zipEntry{zf}, nil
}

// zipEntry is an entry in a zip archive
type zipEntry struct {
	zf *zip.File
}

// Name returns the name of the entry
func (z *zipEntry) Name() string {
	return z.zf.FileHeader.Name
}

// Size returns the size of the entry
func (z *zipEntry) Size() int64 {
	return int64(z.zf.FileHeader.UncompressedSize64)
}

// IsRegular returns true if the entry is a regular file
func (z *zipEntry) IsRegular() bool {
	return z.zf.FileHeader.Mode().IsRegular()
}

// IsDir returns true if the entry is a directory
func (z *zipEntry) IsDir() bool {
	return z.zf.FileHeader.Mode().IsDir()
}

// Open returns a reader for the entry
func (z *zipEntry) Open() (io.ReadCloser, error) {
	return z.zf.Open()
}
