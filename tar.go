// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"archive/tar"
	"io"
)

// fileExtensionTar is the file extension for tar files
const fileExtensionTar = "tar"

// offsetTar is the offset where the magic bytes are located in the file
const offsetTar = 257

// magicBytesTar are the magic bytes for tar files
var magicBytesTar = [][]byte{
	[]byte("ustar\x00tar\x00"),
	[]byte("ustar\x00"),
	[]byte("ustar  \x00"),
}

// isTar checks if the header matches the magic bytes for tar files
func isTar(data []byte) bool {
	return matchesMagicBytes(data, offsetTar, magicBytesTar)
}

// tarWalker is a walker for tar files. The format names the stream, which is
// "tar" or a compressed tar like "tar.gz".
type tarWalker struct {
	tr     *tar.Reader
	format string
}

// newTarWalker returns a walker that reads the tar stream in src.
func newTarWalker(src io.Reader, format string) *tarWalker {
	return &tarWalker{tr: tar.NewReader(src), format: format}
}

// Type returns the format of the walked stream
func (t *tarWalker) Type() string {
	return t.format
}

// Next returns the next entry in the tar stream
func (t *tarWalker) Next() (archiveEntry, error) {
	hdr, err := t.tr.Next()
	if err != nil {
		return nil, err
	}
	return &tarEntry{hdr: hdr, r: t.tr}, nil
}

// tarEntry is an entry in a tar archive
type tarEntry struct {
	hdr *tar.Header
	r   io.Reader
}

// Name returns the name of the entry
func (t *tarEntry) Name() string {
	return t.hdr.Name
}

// Size returns the size of the entry
func (t *tarEntry) Size() int64 {
	return t.hdr.Size
}

// IsRegular returns true if the entry is a regular file
func (t *tarEntry) IsRegular() bool {
	return t.hdr.Typeflag == tar.TypeReg
}

// IsDir returns true if the entry is a directory
func (t *tarEntry) IsDir() bool {
	return t.hdr.Typeflag == tar.TypeDir
}

// Open returns the shared stream of the tar reader, positioned at the entry.
func (t *tarEntry) Open() (io.ReadCloser, error) {
	return &noopReaderCloser{t.r}, nil
}
