// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"io"

	"github.com/cavaliergopher/cpio"
)

// fileExtensionCpio is the file extension for cpio archives.
const fileExtensionCpio = "cpio"

// magicBytesCpio are the magic bytes of the SVR4 cpio formats without and
// with checksum. RPM payloads use them.
var magicBytesCpio = [][]byte{
	[]byte("070701"),
	[]byte("070702"),
}

// isCpio checks if the header matches the magic bytes for cpio archives.
func isCpio(data []byte) bool {
	return matchesMagicBytes(data, 0, magicBytesCpio)
}

// cpioWalker is a walker for cpio archives
type cpioWalker struct {
	r *cpio.Reader
}

// newCpioWalker returns a walker that reads the cpio stream in src.
func newCpioWalker(src io.Reader) *cpioWalker {
	return &cpioWalker{r: cpio.NewReader(src)}
}

// Type returns the file extension for cpio archives
func (c *cpioWalker) Type() string {
	return fileExtensionCpio
}

// Next returns the next entry in the cpio stream
func (c *cpioWalker) Next() (archiveEntry, error) {
	hdr, err := c.r.Next()
	if err != nil {
		return nil, err
	}
	return &cpioEntry{hdr: hdr, r: c.r}, nil
}

// cpioEntry is an entry in a cpio archive
type cpioEntry struct {
	hdr *cpio.Header
	r   io.Reader
}

// Name returns the name of the entry
func (c *cpioEntry) Name() string {
	return c.hdr.Name
}

// Size returns the size of the entry
func (c *cpioEntry) Size() int64 {
	return c.hdr.Size
}

// IsRegular returns true if the entry is a regular file
func (c *cpioEntry) IsRegular() bool {
	return c.hdr.Mode.IsRegular()
}

// IsDir returns true if the entry is a directory
func (c *cpioEntry) IsDir() bool {
	return c.hdr.Mode.IsDir()
}

// Open returns the shared stream of the cpio reader, positioned at the entry.
func (c *cpioEntry) Open() (io.ReadCloser, error) {
	return &noopReaderCloser{c.r}, nil
}
