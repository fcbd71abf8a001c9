// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/gzip"
)

const (
	// fileExtensionGZip is the file extension for gzip files.
	fileExtensionGZip = "gz"

	// gzipTrailerSize is the size of the CRC32 and ISIZE trailer of a gzip member.
	gzipTrailerSize = 8
)

// magicBytesGZip are the magic bytes for gzip compressed files.
//
// https://socketloop.com/tutorials/golang-gunzip-file
var magicBytesGZip = [][]byte{
	{0x1f, 0x8b},
}

// isGZip checks if the header matches the magic bytes for gzip compressed files.
func isGZip(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesGZip)
}

// decompressGZipStream returns an io.Reader that decompresses src with gzip algorithm.
func decompressGZipStream(src io.Reader) (io.Reader, error) {
	return gzip.NewReader(src)
}

// gzipSize returns the uncompressed size from the ISIZE trailer of the last
// member. The field holds the size modulo 2^32, so it is only an estimate.
func gzipSize(src io.ReaderAt, size int64) int64 {
	if size < gzipTrailerSize {
		return -1
	}
	var isize [4]byte
	if _, err := src.ReadAt(isize[:], size-4); err != nil {
		return -1
	}
	return int64(binary.LittleEndian.Uint32(isize[:]))
}
