// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"io"

	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

const (
	// fileExtensionXz is the file extension for xz files.
	fileExtensionXz = "xz"

	// fileExtensionLzma is the file extension for lzma files in the legacy
	// format, which has no magic bytes.
	fileExtensionLzma = "lzma"
)

// magicBytesXz is the magic bytes for xz files.
// reference https://tukaani.org/xz/xz-file-format-1.0.4.txt
var magicBytesXz = [][]byte{
	{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00},
}

// isXz checks if the header matches the xz magic bytes.
func isXz(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesXz)
}

// decompressXzStream returns an io.Reader that decompresses src with xz algorithm
func decompressXzStream(src io.Reader) (io.Reader, error) {
	return xz.NewReader(src)
}

// decompressLzmaStream returns an io.Reader that decompresses src with the
// legacy lzma format
func decompressLzmaStream(src io.Reader) (io.Reader, error) {
	return lzma.NewReader(src)
}
