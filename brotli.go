// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"io"

	"github.com/andybalholm/brotli"
)

// fileExtensionBrotli is the file extension for brotli files
const fileExtensionBrotli = "br"

// decompressBrotliStream returns an io.Reader that decompresses src with brotli
// algorithm. Brotli streams have no magic bytes, so they are only detected by
// file extension.
func decompressBrotliStream(src io.Reader) (io.Reader, error) {
	return brotli.NewReader(src), nil
}
