// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import "errors"

var (
	// ErrNoPaths is returned if no paths are given to unpack.
	ErrNoPaths = errors.New("no paths to unpack")

	// ErrEmptyPath is returned if one of the given paths is empty.
	ErrEmptyPath = errors.New("empty path")

	// ErrEmptyPattern is returned if an include or exclude pattern is empty.
	ErrEmptyPattern = errors.New("empty pattern")

	// ErrMaxDepthExceeded indicates that an entry was not unpacked, because
	// the maximum recursion depth was reached.
	ErrMaxDepthExceeded = errors.New("maximum recursion depth exceeded")

	// ErrMaxExtractionSizeExceeded indicates that the maximum size over all
	// extracted files is exceeded.
	ErrMaxExtractionSizeExceeded = errors.New("maximum extraction size exceeded")

	// ErrEncrypted indicates a recognized container with encrypted content.
	ErrEncrypted = errors.New("encrypted content is not supported")

	// ErrPathTraversal indicates an entry name that points outside of the
	// extraction directory.
	ErrPathTraversal = errors.New("entry escapes extraction directory")
)
