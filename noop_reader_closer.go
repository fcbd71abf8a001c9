// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package unpack

import "io"

// noopReaderCloser wraps the shared stream of a sequential archive reader,
// so that closing a single entry does not close the archive.
type noopReaderCloser struct {
	io.Reader
}

// Close does nothing.
func (n *noopReaderCloser) Close() error {
	return nil
}

