// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"fmt"
	"io"
)

// headerReader is an implementation of io.Reader that allows the first bytes of
// a decompressed stream to be inspected before it is consumed. Reading the header
// forces the decoder to start, so corrupt streams fail before an output file
// is created.
type headerReader struct {
	r      io.Reader
	header []byte
	peeked []byte
}

// newHeaderReader reads up to headerSize bytes from r. If r ends earlier, the
// shorter header is kept.
func newHeaderReader(r io.Reader, headerSize int) (*headerReader, error) {
	buf := make([]byte, headerSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("cannot read header: %w", err)
	}
	return &headerReader{r: r, header: buf[:n], peeked: buf[:n]}, nil
}

// Read returns the buffered header first and continues with the source.
func (p *headerReader) Read(b []byte) (int, error) {
	if len(p.header) > 0 {
		n := copy(b, p.header)
		p.header = p.header[n:]
		return n, nil
	}
	return p.r.Read(b)
}

// PeekHeader returns the header that was read on creation.
func (p *headerReader) PeekHeader() []byte {
	return p.peeked
}
