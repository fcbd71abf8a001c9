// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package unpack

import "io"

// limitErrorWriter is a wrapper around an io.Writer that stops with
// ErrMaxExtractionSizeExceeded once the remaining extraction budget of a run
// is used up.
type limitErrorWriter struct {
	W io.Writer // underlying writer
	L int64     // limit
	N int64     // number of bytes written
}

// Write writes up to len(p) bytes from p to the underlying writer. If p does not
// fit into the remaining budget, the fitting part is written and
// ErrMaxExtractionSizeExceeded is returned.
func (l *limitErrorWriter) Write(p []byte) (n int, err error) {
	remaining := l.L - l.N
	if remaining <= 0 && len(p) > 0 {
		return 0, ErrMaxExtractionSizeExceeded
	}

	// write the part within the budget
	if int64(len(p)) > remaining {
		n, err = l.W.Write(p[:remaining])
		l.N += int64(n)
		if err == nil {
			err = ErrMaxExtractionSizeExceeded
		}
		return n, err
	}

	n, err = l.W.Write(p)
	l.N += int64(n)
	return n, err
}

// newLimitErrorWriter returns a new limitErrorWriter that wraps w with limit l.
func newLimitErrorWriter(w io.Writer, l int64) *limitErrorWriter {
	return &limitErrorWriter{W: w, L: l}
}

// limitWriter returns w if maxSize is negative, otherwise a writer that stops
// after maxSize bytes.
func limitWriter(w io.Writer, maxSize int64) io.Writer {
	if maxSize < 0 {
		return w
	}
	return newLimitErrorWriter(w, maxSize)
}
