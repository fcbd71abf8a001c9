// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/valyala/bytebufferpool"
)

// source is the content of a work item. It is either a file on disk or a
// pooled buffer with an entry that was extracted in memory. The path is set
// in both cases, because a buffered entry has also been written to disk.
type source struct {
	path string
	buf  *bytebufferpool.ByteBuffer
}

// inMemory returns true if the content is held in a pooled buffer.
func (s source) inMemory() bool {
	return s.buf != nil
}

// open returns a fresh reader over the complete content. Every probe gets its
// own reader, so a partially consumed stream is never reused.
func (s source) open() (*probeInput, error) {
	in := &probeInput{path: s.path, name: filepath.Base(s.path)}

	// memory backed
	if s.buf != nil {
		in.r = bytes.NewReader(s.buf.B)
		in.size = int64(s.buf.Len())
		return in, nil
	}

	// file backed
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("cannot stat: %w", err)
	}
	in.r = f
	in.size = stat.Size()
	in.closer = f
	return in, nil
}

// workItem is a pending path of the unpack engine. Root items are the paths
// given by the caller.
type workItem struct {
	src   source
	level int
	root  bool
}

// readerAtSeeker is implemented by files and in-memory readers.
type readerAtSeeker interface {
	io.Reader
	io.ReaderAt
	io.Seeker
}

// probeInput is the opened content of a work item as seen by a probe.
type probeInput struct {
	path   string
	name   string
	size   int64
	r      readerAtSeeker
	closer io.Closer
}

// header returns up to n bytes from the start of the input without moving
// the read offset.
func (in *probeInput) header(n int) ([]byte, error) {
	buf := make([]byte, n)
	m, err := in.r.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("cannot read header: %w", err)
	}
	return buf[:m], nil
}

// Close closes the underlying file, if there is one.
func (in *probeInput) Close() error {
	if in.closer == nil {
		return nil
	}
	return in.closer.Close()
}
