// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/blakesmith/ar"
)

// fileExtensionAr is the file extension for ar archives.
const fileExtensionAr = "ar"

// magicBytesAr are the magic bytes for ar archives, like debian packages and
// static libraries.
var magicBytesAr = [][]byte{
	[]byte("!<arch>\n"),
}

// isAr checks if the header matches the magic bytes for ar archives.
func isAr(data []byte) bool {
	return matchesMagicBytes(data, 0, magicBytesAr)
}

// arWalker is a walker for ar archives. It resolves GNU long names.
type arWalker struct {
	r     *ar.Reader
	names []byte
}

// newArWalker returns a walker that reads the ar stream in src. The global
// header is consumed by the reader.
func newArWalker(src io.Reader) *arWalker {
	return &arWalker{r: ar.NewReader(src)}
}

// Type returns the file extension for ar archives
func (a *arWalker) Type() string {
	return fileExtensionAr
}

// Next returns the next member of the archive. Symbol tables and the long
// name table are not returned.
func (a *arWalker) Next() (archiveEntry, error) {
	for {
		hdr, err := a.r.Next()
		if err != nil {
			return nil, err
		}

		switch {

		// symbol table
		case hdr.Name == "/" || hdr.Name == "/SYM64/" || hdr.Name == "__.SYMDEF":
			continue

		// long name table
		case hdr.Name == "//":
			if a.names, err = io.ReadAll(a.r); err != nil {
				return nil, fmt.Errorf("cannot read name table: %w", err)
			}
			continue
		}

		name, err := a.resolve(hdr.Name)
		if err != nil {
			return nil, err
		}
		return &arEntry{name: name, size: hdr.Size, r: a.r}, nil
	}
}

// resolve returns the member name of a header. GNU ar terminates names with
// "/" and writes "/<offset>" for names in the long name table.
func (a *arWalker) resolve(name string) (string, error) {
	if !strings.HasPrefix(name, "/") {
		return strings.TrimSuffix(name, "/"), nil
	}
	offset, err := strconv.Atoi(name[1:])
	if err != nil || offset < 0 || offset >= len(a.names) {
		return "", fmt.Errorf("invalid long name reference %q", name)
	}
	long := a.names[offset:]
	if end := bytes.IndexByte(long, '\n'); end >= 0 {
		long = long[:end]
	}
	return strings.TrimSuffix(string(long), "/"), nil
}

// arEntry is a member of an ar archive
type arEntry struct {
	name string
	size int64
	r    io.Reader
}

// Name returns the name of the member
func (a *arEntry) Name() string {
	return a.name
}

// Size returns the size of the member
func (a *arEntry) Size() int64 {
	return a.size
}

// IsRegular returns true, ar archives only hold files
func (a *arEntry) IsRegular() bool {
	return true
}

// IsDir returns false, ar archives only hold files
func (a *arEntry) IsDir() bool {
	return false
}

// Open returns the shared stream of the ar reader, positioned at the member.
func (a *arEntry) Open() (io.ReadCloser, error) {
	return &noopReaderCloser{a.r}, nil
}
