// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// archiveWalker is an interface that represents a file walker in an archive
type archiveWalker interface {
	Type() string
	Next() (archiveEntry, error)
}

// archiveEntry is an interface that represents a file in an archive
type archiveEntry interface {
	IsDir() bool
	IsRegular() bool
	Name() string
	Open() (io.ReadCloser, error)
	Size() int64
}

// entryHandler consumes a decoded entry. An error ends the walk.
type entryHandler func(archiveEntry) error

// walkArchive checks ctx for cancellation, while it hands all entries of src to emit.
func walkArchive(ctx context.Context, src archiveWalker, emit entryHandler) ProbeResult {
	for {
		// check if context is canceled
		if err := ctx.Err(); err != nil {
			return ioError(src.Type(), err)
		}

		// get next file
		ae, err := src.Next()

		switch {

		// if no more files are found exit loop
		case err == io.EOF:
			return decoded(src.Type())

		// recognized, but not readable
		case errors.Is(err, ErrEncrypted):
			return unsupported(src.Type(), err)

		// return any other error
		case err != nil:
			return ioError(src.Type(), fmt.Errorf("error reading %s: %w", src.Type(), err))

		// if the header is nil, just skip it
		case ae == nil:
			continue
		}

		if err := emit(ae); err != nil {
			if errors.Is(err, ErrEncrypted) {
				return unsupported(src.Type(), err)
			}
			return ioError(src.Type(), err)
		}
	}
}
