// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// headerLength is the number of bytes inspected for magic bytes. It covers
// one tar header block.
const headerLength = 512

// decompressionFunc returns a reader that decompresses src.
type decompressionFunc func(src io.Reader) (io.Reader, error)

// codec is a single stream compression format. A codec without detect
// function has no magic bytes and is selected by file extension only.
type codec struct {
	ext        string
	detect     func([]byte) bool
	decompress decompressionFunc
}

// codecs are the supported single stream formats, detected in this order.
var codecs = []codec{
	{ext: fileExtensionGZip, detect: isGZip, decompress: decompressGZipStream},
	{ext: fileExtensionBzip2, detect: isBzip2, decompress: decompressBz2Stream},
	{ext: fileExtensionXz, detect: isXz, decompress: decompressXzStream},
	{ext: fileExtensionZstd, detect: isZstd, decompress: decompressZstdStream},
	{ext: fileExtensionLZ4, detect: isLZ4, decompress: decompressLZ4Stream},
	{ext: fileExtensionSnappy, detect: isSnappy, decompress: decompressSnappyStream},
	{ext: fileExtensionZlib, detect: isZlib, decompress: decompressZlibStream},
	{ext: fileExtensionBrotli, decompress: decompressBrotliStream},
	{ext: fileExtensionLzma, decompress: decompressLzmaStream},
}

// detectCodec returns the codec for a stream with header and file name, or
// nil if there is none.
func detectCodec(name string, header []byte) *codec {
	for i := range codecs {
		if codecs[i].detect != nil && codecs[i].detect(header) {
			return &codecs[i]
		}
	}
	lower := strings.ToLower(name)
	for i := range codecs {
		if codecs[i].detect == nil && strings.HasSuffix(lower, "."+codecs[i].ext) {
			return &codecs[i]
		}
	}
	return nil
}

// closeStream closes r, if it is a closer.
func closeStream(r io.Reader) {
	if closer, ok := r.(io.Closer); ok {
		closer.Close()
	}
}

// compressorProbe decodes single stream compression formats. The
// decompressed stream is handed to the sink as one entry.
type compressorProbe struct {
	cfg *Config
}

// Name returns the name of the probe
func (p *compressorProbe) Name() string {
	return "compressor"
}

// Probe detects the codec of in and emits the decompressed content.
func (p *compressorProbe) Probe(ctx context.Context, in *probeInput, emit entryHandler) ProbeResult {
	header, err := in.header(headerLength)
	if err != nil {
		return ioError("", err)
	}
	c := detectCodec(in.name, header)
	if c == nil {
		return notThisFormat()
	}

	// start decompression
	stream, err := c.decompress(in.r)
	if err != nil {
		return ioError(c.ext, fmt.Errorf("cannot start decompression: %w", err))
	}
	defer closeStream(stream)

	// force the decoder to start, so that corrupt streams fail before
	// an output file is created
	hr, err := newHeaderReader(stream, headerLength)
	if err != nil {
		return ioError(c.ext, err)
	}

	// check if context is canceled
	if err := ctx.Err(); err != nil {
		return ioError(c.ext, err)
	}

	size := int64(-1)
	if c.ext == fileExtensionGZip {
		size = gzipSize(in.r, in.size)
	}
	if err := emit(&streamEntry{name: decompressedName(in.name), size: size, r: hr}); err != nil {
		return ioError(c.ext, err)
	}
	return decoded(c.ext)
}

// streamEntry is the single entry of a decompressed stream.
type streamEntry struct {
	name string
	size int64
	r    io.Reader
}

// Name returns the name of the decompressed content
func (s *streamEntry) Name() string {
	return s.name
}

// Size returns the estimated size, or -1 if it is unknown
func (s *streamEntry) Size() int64 {
	return s.size
}

// IsRegular returns true
func (s *streamEntry) IsRegular() bool {
	return true
}

// IsDir returns false
func (s *streamEntry) IsDir() bool {
	return false
}

// Open returns the decompressed stream, which is closed by the probe.
func (s *streamEntry) Open() (io.ReadCloser, error) {
	return &noopReaderCloser{s.r}, nil
}
