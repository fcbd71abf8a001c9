// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"context"
	"fmt"
	"io"

	"github.com/cavaliergopher/rpm"
)

// fileExtensionRpm is the file extension for rpm packages.
const fileExtensionRpm = "rpm"

// magicBytesRpm are the magic bytes of the rpm lead.
var magicBytesRpm = [][]byte{
	{0xED, 0xAB, 0xEE, 0xDB},
}

// isRpm checks if the header matches the magic bytes for rpm packages.
func isRpm(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesRpm)
}

// rpmProbe decodes the payload of rpm packages. The payload is handed to the
// sink as a cpio archive, which is walked on the next level.
type rpmProbe struct {
	cfg *Config
}

// Name returns the name of the probe
func (p *rpmProbe) Name() string {
	return "rpm"
}

// Probe reads the rpm headers of in and emits the decompressed payload.
func (p *rpmProbe) Probe(ctx context.Context, in *probeInput, emit entryHandler) ProbeResult {
	header, err := in.header(len(magicBytesRpm[0]))
	if err != nil {
		return ioError("", err)
	}
	if !isRpm(header) {
		return notThisFormat()
	}

	// rpm.Read leaves the reader at the start of the payload
	pkg, err := rpm.Read(in.r)
	if err != nil {
		return ioError(fileExtensionRpm, fmt.Errorf("cannot read rpm headers: %w", err))
	}
	decompress, err := payloadDecompressor(pkg.PayloadCompression())
	if err != nil {
		return unsupported(fileExtensionRpm, err)
	}
	p.cfg.Logger().Debug("rpm payload", "format", pkg.PayloadFormat(), "compression", pkg.PayloadCompression())

	stream, err := decompress(in.r)
	if err != nil {
		return ioError(fileExtensionRpm, fmt.Errorf("cannot start payload decompression: %w", err))
	}
	defer closeStream(stream)
	hr, err := newHeaderReader(stream, headerLength)
	if err != nil {
		return ioError(fileExtensionRpm, err)
	}

	if err := emit(&streamEntry{name: payloadName(in.name), size: -1, r: hr}); err != nil {
		return ioError(fileExtensionRpm, err)
	}
	return decoded(fileExtensionRpm)
}

// payloadDecompressor returns the decompression for the payload compression
// named in the rpm header.
func payloadDecompressor(compression string) (decompressionFunc, error) {
	switch compression {
	case "gzip", "":
		return decompressGZipStream, nil
	case "bzip2":
		return decompressBz2Stream, nil
	case "xz":
		return decompressXzStream, nil
	case "lzma":
		return decompressLzmaStream, nil
	case "zstd":
		return decompressZstdStream, nil
	case "none":
		return func(src io.Reader) (io.Reader, error) { return src, nil }, nil
	}
	return nil, fmt.Errorf("unsupported payload compression %q", compression)
}
