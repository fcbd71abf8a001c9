// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"context"
	"errors"
)

// archiveProbe decodes multi entry containers: zip, 7zip, tar, cpio and ar.
// A compressed tar is decoded in one step, unless disabled in the config.
type archiveProbe struct {
	cfg *Config
}

// Name returns the name of the probe
func (p *archiveProbe) Name() string {
	return "archive"
}

// Probe checks the magic bytes of in and walks the detected container.
func (p *archiveProbe) Probe(ctx context.Context, in *probeInput, emit entryHandler) ProbeResult {
	header, err := in.header(headerLength)
	if err != nil {
		return ioError("", err)
	}

	switch {
	case isZip(header):
		w, err := newZipWalker(in.r, in.size)
		if err != nil {
			return ioError(fileExtensionZip, err)
		}
		return walkArchive(ctx, w, emit)

	case is7zip(header):
		w, err := new7zipWalker(in.r, in.size)
		if errors.Is(err, ErrEncrypted) {
			return unsupported(fileExtension7zip, err)
		}
		if err != nil {
			return ioError(fileExtension7zip, err)
		}
		return walkArchive(ctx, w, emit)

	case isTar(header):
		return walkArchive(ctx, newTarWalker(in.r, fileExtensionTar), emit)

	case isCpio(header):
		return walkArchive(ctx, newCpioWalker(in.r), emit)

	case isAr(header):
		return walkArchive(ctx, newArWalker(in.r), emit)
	}

	if p.cfg.NoUntarAfterDecompression() {
		return notThisFormat()
	}
	return p.probeCompressedTar(ctx, in, header, emit)
}

// probeCompressedTar walks a tar archive inside a single stream compression
// format. Anything else is left to the compressor probe.
func (p *archiveProbe) probeCompressedTar(ctx context.Context, in *probeInput, header []byte, emit entryHandler) ProbeResult {
	c := detectCodec(in.name, header)
	if c == nil {
		return notThisFormat()
	}
	stream, err := c.decompress(in.r)
	if err != nil {
		return notThisFormat()
	}
	defer closeStream(stream)

	hr, err := newHeaderReader(stream, headerLength)
	if err != nil || !isTar(hr.PeekHeader()) {
		return notThisFormat()
	}
	return walkArchive(ctx, newTarWalker(hr, fileExtensionTar+"."+c.ext), emit)
}
