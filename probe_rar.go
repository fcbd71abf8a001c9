// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"context"
	"fmt"
	"io"

	"github.com/nwaples/rardecode"
)

// rarProbe decodes Rar 1.5 to 4.x archives. Encryption is detected by a scan
// of the block headers before any decoder runs.
type rarProbe struct {
	cfg *Config
}

// Name returns the name of the probe
func (p *rarProbe) Name() string {
	return "rar"
}

// Probe checks the signature of in, scans the headers for encryption and
// walks the archive.
func (p *rarProbe) Probe(ctx context.Context, in *probeInput, emit entryHandler) ProbeResult {
	header, err := in.header(len(magicBytesRar5[0]))
	if err != nil {
		return ioError("", err)
	}
	if isRar5(header) {
		p.cfg.Logger().Debug("rar5 not supported", "path", in.path)
		return notThisFormat()
	}
	if !isRar(header) {
		return notThisFormat()
	}

	// check for encryption
	scan, err := scanRarHeaders(in.r, in.size)
	if err != nil {
		return ioError(fileExtensionRar, err)
	}
	if scan.archiveEncrypted {
		return unsupported(fileExtensionRar, fmt.Errorf("encrypted archive: %w", ErrEncrypted))
	}

	// decode from the start
	if _, err := in.r.Seek(0, io.SeekStart); err != nil {
		return ioError(fileExtensionRar, err)
	}
	r, err := rardecode.NewReader(in.r, "")
	if err != nil {
		return ioError(fileExtensionRar, fmt.Errorf("cannot create rar decoder: %w", err))
	}
	return walkArchive(ctx, &rarWalker{
		r:             r,
		encryptedAt:   scan.encryptedAt,
		encryptedName: scan.encryptedName,
	}, emit)
}
