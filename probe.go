// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"bytes"
	"context"
	"fmt"
)

// ProbeKind is the outcome of a single format probe.
type ProbeKind int

const (
	// NotThisFormat means the signature or header did not match.
	NotThisFormat ProbeKind = iota

	// Decoded means the container was read completely and all entries were
	// handed to the sink.
	Decoded

	// Unsupported means the container was recognized, but can not be decoded,
	// for example because it is encrypted.
	Unsupported

	// IOError means the container was recognized, but reading it failed.
	IOError
)

// String returns the name of the kind.
func (k ProbeKind) String() string {
	switch k {
	case NotThisFormat:
		return "not_this_format"
	case Decoded:
		return "decoded"
	case Unsupported:
		return "unsupported"
	case IOError:
		return "io_error"
	}
	return fmt.Sprintf("ProbeKind(%d)", int(k))
}

// ProbeResult is the tagged result of a probe.
type ProbeResult struct {
	// Kind is the outcome
	Kind ProbeKind

	// Format is the detected format, like "zip" or "tar.gz"
	Format string

	// Entries is the number of entries handed to the sink
	Entries int

	// Err is set for Unsupported and IOError
	Err error
}

func decoded(format string) ProbeResult {
	return ProbeResult{Kind: Decoded, Format: format}
}

func notThisFormat() ProbeResult {
	return ProbeResult{Kind: NotThisFormat}
}

func unsupported(format string, err error) ProbeResult {
	return ProbeResult{Kind: Unsupported, Format: format, Err: err}
}

func ioError(format string, err error) ProbeResult {
	return ProbeResult{Kind: IOError, Format: format, Err: err}
}

// probe detects and decodes one family of formats.
type probe interface {
	// Name identifies the probe in logs and metrics.
	Name() string

	// Probe checks the signature of in and hands every decoded entry to emit.
	Probe(ctx context.Context, in *probeInput, emit entryHandler) ProbeResult
}

// cascade tries its probes in a fixed order until one of them recognizes the input.
type cascade struct {
	probes  []probe
	logger  logger
	metrics *Metrics
}

// newCascade returns the cascade of all supported formats.
func newCascade(cfg *Config) *cascade {
	return &cascade{
		probes: []probe{
			&archiveProbe{cfg: cfg},
			&compressorProbe{cfg: cfg},
			&rpmProbe{cfg: cfg},
			&rarProbe{cfg: cfg},
		},
		logger:  cfg.Logger(),
		metrics: cfg.Metrics(),
	}
}

// run probes src. The first result that is not NotThisFormat ends the cascade.
func (c *cascade) run(ctx context.Context, src source, emit entryHandler) ProbeResult {
	for _, p := range c.probes {
		res := c.attempt(ctx, p, src, emit)
		c.metrics.recordProbe(p.Name(), res.Kind)
		if res.Kind == NotThisFormat {
			c.logger.Debug("format mismatch", "probe", p.Name(), "path", src.path)
			continue
		}
		return res
	}
	return notThisFormat()
}

// attempt runs p on a freshly opened input. A panic of a decoder is returned
// as IOError.
func (c *cascade) attempt(ctx context.Context, p probe, src source, emit entryHandler) (res ProbeResult) {
	in, err := src.open()
	if err != nil {
		return ioError("", fmt.Errorf("cannot open %s: %w", src.path, err))
	}
	defer in.Close()

	var entries int
	counting := func(ae archiveEntry) error {
		entries++
		return emit(ae)
	}

	defer func() {
		if r := recover(); r != nil {
			res = ioError(res.Format, fmt.Errorf("%s probe panicked: %v", p.Name(), r))
		}
		res.Entries = entries
	}()

	return p.Probe(ctx, in, counting)
}

// matchesMagicBytes checks if one of magicBytes is found in data at offset.
func matchesMagicBytes(data []byte, offset int, magicBytes [][]byte) bool {
	// check all possible magic bytes until match is found
	for _, mb := range magicBytes {
		// check if header is long enough
		if offset+len(mb) > len(data) {
			continue
		}

		// check for byte match
		if bytes.Equal(mb, data[offset:offset+len(mb)]) {
			return true
		}
	}

	// no match found
	return false
}
