// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// batchType is the telemetry type of [ExtractZipFiles] runs.
const batchType = "batch"

// BatchResult is the outcome of [ExtractZipFiles].
type BatchResult struct {
	// Extracted are the files extracted over all waves, in wave order
	Extracted []string `json:"extracted"`

	// Waves holds the statistics of every wave, including the last one
	// that extracted nothing
	Waves []WaveStats `json:"waves"`

	// Failures maps inputs to the error that stopped their extraction
	Failures map[string]error `json:"-"`

	// Warnings are messages about skipped encrypted entries
	Warnings []string `json:"warnings"`
}

// WaveStats are the statistics of a single wave.
type WaveStats struct {
	Wave      int           `json:"wave"`
	Inputs    int           `json:"inputs"`
	Extracted int           `json:"extracted"`
	Failures  int           `json:"failures"`
	Duration  time.Duration `json:"duration"`
}

// ExtractZipFiles extracts the zip archives in paths concurrently. All
// files extracted in one wave are the inputs of the next wave, until a wave
// extracts nothing. Inputs that are no zip archives extract nothing.
//
// The number of concurrent extractions is limited by the workers of cfg.
// Failures of single inputs are recorded in the result. An error is returned
// for invalid arguments, and if ctx is canceled.
func ExtractZipFiles(ctx context.Context, cfg *Config, paths ...string) (*BatchResult, error) {
	if cfg == nil {
		cfg = NewConfig()
	}

	// check arguments
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}
	for _, p := range paths {
		if len(p) == 0 {
			return nil, ErrEmptyPath
		}
	}
	policy, err := NewPolicy(cfg.Includes(), cfg.Excludes())
	if err != nil {
		return nil, errors.Wrap(err, "cannot compile patterns")
	}
	tempRoot, err := prepareTempDir(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "cannot prepare batch")
	}

	// prepare telemetry data collection and emit
	td := &TelemetryData{ExtractedType: batchType}
	defer cfg.TelemetryHook()(ctx, td)
	defer captureExtractionDuration(td, now())

	visited := NewVisitedSet()
	b := &batch{
		cfg:      cfg,
		tempRoot: tempRoot,
		sink:     newSink(cfg, policy, visited, newBufferPool(0)),
		td:       td,
	}
	defer b.sink.pool.release()

	// first wave inputs
	inputs := make([]string, 0, len(paths))
	for _, p := range paths {
		canonical, err := canonicalPath(p)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid path %s", p)
		}
		if visited.Add(canonical) {
			inputs = append(inputs, canonical)
		}
	}
	return b.run(ctx, inputs)
}

// batch holds the state of an [ExtractZipFiles] run.
type batch struct {
	cfg      *Config
	tempRoot string
	sink     *sink
	td       *TelemetryData
}

// waveDelta is the outcome of extracting a single input.
type waveDelta struct {
	path    string
	d       *delta
	failure error
}

// run executes waves until a wave extracts nothing.
func (b *batch) run(ctx context.Context, inputs []string) (*BatchResult, error) {
	log := b.cfg.Logger()
	res := &BatchResult{Failures: make(map[string]error)}

	for wave := 1; ; wave++ {
		if err := ctx.Err(); err != nil {
			return res, errors.Wrapf(err, "wave %d canceled", wave)
		}
		start := now()
		log.Info("start wave", "wave", wave, "inputs", len(inputs))

		// one task per input
		deltas := make([]waveDelta, len(inputs))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(b.cfg.Workers())
		for i, path := range inputs {
			i, path := i, path
			g.Go(func() error {
				deltas[i] = b.extractZip(gctx, path)
				return nil
			})
		}
		_ = g.Wait()

		// merge in submission order
		stats := WaveStats{Wave: wave, Inputs: len(inputs)}
		var next []string
		for _, wd := range deltas {
			if wd.failure != nil {
				res.Failures[wd.path] = wd.failure
				stats.Failures++
				handleError(b.cfg, wd.d, "cannot extract zip", wd.failure)
			}
			for _, item := range wd.d.produced {
				b.sink.pool.put(item.src.buf)
				next = append(next, item.src.path)
			}
			res.Warnings = append(res.Warnings, wd.d.warnings...)
			wd.d.applyTelemetry(b.td)
		}
		stats.Extracted = len(next)
		stats.Duration = now().Sub(start)
		res.Waves = append(res.Waves, stats)
		res.Extracted = append(res.Extracted, next...)

		if len(next) == 0 {
			log.Info("batch finished", "waves", wave, "extracted", len(res.Extracted))
			return res, nil
		}
		inputs = next
	}
}

// extractZip extracts the zip archive at path. Encrypted entries are skipped.
func (b *batch) extractZip(ctx context.Context, path string) waveDelta {
	wd := waveDelta{path: path, d: &delta{}}

	f, err := os.Open(path)
	if err != nil {
		wd.failure = errors.Wrap(err, "cannot open")
		return wd
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		wd.failure = errors.Wrap(err, "cannot stat")
		return wd
	}

	// check for zip signature
	header := make([]byte, len(magicBytesZip[0]))
	if _, err := f.ReadAt(header, 0); err != nil || !isZip(header) {
		b.cfg.Logger().Debug("not a zip archive", "path", path)
		return wd
	}

	w, err := newZipWalker(f, stat.Size())
	if err != nil {
		wd.failure = errors.Wrapf(err, "cannot read %s", path)
		return wd
	}
	outDir := extractDir(b.tempRoot, path)

	for {
		if err := ctx.Err(); err != nil {
			wd.failure = err
			return wd
		}
		ae, err := w.Next()
		switch {
		case err == io.EOF:
			return wd
		case errors.Is(err, ErrEncrypted):
			msg := fmt.Sprintf("%s: %s", path, err)
			b.cfg.Logger().Warn("skipping encrypted entry", "path", path, "error", err)
			wd.d.warnings = append(wd.d.warnings, msg)
			wd.d.unsupportedFiles++
			wd.d.lastUnsupportedFile = msg
			continue
		case err != nil:
			wd.failure = errors.Wrapf(err, "cannot read %s", path)
			return wd
		}
		if err := b.sink.write(ae, outDir, 1, wd.d); err != nil {
			wd.failure = errors.Wrapf(err, "cannot extract %s", path)
			return wd
		}
	}
}
