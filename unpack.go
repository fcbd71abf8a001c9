// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// unpackType is the telemetry type of [Unpack] runs.
const unpackType = "unpack"

// Unpack classifies all files below paths and extracts every detected archive
// into the temp directory of cfg. Extracted files are classified and
// extracted again, until no further archive is found.
//
// Paths can be files and directories. Each path is visited once per run, also
// if it is reachable through several roots or archives. Failures of single
// files are recorded in the returned [Report] and do not end the run. An
// error is returned for invalid arguments, and if ctx is canceled. In the
// latter case the report holds the paths classified so far.
func Unpack(ctx context.Context, cfg *Config, paths ...string) (*Report, error) {
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
		return nil, err
	}
	tempRoot, err := prepareTempDir(cfg)
	if err != nil {
		return nil, err
	}

	// prepare telemetry data collection and emit
	td := &TelemetryData{ExtractedType: unpackType}
	defer cfg.TelemetryHook()(ctx, td)
	defer captureExtractionDuration(td, now())

	e := newEngine(cfg, policy, tempRoot, td)
	defer e.pool.release()
	return e.run(ctx, paths)
}

// prepareTempDir creates the temp directory of cfg, after it was removed if
// configured. The canonical path is returned.
func prepareTempDir(cfg *Config) (string, error) {
	root, err := filepath.Abs(cfg.TempDir())
	if err != nil {
		return "", fmt.Errorf("invalid temp dir: %w", err)
	}
	t := cfg.Target()
	if cfg.CleanTempDir() {
		if err := t.RemoveAll(root); err != nil {
			return "", fmt.Errorf("cannot clean temp dir: %w", err)
		}
	}
	if err := t.CreateDir(root, cfg.CustomCreateDirMode()); err != nil {
		return "", fmt.Errorf("cannot create temp dir: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	return root, nil
}

// engine processes the work items of one run in depth first order. It runs
// on a single goroutine.
type engine struct {
	cfg      *Config
	policy   *Policy
	tempRoot string

	visited *VisitedSet
	pool    *bufferPool
	sink    *sink
	cascade *cascade

	report *Report
	td     *TelemetryData

	stack []workItem
}

// newEngine returns an engine with empty state.
func newEngine(cfg *Config, policy *Policy, tempRoot string, td *TelemetryData) *engine {
	visited := NewVisitedSet()
	pool := newBufferPool(cfg.MaxBufferedBytes())
	return &engine{
		cfg:      cfg,
		policy:   policy,
		tempRoot: tempRoot,
		visited:  visited,
		pool:     pool,
		sink:     newSink(cfg, policy, visited, pool),
		cascade:  newCascade(cfg),
		report:   newReport(),
		td:       td,
	}
}

// run processes paths and everything extracted from them.
func (e *engine) run(ctx context.Context, paths []string) (*Report, error) {
	log := e.cfg.Logger()
	log.Info("start unpack", "paths", len(paths), "tempDir", e.tempRoot)

	// canonical roots, each once
	roots := make([]workItem, 0, len(paths))
	for _, p := range paths {
		canonical, err := canonicalPath(p)
		if err != nil {
			e.classify(InvalidFile, p)
			e.fail("invalid path", err)
			continue
		}
		if !e.visited.Add(canonical) {
			log.Debug("skipping path (already visited)", "path", canonical)
			continue
		}
		roots = append(roots, workItem{src: source{path: canonical}, level: 1, root: true})
	}
	e.push(roots...)

	// process items until the stack is empty
	for len(e.stack) > 0 {
		if err := ctx.Err(); err != nil {
			e.report.VisitedPaths = e.visited.Len()
			return e.report, err
		}
		item := e.stack[len(e.stack)-1]
		e.stack = e.stack[:len(e.stack)-1]
		e.process(ctx, item)
	}

	e.report.VisitedPaths = e.visited.Len()
	log.Info("unpack finished",
		"validFiles", len(e.report.ValidFiles),
		"validArchives", len(e.report.ValidArchives),
		"invalidArchives", len(e.report.InvalidArchives),
		"errors", e.td.ExtractionErrors,
	)
	return e.report, nil
}

// push adds items to the stack, so that the first item is processed first.
func (e *engine) push(items ...workItem) {
	for i := len(items) - 1; i >= 0; i-- {
		e.stack = append(e.stack, items[i])
	}
}

// process classifies a single item and extracts it, if it is an archive.
func (e *engine) process(ctx context.Context, item workItem) {
	log := e.cfg.Logger()
	path := item.src.path
	defer e.pool.put(item.src.buf)

	// items from disk are checked first
	if !item.src.inMemory() {
		info, err := os.Stat(path)
		if err != nil {
			e.classify(InvalidFile, path)
			e.fail("cannot stat file", err)
			return
		}
		if info.IsDir() {
			e.expand(path, item.level)
			return
		}
		if !info.Mode().IsRegular() {
			log.Debug("not a regular file", "path", path, "mode", info.Mode().Type())
			e.classify(InvalidFile, path)
			return
		}
		if item.root && !e.policy.Match(path) {
			log.Debug("skipping file (pattern mismatch)", "path", path)
			e.classify(Skipped, path)
			e.td.PatternMismatches++
			return
		}
	}
	e.classify(ValidFile, path)

	// check recursion depth
	if err := e.cfg.CheckDepth(item.level); err != nil {
		log.Warn("max depth reached", "path", path, "level", item.level)
		e.report.addWarning(fmt.Sprintf("%s: %s", path, err))
		e.td.MaxDepthReached++
		return
	}

	// probe and extract
	outDir := extractDir(e.tempRoot, path)
	d := &delta{}
	res := e.cascade.run(ctx, item.src, func(ae archiveEntry) error {
		return e.sink.write(ae, outDir, item.level, d)
	})
	e.merge(d)
	e.report.setFormat(path, res.Format)

	switch res.Kind {
	case Decoded:
		log.Info("archive decoded", "path", path, "format", res.Format, "entries", res.Entries, "level", item.level)
		e.classify(ValidArchive, path)
	case Unsupported:
		log.Warn("unsupported archive", "path", path, "format", res.Format, "error", res.Err)
		e.classify(ValidArchive, path)
		e.report.addWarning(fmt.Sprintf("%s: %s", path, res.Err))
		e.td.UnsupportedFiles++
		e.td.LastUnsupportedFile = path
	case IOError:
		e.classify(InvalidArchive, path)
		e.fail("cannot decode archive", fmt.Errorf("%s: %w", path, res.Err))
	default:
		log.Debug("no archive format detected", "path", path)
		e.classify(InvalidArchive, path)
	}

	e.push(d.produced...)
}

// expand pushes the files below dir.
func (e *engine) expand(dir string, level int) {
	found, skipped, err := search(dir, false, e.cfg.FollowSymlinks(), e.policy, e.visited)
	if err != nil {
		e.fail("cannot walk directory", err)
	}
	for _, p := range skipped {
		e.classify(Skipped, p)
		e.td.PatternMismatches++
	}
	items := make([]workItem, 0, len(found))
	for _, p := range found {
		items = append(items, workItem{src: source{path: p}, level: level})
	}
	e.push(items...)
}

// classify adds path to the bucket of c.
func (e *engine) classify(c Class, path string) {
	e.report.add(c, path)
	e.cfg.Metrics().recordClass(c)
}

// fail records an error that does not end the run.
func (e *engine) fail(msg string, err error) {
	d := &delta{}
	handleError(e.cfg, d, msg, err)
	d.applyTelemetry(e.td)
}

// merge adds the outcome of a sink run to the report and telemetry data.
func (e *engine) merge(d *delta) {
	for _, p := range d.skipped {
		e.classify(Skipped, p)
	}
	for _, w := range d.warnings {
		e.report.addWarning(w)
	}
	d.applyTelemetry(e.td)
}
