// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// delta collects the outcome of writing the entries of one container. It is
// merged into the report and the telemetry data by a single goroutine.
type delta struct {
	produced []workItem
	skipped  []string
	warnings []string

	extractedDirs       int64
	extractedFiles      int64
	extractionSize      int64
	errors              int64
	lastError           error
	patternMismatches   int64
	unsupportedFiles    int64
	lastUnsupportedFile string
}

// handleError increases the error counter, sets the latest error and logs it.
func handleError(c *Config, d *delta, msg string, err error) {
	d.errors++
	d.lastError = fmt.Errorf("%s: %w", msg, err)
	c.Logger().Error(msg, "error", err)
}

// applyTelemetry adds the counters of d to td.
func (d *delta) applyTelemetry(td *TelemetryData) {
	td.ExtractedDirs += d.extractedDirs
	td.ExtractedFiles += d.extractedFiles
	td.ExtractionSize += d.extractionSize
	td.ExtractionErrors += d.errors
	td.PatternMismatches += d.patternMismatches
	td.UnsupportedFiles += d.unsupportedFiles
	if d.lastError != nil {
		td.LastExtractionError = d.lastError
	}
	if len(d.lastUnsupportedFile) > 0 {
		td.LastUnsupportedFile = d.lastUnsupportedFile
	}
}

// sink writes decoded entries to the target and hands every written file
// over as a new work item. Small entries are kept in a pooled buffer, so that
// the next level can be probed without reading the file again.
type sink struct {
	cfg     *Config
	policy  *Policy
	visited *VisitedSet
	pool    *bufferPool
	target  Target

	// failedDirs are directories that could not be created
	failedDirs sync.Map

	// written is the number of bytes written in this run
	written atomic.Int64
}

// newSink returns a sink that shares policy, visited set and buffer pool with its run.
func newSink(cfg *Config, policy *Policy, visited *VisitedSet, pool *bufferPool) *sink {
	return &sink{
		cfg:     cfg,
		policy:  policy,
		visited: visited,
		pool:    pool,
		target:  cfg.Target(),
	}
}

// write extracts ae into outDir. Entries that are skipped or dropped are
// recorded in d and return nil. An error is returned if the entry could not
// be read or written, which ends the decoding of its container.
func (s *sink) write(ae archiveEntry, outDir string, level int, d *delta) error {
	log := s.cfg.Logger()

	// directories are created on demand
	if ae.IsDir() {
		return nil
	}
	if !ae.IsRegular() {
		log.Info("skipping unsupported entry", "name", ae.Name())
		d.unsupportedFiles++
		d.lastUnsupportedFile = ae.Name()
		return nil
	}

	// determine output path
	path, err := entryPath(s.target, outDir, ae.Name())
	if err != nil {
		handleError(s.cfg, d, "invalid entry name", fmt.Errorf("%q: %w", ae.Name(), err))
		return nil
	}

	// check if entry needs to match patterns
	if !s.policy.Match(ae.Name()) {
		log.Debug("skipping entry (pattern mismatch)", "name", ae.Name())
		d.skipped = append(d.skipped, path)
		d.patternMismatches++
		return nil
	}

	// every output path is written once per run
	if !s.visited.Add(path) {
		log.Debug("skipping entry (already visited)", "path", path)
		return nil
	}

	// announced sizes are checked before anything is written
	if size := ae.Size(); size >= 0 {
		if err := s.cfg.CheckExtractionSize(s.written.Load() + size); err != nil {
			return fmt.Errorf("cannot extract %s: %w", ae.Name(), err)
		}
	}

	// ensure parent directory exists
	if !s.ensureDir(filepath.Dir(path), d) {
		return nil
	}

	rc, err := ae.Open()
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", ae.Name(), err)
	}
	defer rc.Close()

	log.Debug("extract", "name", ae.Name(), "level", level)
	if size := ae.Size(); size >= 0 && size <= s.cfg.InMemoryThreshold() {
		return s.writeBuffered(rc, path, level, d)
	}
	return s.writeStreamed(rc, path, level, d)
}

// ensureDir creates dir once per run. It returns false if dir can not be used.
func (s *sink) ensureDir(dir string, d *delta) bool {
	if _, failed := s.failedDirs.Load(dir); failed {
		return false
	}
	if !s.visited.Add(dir) {
		return true
	}
	if err := s.target.CreateDir(dir, s.cfg.CustomCreateDirMode()); err != nil {
		s.failedDirs.Store(dir, struct{}{})
		handleError(s.cfg, d, "cannot create directory", err)
		return false
	}
	d.extractedDirs++
	return true
}

// writeBuffered reads src into a pooled buffer, writes it to path and hands
// the buffer over. If src is larger than announced, the rest is streamed.
func (s *sink) writeBuffered(src io.Reader, path string, level int, d *delta) error {
	buf := s.pool.acquire()
	_, err := buf.ReadFrom(newLimitErrorReader(src, s.cfg.InMemoryThreshold()+1))
	switch {

	// spill to disk
	case errors.Is(err, errReadLimitExceeded):
		_, err := s.create(path, io.MultiReader(bytes.NewReader(buf.B), src), d)
		s.pool.put(buf)
		if err != nil {
			return err
		}
		d.produced = append(d.produced, workItem{src: source{path: path}, level: level + 1})
		return nil

	case err != nil:
		s.pool.put(buf)
		return fmt.Errorf("cannot read %s: %w", path, err)
	}

	n, err := s.create(path, bytes.NewReader(buf.B), d)
	if err != nil {
		s.pool.put(buf)
		return err
	}
	if n != int64(buf.Len()) {
		s.pool.put(buf)
		return fmt.Errorf("short write %s: %d of %d bytes", path, n, buf.Len())
	}

	// keep the buffer if the limit allows it
	if !s.pool.hold(buf) {
		s.pool.put(buf)
		d.produced = append(d.produced, workItem{src: source{path: path}, level: level + 1})
		return nil
	}
	d.produced = append(d.produced, workItem{src: source{path: path, buf: buf}, level: level + 1})
	return nil
}

// writeStreamed copies src to path.
func (s *sink) writeStreamed(src io.Reader, path string, level int, d *delta) error {
	if _, err := s.create(path, src, d); err != nil {
		return err
	}
	d.produced = append(d.produced, workItem{src: source{path: path}, level: level + 1})
	return nil
}

// create writes src to path within the remaining extraction budget.
func (s *sink) create(path string, src io.Reader, d *delta) (int64, error) {
	n, err := s.target.CreateFile(path, src, s.cfg.CustomDecompressFileMode(), true, s.budget())
	s.written.Add(n)
	s.cfg.Metrics().recordBytes(n)
	d.extractionSize += n
	if err != nil {
		return n, fmt.Errorf("cannot create file %s: %w", path, err)
	}
	d.extractedFiles++
	return n, nil
}

// budget returns the number of bytes that can still be written, or -1 if
// the extraction size is not limited.
func (s *sink) budget() int64 {
	if s.cfg.MaxExtractionSize() < 0 {
		return -1
	}
	remaining := s.cfg.MaxExtractionSize() - s.written.Load()
	if remaining < 0 {
		return 0
	}
	return remaining
}
