// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
)

// ConfigOption is a function pointer to implement the option pattern
type ConfigOption func(*Config)

// Config provides a configuration struct and options to adjust the configuration.
//
// The configuration struct holds all configuration options for an unpack run.
// The configuration options can be adjusted using the option pattern style.
type Config struct {
	// cleanTempDir removes the content of the temp directory before a run
	cleanTempDir bool

	// customCreateDirMode is the file mode for created extraction directories (respecting umask)
	customCreateDirMode fs.FileMode

	// customDecompressFileMode is the file mode for extracted and decompressed files (respecting umask)
	customDecompressFileMode fs.FileMode

	// excludes is a list of regular expressions, a selected name must not match
	excludes []string

	// followSymlinks follows symlinks to directories while walking the roots
	followSymlinks bool

	// includes is a list of regular expressions, a selected name must match
	// at least one of them. An empty list selects everything.
	includes []string

	// logger stream for unpacking
	logger logger

	// maxBufferedBytes is the maximum of bytes held in memory for pending
	// nested entries. Set value to -1 to disable the check.
	maxBufferedBytes int64

	// maxDepth is the maximum recursion level that is probed for archives.
	// Set value to -1 to disable the check.
	maxDepth int

	// maxExtractionSize is the maximum size over all extracted files of a run.
	// Set value to -1 to disable the check.
	maxExtractionSize int64

	// metrics receives probe and classification counters, nil disables it
	metrics *Metrics

	// noUntarAfterDecompression disables the combined extraction of compressed tar archives
	noUntarAfterDecompression bool

	// readBufferSize is the size of the buffers used for copying
	readBufferSize int

	// target is used to create directories and files
	target Target

	// telemetryHook is a function to consume telemetry data after a finished run
	telemetryHook TelemetryHook

	// tempDir is the root directory for all extraction directories
	tempDir string

	// workers is the number of concurrent tasks in batch mode
	workers int
}

// CleanTempDir returns true if the temp directory is cleaned before a run.
func (c *Config) CleanTempDir() bool {
	return c.cleanTempDir
}

// CheckExtractionSize checks if size exceeds the configured maximum. If the maximum is exceeded,
// a [ErrMaxExtractionSizeExceeded] error is returned.
func (c *Config) CheckExtractionSize(size int64) error {

	// check if disabled
	if c.MaxExtractionSize() == -1 {
		return nil
	}

	// check value
	if size > c.MaxExtractionSize() {
		return ErrMaxExtractionSizeExceeded
	}
	return nil
}

// CheckDepth checks if level exceeds the configured maximum recursion depth. If the
// maximum is exceeded, a [ErrMaxDepthExceeded] error is returned.
func (c *Config) CheckDepth(level int) error {
	if c.MaxDepth() == -1 {
		return nil
	}
	if level > c.MaxDepth() {
		return ErrMaxDepthExceeded
	}
	return nil
}

// CustomCreateDirMode returns the file mode for created directories. (respecting umask)
func (c *Config) CustomCreateDirMode() fs.FileMode {
	return c.customCreateDirMode
}

// CustomDecompressFileMode returns the file mode for extracted files. (respecting umask)
func (c *Config) CustomDecompressFileMode() fs.FileMode {
	return c.customDecompressFileMode
}

// Excludes returns the exclude patterns.
func (c *Config) Excludes() []string {
	return c.excludes
}

// FollowSymlinks returns true if symlinks to directories are followed while walking.
func (c *Config) FollowSymlinks() bool {
	return c.followSymlinks
}

// InMemoryThreshold returns the maximum declared entry size that is buffered in
// memory instead of streamed to disk.
func (c *Config) InMemoryThreshold() int64 {
	return int64(c.readBufferSize) * inMemoryBufferFactor
}

// Includes returns the include patterns.
func (c *Config) Includes() []string {
	return c.includes
}

// Logger returns the logger.
func (c *Config) Logger() logger {
	return c.logger
}

// MaxBufferedBytes returns the maximum of bytes held in memory for pending nested entries.
func (c *Config) MaxBufferedBytes() int64 {
	return c.maxBufferedBytes
}

// MaxDepth returns the maximum recursion level that is probed for archives.
func (c *Config) MaxDepth() int {
	return c.maxDepth
}

// MaxExtractionSize returns the maximum size over all extracted files of a run.
func (c *Config) MaxExtractionSize() int64 {
	return c.maxExtractionSize
}

// Metrics returns the configured metrics or nil.
func (c *Config) Metrics() *Metrics {
	return c.metrics
}

// NoUntarAfterDecompression returns true if compressed tar archives should NOT be
// extracted in one step.
func (c *Config) NoUntarAfterDecompression() bool {
	return c.noUntarAfterDecompression
}

// ReadBufferSize returns the size of the copy buffers.
func (c *Config) ReadBufferSize() int {
	return c.readBufferSize
}

// Target returns the target that is used to create directories and files.
func (c *Config) Target() Target {
	if c.target == nil {
		return NewTargetDisk()
	}
	return c.target
}

// TelemetryHook returns the telemetry hook.
func (c *Config) TelemetryHook() TelemetryHook {
	if c.telemetryHook == nil {
		return defaultTelemetryHook
	}
	return c.telemetryHook
}

// TempDir returns the root directory of all extraction directories.
func (c *Config) TempDir() string {
	return c.tempDir
}

// Workers returns the number of concurrent tasks in batch mode.
func (c *Config) Workers() int {
	return c.workers
}

const (
	defaultCleanTempDir              = false          // keep previous results
	defaultCustomCreateDirMode       = 0750           // default directory permissions rwxr-x---
	defaultCustomDecompressFileMode  = 0640           // default file permissions rw-r-----
	defaultFollowSymlinks            = false          // don't follow symlinks while walking
	defaultMaxBufferedBytes          = 64 << (10 * 2) // 64 Mb
	defaultMaxDepth                  = 32             // nesting levels
	defaultMaxExtractionSize         = -1             // unlimited
	defaultNoUntarAfterDecompression = false          // extract compressed tar in one step
	defaultReadBufferSize            = 1 << (10 * 2)  // 1 Mb
	defaultTempDirName               = "unpack"       // below os.TempDir()

	// inMemoryBufferFactor multiplied with the read buffer size is the largest
	// entry that is buffered in memory
	inMemoryBufferFactor = 4
)

var (
	// slog to discard
	defaultLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	// no operation telemetry hook
	defaultTelemetryHook = func(ctx context.Context, d *TelemetryData) {
		// noop
	}

	// MatchAll selects every name.
	MatchAll = []string{".*"}

	// MatchClassFiles selects compiled java classes, which are excluded by default.
	MatchClassFiles = []string{`.*\.class`}
)

// NewConfig is a generator option that takes opts as adjustments of the
// default configuration in an option pattern style.
func NewConfig(opts ...ConfigOption) *Config {

	// setup default values
	config := &Config{
		cleanTempDir:              defaultCleanTempDir,
		customCreateDirMode:       defaultCustomCreateDirMode,
		customDecompressFileMode:  defaultCustomDecompressFileMode,
		excludes:                  MatchClassFiles,
		followSymlinks:            defaultFollowSymlinks,
		includes:                  MatchAll,
		logger:                    defaultLogger,
		maxBufferedBytes:          defaultMaxBufferedBytes,
		maxDepth:                  defaultMaxDepth,
		maxExtractionSize:         defaultMaxExtractionSize,
		noUntarAfterDecompression: defaultNoUntarAfterDecompression,
		readBufferSize:            defaultReadBufferSize,
		telemetryHook:             defaultTelemetryHook,
		tempDir:                   filepath.Join(os.TempDir(), defaultTempDirName),
		workers:                   runtime.NumCPU(),
	}

	// Loop through each option
	for _, opt := range opts {
		opt(config)
	}

	return config
}

// WithCleanTempDir options pattern function to remove the content of the temp
// directory before a run.
func WithCleanTempDir(clean bool) ConfigOption {
	return func(c *Config) {
		c.cleanTempDir = clean
	}
}

// WithCustomCreateDirMode options pattern function to set the file mode
// for created extraction directories. (respecting umask)
func WithCustomCreateDirMode(mode fs.FileMode) ConfigOption {
	return func(c *Config) {
		c.customCreateDirMode = mode
	}
}

// WithCustomDecompressFileMode options pattern function to set the file mode for
// extracted files. (respecting umask)
func WithCustomDecompressFileMode(mode fs.FileMode) ConfigOption {
	return func(c *Config) {
		c.customDecompressFileMode = mode
	}
}

// WithExcludes options pattern function to replace the exclude patterns. Patterns
// are regular expressions that must match the complete name. Calling it without
// patterns removes the default exclusion of java class files.
func WithExcludes(patterns ...string) ConfigOption {
	return func(c *Config) {
		c.excludes = patterns
	}
}

// WithFollowSymlinks options pattern function to follow symlinks to directories
// while walking the roots.
func WithFollowSymlinks(follow bool) ConfigOption {
	return func(c *Config) {
		c.followSymlinks = follow
	}
}

// WithIncludes options pattern function to replace the include patterns. Patterns
// are regular expressions that must match the complete name.
func WithIncludes(patterns ...string) ConfigOption {
	return func(c *Config) {
		c.includes = patterns
	}
}

// WithLogger options pattern function to set a custom logger.
func WithLogger(logger logger) ConfigOption {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithMaxBufferedBytes options pattern function to set the maximum of bytes held in
// memory for pending nested entries. (-1 to disable check)
func WithMaxBufferedBytes(maxBufferedBytes int64) ConfigOption {
	return func(c *Config) {
		c.maxBufferedBytes = maxBufferedBytes
	}
}

// WithMaxDepth options pattern function to set the maximum recursion level that
// is probed for archives. (-1 to disable check)
func WithMaxDepth(maxDepth int) ConfigOption {
	return func(c *Config) {
		c.maxDepth = maxDepth
	}
}

// WithMaxExtractionSize options pattern function to set maximum size over all
// extracted files of a run. (-1 to disable check)
func WithMaxExtractionSize(maxExtractionSize int64) ConfigOption {
	return func(c *Config) {
		c.maxExtractionSize = maxExtractionSize
	}
}

// WithMetrics options pattern function to record prometheus metrics.
func WithMetrics(m *Metrics) ConfigOption {
	return func(c *Config) {
		c.metrics = m
	}
}

// WithNoUntarAfterDecompression options pattern function to enable/disable combined
// extraction of compressed tar archives.
func WithNoUntarAfterDecompression(disable bool) ConfigOption {
	return func(c *Config) {
		c.noUntarAfterDecompression = disable
	}
}

// WithReadBufferSize options pattern function to set the copy buffer size. Entries up
// to four times this size are buffered in memory.
func WithReadBufferSize(size int) ConfigOption {
	return func(c *Config) {
		if size > 0 {
			c.readBufferSize = size
		}
	}
}

// WithTarget options pattern function to set a custom [Target].
func WithTarget(t Target) ConfigOption {
	return func(c *Config) {
		c.target = t
	}
}

// WithTelemetryHook options pattern function to set a [TelemetryHook], which is called after a run.
func WithTelemetryHook(hook TelemetryHook) ConfigOption {
	return func(c *Config) {
		c.telemetryHook = hook
	}
}

// WithTempDir options pattern function to set the root directory of all extraction directories.
func WithTempDir(dir string) ConfigOption {
	return func(c *Config) {
		if len(dir) > 0 {
			c.tempDir = dir
		}
	}
}

// WithWorkers options pattern function to set the number of concurrent tasks in batch mode.
func WithWorkers(workers int) ConfigOption {
	return func(c *Config) {
		if workers > 0 {
			c.workers = workers
		}
	}
}
