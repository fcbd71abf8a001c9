// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

// jsonAPI is the json codec of reports and telemetry data.
var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Class is the classification of a path.
type Class int

const (
	// Skipped paths do not match the include/exclude policy
	Skipped Class = iota

	// InvalidFile paths could not be read or are not regular files
	InvalidFile

	// ValidFile paths are regular files, which are probed for archives
	ValidFile

	// InvalidArchive paths are files that no probe could decode
	InvalidArchive

	// ValidArchive paths are files that were decoded or recognized by a probe
	ValidArchive
)

// classes lists all classes in report order.
var classes = []Class{Skipped, InvalidFile, ValidFile, InvalidArchive, ValidArchive}

// String returns the name of the class.
func (c Class) String() string {
	switch c {
	case Skipped:
		return "skipped"
	case InvalidFile:
		return "invalid_file"
	case ValidFile:
		return "valid_file"
	case InvalidArchive:
		return "invalid_archive"
	case ValidArchive:
		return "valid_archive"
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// title is the label of the class in the text summary.
func (c Class) title() string {
	switch c {
	case Skipped:
		return "Skipped files"
	case InvalidFile:
		return "Invalid files"
	case ValidFile:
		return "Valid files"
	case InvalidArchive:
		return "Invalid archives"
	case ValidArchive:
		return "Valid archives"
	}
	return c.String()
}

// Report is the classification of all paths of a run. The buckets are
// append-only and keep the order in which paths were classified.
type Report struct {
	mu sync.Mutex

	Skipped         []string          `json:"skipped"`
	InvalidFiles    []string          `json:"invalid_files"`
	ValidFiles      []string          `json:"valid_files"`
	InvalidArchives []string          `json:"invalid_archives"`
	ValidArchives   []string          `json:"valid_archives"`
	Warnings        []string          `json:"warnings"`
	Formats         map[string]string `json:"formats"`
	VisitedPaths    int               `json:"visited_paths"`
}

// newReport returns an empty report.
func newReport() *Report {
	return &Report{Formats: make(map[string]string)}
}

// bucket returns the bucket of c. The caller must hold the lock.
func (r *Report) bucket(c Class) *[]string {
	switch c {
	case Skipped:
		return &r.Skipped
	case InvalidFile:
		return &r.InvalidFiles
	case ValidFile:
		return &r.ValidFiles
	case InvalidArchive:
		return &r.InvalidArchives
	}
	return &r.ValidArchives
}

// add appends path to the bucket of c.
func (r *Report) add(c Class, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.bucket(c)
	*b = append(*b, path)
}

// addWarning records a warning message.
func (r *Report) addWarning(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Warnings = append(r.Warnings, msg)
}

// setFormat records the detected format of path.
func (r *Report) setFormat(path string, format string) {
	if len(format) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Formats[path] = format
}

// Paths returns a copy of the bucket of c.
func (r *Report) Paths(c Class) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), *r.bucket(c)...)
}

// ExtensionGroup is a set of extensions that occur equally often in a bucket.
type ExtensionGroup struct {
	Count      int      `json:"count"`
	Extensions []string `json:"extensions"`
}

// BucketSummary summarizes the extensions of one bucket.
type BucketSummary struct {
	Class  Class            `json:"-"`
	Name   string           `json:"name"`
	Total  int              `json:"total"`
	Groups []ExtensionGroup `json:"groups"`
}

// Summary returns one summary per bucket in report order. Groups are sorted by
// descending count, the extensions of a group ascending.
func (r *Report) Summary() []BucketSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	summaries := make([]BucketSummary, 0, len(classes))
	for _, c := range classes {
		paths := *r.bucket(c)
		summaries = append(summaries, BucketSummary{
			Class:  c,
			Name:   c.String(),
			Total:  len(paths),
			Groups: groupExtensions(paths),
		})
	}
	return summaries
}

// extension returns the text after the last dot of the base name, or the
// complete base name if there is no dot.
func extension(path string) string {
	base := filepath.Base(path)
	if i := strings.LastIndex(base, "."); i >= 0 {
		return base[i+1:]
	}
	return base
}

// groupExtensions counts the extensions of paths and groups them by count.
func groupExtensions(paths []string) []ExtensionGroup {
	counts := make(map[string]int)
	for _, p := range paths {
		counts[extension(p)]++
	}
	byCount := make(map[int][]string)
	for ext, n := range counts {
		byCount[n] = append(byCount[n], ext)
	}
	groups := make([]ExtensionGroup, 0, len(byCount))
	for n, exts := range byCount {
		sort.Strings(exts)
		groups = append(groups, ExtensionGroup{Count: n, Extensions: exts})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Count > groups[j].Count
	})
	return groups
}

// WriteJSON writes the report as indented json to w.
func (r *Report) WriteJSON(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	enc := jsonAPI.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteSummary writes the number of paths and their extensions per bucket to w.
//
//	Valid archives   3, types: 2 x [jar zip], 1 x [gz]
func (r *Report) WriteSummary(w io.Writer) error {
	for _, s := range r.Summary() {
		groups := make([]string, 0, len(s.Groups))
		for _, g := range s.Groups {
			groups = append(groups, fmt.Sprintf("%d x %v", g.Count, g.Extensions))
		}
		if _, err := fmt.Fprintf(w, "%-16s %d, types: %s\n", s.Class.title(), s.Total, strings.Join(groups, ", ")); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range r.Warnings {
		if _, err := fmt.Fprintf(w, "warning: %s\n", msg); err != nil {
			return err
		}
	}
	return nil
}
