package unpack

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRun holds the directories of a single unpack test.
type testRun struct {
	in  string
	out string
	td  *TelemetryData
}

// newTestRun returns an input directory and a temp directory below distinct roots.
func newTestRun(t *testing.T) *testRun {
	t.Helper()
	return &testRun{in: canonicalTempDir(t), out: filepath.Join(canonicalTempDir(t), "out")}
}

// config returns the options of the run plus opts.
func (r *testRun) config(opts ...ConfigOption) *Config {
	base := []ConfigOption{
		WithTempDir(r.out),
		WithTelemetryHook(func(ctx context.Context, td *TelemetryData) {
			r.td = td
		}),
	}
	return NewConfig(append(base, opts...)...)
}

// mirror returns the extraction directory of an archive in the input directory.
func (r *testRun) mirror(name string) string {
	return filepath.Join(r.out, strings.TrimLeft(r.in, `/\`), "_"+name+"_")
}

func TestUnpackFlatZip(t *testing.T) {
	r := newTestRun(t)
	archive := writeTestFile(t, r.in, "flat.zip", zipBytes(t, files("a.txt", "alpha", "b.txt", "bravo")))

	report, err := Unpack(context.Background(), r.config(), archive)
	require.NoError(t, err)

	dir := r.mirror("flat.zip")
	assert.Equal(t, "alpha", readFile(t, filepath.Join(dir, "a.txt")))
	assert.Equal(t, "bravo", readFile(t, filepath.Join(dir, "b.txt")))
	assert.Equal(t, []string{archive}, report.ValidArchives)
	assert.ElementsMatch(t, []string{archive, filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.txt")}, report.ValidFiles)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.txt")}, report.InvalidArchives)
	assert.Equal(t, "zip", report.Formats[archive])

	require.NotNil(t, r.td)
	assert.Equal(t, "unpack", r.td.ExtractedType)
	assert.Equal(t, int64(2), r.td.ExtractedFiles)
	assert.Equal(t, int64(10), r.td.ExtractionSize)
}

func TestUnpackNested(t *testing.T) {
	r := newTestRun(t)
	inner := zipBytes(t, files("hello.txt", "hello world"))
	outer := compress(t, "gz", tarBytes(t, []testFile{{name: "inner.zip", data: inner}}))
	archive := writeTestFile(t, r.in, "outer.tar.gz", outer)

	report, err := Unpack(context.Background(), r.config(), r.in)
	require.NoError(t, err)

	innerPath := filepath.Join(r.mirror("outer.tar.gz"), "inner.zip")
	hello := filepath.Join(r.mirror("outer.tar.gz"), "_inner.zip_", "hello.txt")
	assert.Equal(t, "hello world", readFile(t, hello))
	assert.Equal(t, []string{archive, innerPath}, report.ValidArchives)
	assert.Equal(t, []string{hello}, report.InvalidArchives)
	assert.Equal(t, "tar.gz", report.Formats[archive])
	assert.Equal(t, "zip", report.Formats[innerPath])
	assert.Empty(t, report.Warnings)
	assert.Equal(t, int64(0), r.td.ExtractionErrors)
}

func TestUnpackRpm(t *testing.T) {
	r := newTestRun(t)
	payload := compress(t, "gz", cpioBytes(t, files("usr/bin/tool", "binary", "etc/tool.conf", "conf")))
	archive := writeTestFile(t, r.in, "x.rpm", rpmBytes("x", "gzip", payload))

	report, err := Unpack(context.Background(), r.config(), archive)
	require.NoError(t, err)

	payloadPath := filepath.Join(r.mirror("x.rpm"), "x.cpio")
	payloadDir := filepath.Join(r.mirror("x.rpm"), "_x.cpio_")
	assert.FileExists(t, payloadPath)
	assert.Equal(t, "binary", readFile(t, filepath.Join(payloadDir, "usr", "bin", "tool")))
	assert.Equal(t, "conf", readFile(t, filepath.Join(payloadDir, "etc", "tool.conf")))
	assert.Equal(t, []string{archive, payloadPath}, report.ValidArchives)
	assert.Equal(t, "rpm", report.Formats[archive])
	assert.Equal(t, "cpio", report.Formats[payloadPath])
}

func TestUnpackPlainFile(t *testing.T) {
	r := newTestRun(t)
	path := writeTestFile(t, r.in, "notes.txt", []byte("not an archive"))

	report, err := Unpack(context.Background(), r.config(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{path}, report.ValidFiles)
	assert.Equal(t, []string{path}, report.InvalidArchives)
	assert.Empty(t, report.ValidArchives)
	assert.NoDirExists(t, r.mirror("notes.txt"))
}

func TestUnpackIdempotent(t *testing.T) {
	r := newTestRun(t)
	inner := zipBytes(t, files("hello.txt", "hello world"))
	writeTestFile(t, r.in, "outer.zip", zipBytes(t, []testFile{{name: "inner.zip", data: inner}}))

	first, err := Unpack(context.Background(), r.config(), r.in)
	require.NoError(t, err)
	second, err := Unpack(context.Background(), r.config(), r.in)
	require.NoError(t, err)

	assert.Equal(t, first.Summary(), second.Summary())
	assert.Equal(t, first.ValidArchives, second.ValidArchives)
}

func TestUnpackNoDuplicates(t *testing.T) {
	r := newTestRun(t)
	archive := writeTestFile(t, r.in, "a.zip", zipBytes(t, files("a.txt", "alpha")))
	link := filepath.Join(r.in, "link.zip")
	if err := os.Symlink(archive, link); err != nil {
		t.Skipf("cannot create symlink: %s", err)
	}

	report, err := Unpack(context.Background(), r.config(), archive, r.in, archive, link)
	require.NoError(t, err)

	assert.Equal(t, []string{archive}, report.ValidArchives)
	seen := make(map[string]bool)
	for _, p := range report.ValidFiles {
		assert.False(t, seen[p], "duplicate %s", p)
		seen[p] = true
	}
}

func TestUnpackMaxDepth(t *testing.T) {
	r := newTestRun(t)
	inner := zipBytes(t, files("hello.txt", "hello world"))
	archive := writeTestFile(t, r.in, "outer.zip", zipBytes(t, []testFile{{name: "inner.zip", data: inner}}))

	report, err := Unpack(context.Background(), r.config(WithMaxDepth(1)), archive)
	require.NoError(t, err)

	innerPath := filepath.Join(r.mirror("outer.zip"), "inner.zip")
	assert.Equal(t, []string{archive}, report.ValidArchives)
	assert.Equal(t, []string{archive, innerPath}, report.ValidFiles)
	assert.FileExists(t, innerPath)
	assert.NoDirExists(t, filepath.Join(r.mirror("outer.zip"), "_inner.zip_"))
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], ErrMaxDepthExceeded.Error())
	assert.Equal(t, int64(1), r.td.MaxDepthReached)
}

func TestUnpackPolicy(t *testing.T) {
	r := newTestRun(t)
	archive := writeTestFile(t, r.in, "a.zip", zipBytes(t, files("keep.txt", "k", "Drop.class", "d")))
	skippedRoot := writeTestFile(t, r.in, "Root.class", []byte("root"))

	report, err := Unpack(context.Background(), r.config(), archive, skippedRoot)
	require.NoError(t, err)

	dir := r.mirror("a.zip")
	assert.ElementsMatch(t, []string{filepath.Join(dir, "Drop.class"), skippedRoot}, report.Skipped)
	assert.FileExists(t, filepath.Join(dir, "keep.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "Drop.class"))
	assert.Equal(t, int64(2), r.td.PatternMismatches)
}

func TestUnpackSkippedOnce(t *testing.T) {
	r := newTestRun(t)
	skippedRoot := writeTestFile(t, r.in, "Root.class", []byte("root"))

	// the file is given as root and found again below its directory
	report, err := Unpack(context.Background(), r.config(), r.in, skippedRoot)
	require.NoError(t, err)

	assert.Equal(t, []string{skippedRoot}, report.Skipped)
	assert.Equal(t, int64(1), r.td.PatternMismatches)
}

func TestUnpackEncrypted(t *testing.T) {
	r := newTestRun(t)
	archive := writeTestFile(t, r.in, "secret.rar", rarBytes(files("a.txt", "alpha"), true))

	report, err := Unpack(context.Background(), r.config(), archive)
	require.NoError(t, err)

	assert.Equal(t, []string{archive}, report.ValidArchives)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], ErrEncrypted.Error())
	assert.Equal(t, int64(1), r.td.UnsupportedFiles)
}

func TestUnpackEncryptedEntry(t *testing.T) {
	r := newTestRun(t)
	archive := writeTestFile(t, r.in, "entry.rar", rarBytes(files("a.txt", "alpha"), false, "a.txt"))

	report, err := Unpack(context.Background(), r.config(), archive)
	require.NoError(t, err)

	assert.Equal(t, []string{archive}, report.ValidArchives)
	assert.Equal(t, []string{archive}, report.ValidFiles)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "a.txt")
	assert.NoFileExists(t, filepath.Join(r.mirror("entry.rar"), "a.txt"))
}

func TestUnpackCorruptArchive(t *testing.T) {
	r := newTestRun(t)
	archive := writeTestFile(t, r.in, "broken.gz", []byte{0x1f, 0x8b, 0xff, 0xff})

	report, err := Unpack(context.Background(), r.config(), archive)
	require.NoError(t, err)

	assert.Equal(t, []string{archive}, report.InvalidArchives)
	assert.Equal(t, int64(1), r.td.ExtractionErrors)
	assert.Error(t, r.td.LastExtractionError)
}

func TestUnpackMissingPath(t *testing.T) {
	r := newTestRun(t)
	missing := filepath.Join(r.in, "missing.zip")

	report, err := Unpack(context.Background(), r.config(), missing)
	require.NoError(t, err)
	assert.Equal(t, []string{missing}, report.InvalidFiles)
}

func TestUnpackCanceled(t *testing.T) {
	r := newTestRun(t)
	archive := writeTestFile(t, r.in, "a.zip", zipBytes(t, files("a.txt", "alpha")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := Unpack(ctx, r.config(), archive)

	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, report)
	assert.Empty(t, report.ValidArchives)
	assert.NoDirExists(t, r.mirror("a.zip"))
}

func TestUnpackCleanTempDir(t *testing.T) {
	r := newTestRun(t)
	stale := writeTestFile(t, r.out, "stale.txt", []byte("old"))
	path := writeTestFile(t, r.in, "a.txt", []byte("a"))

	_, err := Unpack(context.Background(), r.config(WithCleanTempDir(true)), path)
	require.NoError(t, err)
	assert.NoFileExists(t, stale)
	assert.DirExists(t, r.out)
}

func TestUnpackArguments(t *testing.T) {
	_, err := Unpack(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoPaths)

	_, err = Unpack(context.Background(), nil, "a", "")
	assert.ErrorIs(t, err, ErrEmptyPath)

	_, err = Unpack(context.Background(), NewConfig(WithIncludes("(")), "a")
	assert.Error(t, err)
}
