package cmd

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tempDir returns a temp directory without symlinks in its path.
func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

// writeZip writes a zip archive with a single file to dir/name.
func writeZip(t *testing.T, dir string, name string, entry string, content string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(entry)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func TestRunSummary(t *testing.T) {
	in, out := tempDir(t), tempDir(t)
	writeZip(t, in, "a.zip", "a.txt", "alpha")

	var stdout, stderr bytes.Buffer
	cli := &CLI{Paths: []string{in}, TempDir: out}
	require.NoError(t, run(context.Background(), cli, &stdout, &stderr))

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Valid archives   1, types: 1 x [zip]", lines[4])
	assert.Empty(t, stderr.String())
}

func TestRunJSON(t *testing.T) {
	in, out := tempDir(t), tempDir(t)
	archive := writeZip(t, in, "a.zip", "a.txt", "alpha")

	var stdout, stderr bytes.Buffer
	cli := &CLI{Paths: []string{archive}, TempDir: out, JSON: true, Telemetry: true}
	require.NoError(t, run(context.Background(), cli, &stdout, &stderr))

	var report struct {
		ValidArchives []string          `json:"valid_archives"`
		Formats       map[string]string `json:"formats"`
	}
	require.NoError(t, jsoniter.Unmarshal(stdout.Bytes(), &report))
	assert.Equal(t, []string{archive}, report.ValidArchives)
	assert.Equal(t, "zip", report.Formats[archive])
	assert.Contains(t, stderr.String(), `telemetry: {"last_extraction_error":""`)
}

func TestRunBatch(t *testing.T) {
	in, out := tempDir(t), tempDir(t)
	archive := writeZip(t, in, "a.zip", "a.txt", "alpha")

	var stdout, stderr bytes.Buffer
	cli := &CLI{Paths: []string{archive}, TempDir: out, Batch: true, Workers: 1}
	require.NoError(t, run(context.Background(), cli, &stdout, &stderr))

	assert.Contains(t, stdout.String(), "wave 1: 1 inputs, 1 extracted, 0 failures\n")
	extracted := filepath.Join(out, strings.TrimLeft(in, `/\`), "_a.zip_", "a.txt")
	assert.FileExists(t, extracted)
}

func TestRunConfigFile(t *testing.T) {
	in, out := tempDir(t), tempDir(t)
	archive := writeZip(t, in, "a.zip", "a.txt", "alpha")
	config := filepath.Join(tempDir(t), "unpack.yaml")
	require.NoError(t, os.WriteFile(config, []byte("temp_dir: /does/not/matter\nexcludes: ['.*\\.txt']\n"), 0644))

	var stdout, stderr bytes.Buffer
	cli := &CLI{Paths: []string{archive}, TempDir: out, Config: config, JSON: true}
	require.NoError(t, run(context.Background(), cli, &stdout, &stderr))

	// the flag overrides the temp dir of the file, the excludes are kept
	dir := filepath.Join(out, strings.TrimLeft(in, `/\`), "_a.zip_")
	assert.NoFileExists(t, filepath.Join(dir, "a.txt"))

	var report struct {
		Skipped []string `json:"skipped"`
	}
	require.NoError(t, jsoniter.Unmarshal(stdout.Bytes(), &report))
	assert.Equal(t, []string{filepath.Join(dir, "a.txt")}, report.Skipped)
}

func TestRunErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer

	cli := &CLI{Paths: []string{"a"}, Config: filepath.Join(tempDir(t), "missing.yaml")}
	assert.ErrorContains(t, run(context.Background(), cli, &stdout, &stderr), "cannot load config")

	cli = &CLI{Paths: []string{"a"}, TempDir: tempDir(t), Include: []string{"("}}
	assert.ErrorContains(t, run(context.Background(), cli, &stdout, &stderr), "unpack failed")
}
