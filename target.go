// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Target specifies all functions that are needed to write the extracted contents
type Target interface {
	// CreateFile creates a file at the specified path with src as content. The mode parameter is the file mode that
	// should be set on the file. If the file already exists and overwrite is false, an error should be returned. If the
	// file does not exist, it should be created. The size of the file should not exceed maxSize. If the file is created
	// successfully, the number of bytes written should be returned. If an error occurs, the number of bytes written
	// should be returned along with the error. If maxSize < 0, the file size is not limited.
	CreateFile(path string, src io.Reader, mode fs.FileMode, overwrite bool, maxSize int64) (int64, error)

	// CreateDir creates at the specified path with the specified mode, including all parents. If the directory
	// already exists, nothing is done.
	CreateDir(path string, mode fs.FileMode) error

	// Lstat see docs for os.Lstat. Main purpose is to check for symlinks in the extraction path.
	Lstat(path string) (fs.FileInfo, error)

	// RemoveAll see docs for os.RemoveAll. Main purpose is to clean the temp directory before a run.
	RemoveAll(path string) error
}

// entryPath joins dst and the archive entry name. Names use "/" as separator
// inside archives, some archivers write "\" instead.
//
// If the name is empty, or the joined path points outside of dst, the function
// returns an error.
func entryPath(t Target, dst string, name string) (string, error) {
	// check if a name is provided
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimLeft(name, "/")
	if len(name) == 0 {
		return "", fmt.Errorf("cannot create file without name")
	}

	// adjust path to be os specific
	parts := strings.Split(name, "/")
	name = filepath.Join(parts...)

	if err := securityCheck(t, dst, name); err != nil {
		return "", err
	}
	return filepath.Join(dst, name), nil
}

// securityCheck checks if path contains path traversal or runs through a
// symlink below dst.
func securityCheck(t Target, dst string, path string) error {
	// check if the relative path is local
	if !filepath.IsLocal(path) {
		return ErrPathTraversal
	}

	// check each dir in path
	elements := strings.Split(filepath.Dir(path), string(os.PathSeparator))
	for i := 0; i < len(elements); i++ {

		// assemble path
		subDirs := filepath.Join(elements[0 : i+1]...)
		if subDirs == "." {
			continue
		}
		checkDir := filepath.Join(dst, subDirs)

		// check for symlink
		stat, err := t.Lstat(checkDir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("invalid path: %w", err)
		}
		if stat.Mode()&os.ModeSymlink == os.ModeSymlink {
			return fmt.Errorf("symlink in path: %w", ErrPathTraversal)
		}
	}

	return nil
}
