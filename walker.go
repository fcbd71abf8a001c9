// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/karrick/godirwalk"
)

// Search walks the directory tree below root and returns the canonical paths
// of all files, whose path relative to root matches policy. Relative paths use
// "/" as separator. If caseSensitive is false, the policy ignores case.
//
// Directories and returned files are added to visited. A file or directory
// that is already part of visited is not returned again, which also breaks
// cycles of followed symlinks.
//
// Errors of single entries do not stop the walk. They are joined and returned
// together with all files that could be read.
func Search(root string, caseSensitive bool, followSymlinks bool, policy *Policy, visited *VisitedSet) ([]string, error) {
	found, _, err := search(root, caseSensitive, followSymlinks, policy, visited)
	return found, err
}

// search is like Search, but also returns the paths that did not match the policy.
func search(root string, caseSensitive bool, followSymlinks bool, policy *Policy, visited *VisitedSet) ([]string, []string, error) {
	var (
		found   []string
		skipped []string
		errs    []error
	)

	root, err := canonicalPath(root)
	if err != nil {
		return nil, nil, err
	}
	visited.Add(root)

	match := policy.Match
	if !caseSensitive {
		match = policy.MatchFold
	}

	err = godirwalk.Walk(root, &godirwalk.Options{
		FollowSymbolicLinks: followSymlinks,
		Unsorted:            true,
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if osPathname == root {
				return nil
			}

			// symlinks are resolved to check their target
			isDir := de.IsDir()
			if de.IsSymlink() {
				info, err := os.Stat(osPathname)
				if err != nil {
					errs = append(errs, fmt.Errorf("broken symlink %s: %w", osPathname, err))
					return nil
				}
				isDir = info.IsDir()
				if isDir && !followSymlinks {
					return nil
				}
			}

			canonical, err := canonicalPath(osPathname)
			if err != nil {
				errs = append(errs, err)
				return nil
			}

			// directories are entered once
			if isDir {
				if !visited.Add(canonical) {
					return filepath.SkipDir
				}
				return nil
			}

			rel, err := filepath.Rel(root, osPathname)
			if err != nil {
				errs = append(errs, err)
				return nil
			}
			if !visited.Add(canonical) {
				return nil
			}
			if !match(filepath.ToSlash(rel)) {
				skipped = append(skipped, canonical)
				return nil
			}
			found = append(found, canonical)
			return nil
		},
		ErrorCallback: func(osPathname string, err error) godirwalk.ErrorAction {
			errs = append(errs, fmt.Errorf("cannot walk %s: %w", osPathname, err))
			return godirwalk.SkipNode
		},
	})
	if err != nil {
		errs = append(errs, err)
	}

	sort.Strings(found)
	sort.Strings(skipped)
	return found, skipped, errors.Join(errs...)
}

// canonicalPath returns the absolute path with all symlinks resolved. A path
// that does not exist is only made absolute.
func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("cannot resolve %s: %w", path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}
