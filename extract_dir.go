// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"path/filepath"
	"strings"
)

const (
	// decompressedSuffix is appended to a decompressed name without extension
	decompressedSuffix = ".unc"

	// payloadSuffix is the extension of an extracted rpm payload
	payloadSuffix = "." + fileExtensionCpio
)

// extractDir returns the directory, that the entries of archivePath are
// extracted to. An archive below tempRoot is extracted next to itself, any
// other archive into the mirrored directory below tempRoot.
//
//	/tmp/unpack/_a.zip_/b.tar -> /tmp/unpack/_a.zip_/_b.tar_
//	/home/user/a.zip          -> /tmp/unpack/home/user/_a.zip_
func extractDir(tempRoot string, archivePath string) string {
	dir, name := filepath.Split(filepath.Clean(archivePath))
	dir = filepath.Clean(dir)
	target := "_" + name + "_"

	// already below the temp root
	if rel, err := filepath.Rel(tempRoot, dir); err == nil && filepath.IsLocal(rel) {
		return filepath.Join(dir, target)
	}

	// mirror the directory below the temp root
	dir = strings.TrimPrefix(dir, filepath.VolumeName(dir))
	dir = strings.TrimLeft(dir, `/\`)
	return filepath.Join(tempRoot, dir, target)
}

// trimExtension removes the last extension of the base name.
func trimExtension(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i]
	}
	return name
}

// decompressedName returns the name of the decompressed content of name. The
// last extension is removed, a name without any extension left gets the
// suffix ".unc".
//
//	a.tar.gz -> a.tar
//	a.gz     -> a.unc
func decompressedName(name string) string {
	out := trimExtension(filepath.Base(name))
	if !strings.Contains(out, ".") {
		out += decompressedSuffix
	}
	return out
}

// payloadName returns the name of the cpio payload of the rpm package name.
func payloadName(name string) string {
	return trimExtension(filepath.Base(name)) + payloadSuffix
}
