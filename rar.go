// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/nwaples/rardecode"
)

// fileExtensionRar is the file extension for Rar files.
const fileExtensionRar = "rar"

// magicBytesRar are the magic bytes for Rar 1.5 to 4.x files.
var magicBytesRar = [][]byte{
	{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x00},
}

// magicBytesRar5 are the magic bytes for Rar 5 files, which are not supported.
var magicBytesRar5 = [][]byte{
	{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x01, 0x00},
}

// isRar checks if the header matches the magic bytes for Rar files.
func isRar(data []byte) bool {
	return matchesMagicBytes(data, 0, magicBytesRar)
}

// isRar5 checks if the header matches the magic bytes for Rar 5 files.
func isRar5(data []byte) bool {
	return matchesMagicBytes(data, 0, magicBytesRar5)
}

// block types and flags of the Rar 1.5 format
const (
	rarBlockMain = 0x73
	rarBlockFile = 0x74
	rarBlockEnd  = 0x7b

	rarFlagHasData       = 0x8000
	rarFlagArchEncrypted = 0x0080
	rarFlagFileEncrypted = 0x0004
	rarFlagFileSplitPrev = 0x0001
	rarFlagFileLarge     = 0x0100

	rarBlockHeaderSize = 7
	rarFileNameOffset  = 32 // from block start, without high size fields
)

// rarScan is the result of a header scan.
type rarScan struct {
	// archiveEncrypted is set if all headers are encrypted
	archiveEncrypted bool

	// encryptedAt is the index of the first encrypted file, -1 if there is none
	encryptedAt int

	// encryptedName is the name of the first encrypted file
	encryptedName string
}

// scanRarHeaders walks the block chain of a Rar 1.5 archive in src, without
// decoding file data. The chain ends with the end block or with the input.
func scanRarHeaders(src io.ReaderAt, size int64) (*rarScan, error) {
	scan := &rarScan{encryptedAt: -1}
	pos := int64(len(magicBytesRar[0]))
	files := 0
	var b [rarBlockHeaderSize]byte

	for pos+rarBlockHeaderSize <= size {
		if _, err := src.ReadAt(b[:], pos); err != nil {
			return nil, fmt.Errorf("cannot read block header: %w", err)
		}
		typ := b[2]
		flags := binary.LittleEndian.Uint16(b[3:5])
		headSize := int64(binary.LittleEndian.Uint16(b[5:7]))
		if headSize < rarBlockHeaderSize {
			return nil, fmt.Errorf("invalid block header size %d at %d", headSize, pos)
		}

		// data following the header
		var dataSize int64
		if flags&rarFlagHasData != 0 {
			var d [4]byte
			if _, err := src.ReadAt(d[:], pos+rarBlockHeaderSize); err != nil {
				return nil, fmt.Errorf("cannot read block size: %w", err)
			}
			dataSize = int64(binary.LittleEndian.Uint32(d[:]))
		}

		switch typ {
		case rarBlockMain:
			if flags&rarFlagArchEncrypted != 0 {
				scan.archiveEncrypted = true
				return scan, nil
			}

		case rarBlockFile:
			nameOffset := int64(rarFileNameOffset)
			if flags&rarFlagFileLarge != 0 {
				var d [4]byte
				if _, err := src.ReadAt(d[:], pos+rarFileNameOffset); err != nil {
					return nil, fmt.Errorf("cannot read block size: %w", err)
				}
				dataSize += int64(binary.LittleEndian.Uint32(d[:])) << 32
				nameOffset += 8
			}
			if flags&rarFlagFileSplitPrev != 0 {
				break
			}
			if flags&rarFlagFileEncrypted != 0 {
				scan.encryptedAt = files
				scan.encryptedName = readRarName(src, pos, nameOffset)
				return scan, nil
			}
			files++

		case rarBlockEnd:
			return scan, nil
		}

		pos += headSize + dataSize
	}

	return scan, nil
}

// readRarName returns the name of the file block at pos, or an empty string
// if it can not be read.
func readRarName(src io.ReaderAt, pos int64, nameOffset int64) string {
	var n [2]byte
	if _, err := src.ReadAt(n[:], pos+26); err != nil {
		return ""
	}
	name := make([]byte, binary.LittleEndian.Uint16(n[:]))
	if _, err := src.ReadAt(name, pos+nameOffset); err != nil {
		return ""
	}
	for i, c := range name {
		if c == 0 {
			return string(name[:i])
		}
	}
	return string(name)
}

// rarWalker is an archiveWalker for Rar files. The files from encryptedAt on
// are not returned.
type rarWalker struct {
	r             *rardecode.Reader
	index         int
	encryptedAt   int
	encryptedName string
}

// Type returns the file extension for rar files.
func (rw *rarWalker) Type() string {
	return fileExtensionRar
}

// Next returns the next entry in the rar file.
func (rw *rarWalker) Next() (archiveEntry, error) {
	if rw.encryptedAt >= 0 && rw.index >= rw.encryptedAt {
		return nil, fmt.Errorf("%s: %w", rw.encryptedName, ErrEncrypted)
	}
	header, err := rw.r.Next()
	if err != nil {
		return nil, err
	}
	rw.index++
	return &rarEntry{header, rw.r}, nil
}

// rarEntry is an archiveEntry for Rar files.
type rarEntry struct {
	header *rardecode.FileHeader
	r      io.Reader
}

// Name returns the name of the file.
func (re *rarEntry) Name() string {
	return re.header.Name
}

// Size returns the unpacked size of the file, or -1 if it is unknown.
func (re *rarEntry) Size() int64 {
	if re.header.UnKnownSize {
		return -1
	}
	return re.header.UnPackedSize
}

// IsRegular returns true if the file is a regular file.
func (re *rarEntry) IsRegular() bool {
	return re.header.Mode().IsRegular()
}

// IsDir returns true if the file is a directory.
func (re *rarEntry) IsDir() bool {
	return re.header.IsDir
}

// Open returns the shared stream of the rar reader, positioned at the file.
func (re *rarEntry) Open() (io.ReadCloser, error) {
	return &noopReaderCloser{re.r}, nil
}
