package unpack

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/blakesmith/ar"
	"github.com/cavaliergopher/cpio"
	"github.com/dsnet/compress/bzip2"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// testFile is a named content of a test archive.
type testFile struct {
	name string
	data []byte
}

// files is a shorthand for a list of test files with string content.
func files(nameAndContent ...string) []testFile {
	var fs []testFile
	for i := 0; i+1 < len(nameAndContent); i += 2 {
		fs = append(fs, testFile{name: nameAndContent[i], data: []byte(nameAndContent[i+1])})
	}
	return fs
}

// writeTestFile writes data to dir/name and returns the path.
func writeTestFile(t *testing.T, dir string, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("cannot create dir: %s", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("cannot write file: %s", err)
	}
	return path
}

// zipBytes returns a zip archive with fs.
func zipBytes(t *testing.T, fs []testFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range fs {
		w, err := zw.Create(f.name)
		if err != nil {
			t.Fatalf("cannot create zip entry: %s", err)
		}
		if _, err := w.Write(f.data); err != nil {
			t.Fatalf("cannot write zip entry: %s", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("cannot close zip: %s", err)
	}
	return buf.Bytes()
}

// encryptedZipBytes returns a zip archive with fs, in which the entries named
// in encrypted carry the encryption flag.
func encryptedZipBytes(t *testing.T, fs []testFile, encrypted ...string) []byte {
	t.Helper()
	flagged := make(map[string]bool)
	for _, name := range encrypted {
		flagged[name] = true
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range fs {
		hdr := &zip.FileHeader{Name: f.name, Method: zip.Store}
		if flagged[f.name] {
			hdr.Flags |= zipFlagEncrypted
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			t.Fatalf("cannot create zip entry: %s", err)
		}
		if _, err := w.Write(f.data); err != nil {
			t.Fatalf("cannot write zip entry: %s", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("cannot close zip: %s", err)
	}
	return buf.Bytes()
}

// tarBytes returns a tar archive with a directory entry and fs.
func tarBytes(t *testing.T, fs []testFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := tw.WriteHeader(&tar.Header{Name: "dir/", Typeflag: tar.TypeDir, Mode: 0755, ModTime: time.Now()}); err != nil {
		t.Fatalf("cannot write tar dir: %s", err)
	}
	for _, f := range fs {
		hdr := &tar.Header{Name: f.name, Typeflag: tar.TypeReg, Mode: 0644, Size: int64(len(f.data)), ModTime: time.Now()}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("cannot write tar header: %s", err)
		}
		if _, err := tw.Write(f.data); err != nil {
			t.Fatalf("cannot write tar entry: %s", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("cannot close tar: %s", err)
	}
	return buf.Bytes()
}

// cpioBytes returns a SVR4 cpio archive with fs.
func cpioBytes(t *testing.T, fs []testFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	cw := cpio.NewWriter(&buf)
	for _, f := range fs {
		hdr := &cpio.Header{Name: f.name, Mode: cpio.TypeReg | 0644, Size: int64(len(f.data))}
		if err := cw.WriteHeader(hdr); err != nil {
			t.Fatalf("cannot write cpio header: %s", err)
		}
		if _, err := cw.Write(f.data); err != nil {
			t.Fatalf("cannot write cpio entry: %s", err)
		}
	}
	if err := cw.Close(); err != nil {
		t.Fatalf("cannot close cpio: %s", err)
	}
	return buf.Bytes()
}

// arBytes returns an ar archive with fs.
func arBytes(t *testing.T, fs []testFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	aw := ar.NewWriter(&buf)
	if err := aw.WriteGlobalHeader(); err != nil {
		t.Fatalf("cannot write ar header: %s", err)
	}
	for _, f := range fs {
		hdr := &ar.Header{Name: f.name, ModTime: time.Unix(0, 0), Mode: 0644, Size: int64(len(f.data))}
		if err := aw.WriteHeader(hdr); err != nil {
			t.Fatalf("cannot write ar member header: %s", err)
		}
		if _, err := aw.Write(f.data); err != nil {
			t.Fatalf("cannot write ar member: %s", err)
		}
	}
	return buf.Bytes()
}

// compress returns data compressed with the codec of ext.
func compress(t *testing.T, ext string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	var err error
	switch ext {
	case fileExtensionGZip:
		w = gzip.NewWriter(&buf)
	case fileExtensionBzip2:
		w, err = bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: bzip2.BestSpeed})
	case fileExtensionXz:
		w, err = xz.NewWriter(&buf)
	case fileExtensionLzma:
		w, err = lzma.NewWriter(&buf)
	case fileExtensionZstd:
		w, err = zstd.NewWriter(&buf)
	case fileExtensionLZ4:
		w = lz4.NewWriter(&buf)
	case fileExtensionSnappy:
		w = snappy.NewBufferedWriter(&buf)
	case fileExtensionZlib:
		w = zlib.NewWriter(&buf)
	case fileExtensionBrotli:
		w = brotli.NewWriter(&buf)
	default:
		t.Fatalf("unknown codec %s", ext)
	}
	if err != nil {
		t.Fatalf("cannot create %s writer: %s", ext, err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("cannot compress: %s", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("cannot close %s writer: %s", ext, err)
	}
	return buf.Bytes()
}

// rarBlock returns a Rar 1.5 block with type, flags and body. The header
// checksum is calculated over everything but itself.
func rarBlock(typ byte, flags uint16, body []byte) []byte {
	b := make([]byte, rarBlockHeaderSize, rarBlockHeaderSize+len(body))
	b[2] = typ
	binary.LittleEndian.PutUint16(b[3:5], flags)
	binary.LittleEndian.PutUint16(b[5:7], uint16(rarBlockHeaderSize+len(body)))
	b = append(b, body...)
	binary.LittleEndian.PutUint16(b[0:2], uint16(crc32.ChecksumIEEE(b[2:])))
	return b
}

// rarStoredFile returns a Rar 1.5 file block with data stored uncompressed.
func rarStoredFile(name string, data []byte, flags uint16) []byte {
	body := make([]byte, 25, 25+len(name))
	binary.LittleEndian.PutUint32(body[0:4], uint32(len(data)))   // packed size
	binary.LittleEndian.PutUint32(body[4:8], uint32(len(data)))   // unpacked size
	body[8] = 3                                                   // unix
	binary.LittleEndian.PutUint32(body[9:13], crc32.ChecksumIEEE(data))
	binary.LittleEndian.PutUint32(body[13:17], 0x00210000) // 1980-01-01
	body[17] = 29                                           // version to unpack
	body[18] = 0x30                                         // stored
	binary.LittleEndian.PutUint16(body[19:21], uint16(len(name)))
	binary.LittleEndian.PutUint32(body[21:25], 0o100644)
	body = append(body, name...)
	return append(rarBlock(rarBlockFile, flags|rarFlagHasData, body), data...)
}

// rarBytes returns a Rar 1.5 archive with stored fs. The files named in
// encrypted carry the encryption flag. If archiveEncrypted is set, the main
// header announces encrypted headers.
func rarBytes(fs []testFile, archiveEncrypted bool, encrypted ...string) []byte {
	flagged := make(map[string]bool)
	for _, name := range encrypted {
		flagged[name] = true
	}
	var mainFlags uint16
	if archiveEncrypted {
		mainFlags = rarFlagArchEncrypted
	}
	out := append([]byte{}, magicBytesRar[0]...)
	out = append(out, rarBlock(rarBlockMain, mainFlags, make([]byte, 6))...)
	for _, f := range fs {
		var flags uint16
		if flagged[f.name] {
			flags = rarFlagFileEncrypted
		}
		out = append(out, rarStoredFile(f.name, f.data, flags)...)
	}
	return append(out, rarBlock(rarBlockEnd, 0, nil)...)
}

// rpmBytes returns an rpm package with an empty signature and a header that
// only names the payload compression, followed by payload.
func rpmBytes(name string, compression string, payload []byte) []byte {
	lead := make([]byte, 96)
	copy(lead, magicBytesRpm[0])
	lead[4] = 3 // version 3.0
	copy(lead[10:76], name)
	out := append([]byte{}, lead...)

	// the signature has no entries and needs no padding
	out = append(out, rpmHeader(nil, nil)...)

	// payload compressor, a single string at offset 0
	index := make([]byte, 16)
	binary.BigEndian.PutUint32(index[0:4], 1125)
	binary.BigEndian.PutUint32(index[4:8], 6)
	binary.BigEndian.PutUint32(index[12:16], 1)
	out = append(out, rpmHeader(index, append([]byte(compression), 0))...)

	return append(out, payload...)
}

// rpmHeader returns an rpm header structure with the index entries and store.
func rpmHeader(index []byte, store []byte) []byte {
	b := []byte{0x8e, 0xad, 0xe8, 0x01, 0, 0, 0, 0}
	b = binary.BigEndian.AppendUint32(b, uint32(len(index)/16))
	b = binary.BigEndian.AppendUint32(b, uint32(len(store)))
	b = append(b, index...)
	return append(b, store...)
}

// test7zipArchiveHex is a 7zip archive with the file test/data.
const test7zipArchiveHex = "377abcaf271c00049af18e7973000000000000002000000000000000a7e80f9801000b48656c6c6f20576f726c6421000000813307ae0fcef2b20c07c8437f41b1fafddb88b6d7636b8bd58a0e24a2f717a5f156e37f41fd00833298421d5d088c0cf987b30c0473663599e4d2f21cb69620038f10458109662135c3024189f42799abe3227b174a853e824f808b2efaab000017061001096300070b01000123030101055d001000000c760a015bcfa0a70000"

// testRar5ArchiveBase64 is a Rar 5 archive with a directory, a file and a symlink.
const testRar5ArchiveBase64 = "UmFyIRoHAQAzkrXlCgEFBgAFAQGAgAADk1YoJQIDC50ABJ0ApIMClAgA9IAAAQdkaXIvZm9vCgMTQPjXZsjBSQhNaSAgNCBTZXAgMjAyNCAwODowMzo0NCBDRVNUCpQdu+oiAgMLnQAEnQCkgwI+z7uqgAABBGZpbGUKAxPEDddmxHsQDkRpICAzIFNlcCAyMDI0IDE1OjIzOjE2IENFU1QKe1xvKCwCAxcABAftwwIAAAAAgAABBGxpbmsKAxNM+NdmSCZHGAsFAQAHZGlyL2Zvb0A2hh0bAgMLAAEA7YMBgAABA2RpcgoDE0D412Z533kHHXdWUQMFBAA="

// memorySource returns a source backed by a pooled buffer with data.
func memorySource(t *testing.T, pool *bufferPool, path string, data []byte) source {
	t.Helper()
	buf := pool.acquire()
	buf.Write(data)
	t.Cleanup(func() { pool.put(buf) })
	return source{path: path, buf: buf}
}

// collectEntries returns an entryHandler that reads every entry into a map.
func collectEntries(t *testing.T, into map[string]string) entryHandler {
	return func(ae archiveEntry) error {
		if ae.IsDir() || !ae.IsRegular() {
			return nil
		}
		rc, err := ae.Open()
		if err != nil {
			return err
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return err
		}
		into[ae.Name()] = string(data)
		return nil
	}
}
