package archive

import (
	"bytes"
	"io"
	"os"
	"strings"
)

// Format represents the container format of a release archive
type Format int

const (
	FormatUnknown Format = iota
	FormatTarGz
	FormatTarXz
	FormatTarZst
	FormatTar
	FormatZip
)

// String returns the string representation of Format
func (f Format) String() string {
	switch f {
	case FormatTarGz:
		return "tar.gz"
	case FormatTarXz:
		return "tar.xz"
	case FormatTarZst:
		return "tar.zst"
	case FormatTar:
		return "tar"
	case FormatZip:
		return "zip"
	default:
		return "unknown"
	}
}

// Magic bytes for archive detection
var (
	// Gzip magic bytes (GitHub source tarballs)
	gzipMagic = []byte{0x1F, 0x8B}

	// XZ magic bytes
	xzMagic = []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}

	// Zstandard magic bytes
	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

	// Zip local file header
	zipMagic = []byte("PK\x03\x04")

	// POSIX tar "ustar" marker at offset 257
	tarMagic  = []byte("ustar")
	tarOffset = 257
)

// DetectFormat determines the archive format based on magic bytes, falling
// back to the file extension when the header is inconclusive.
func DetectFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer f.Close()

	// Read first 512 bytes for magic byte detection
	header := make([]byte, 512)
	n, err := io.ReadFull(f, header)
	if err != nil && n == 0 {
		return FormatUnknown, err
	}
	header = header[:n]

	switch {
	case bytes.HasPrefix(header, gzipMagic):
		return FormatTarGz, nil
	case bytes.HasPrefix(header, xzMagic):
		return FormatTarXz, nil
	case bytes.HasPrefix(header, zstdMagic):
		return FormatTarZst, nil
	case bytes.HasPrefix(header, zipMagic):
		return FormatZip, nil
	case len(header) >= tarOffset+len(tarMagic) && bytes.Equal(header[tarOffset:tarOffset+len(tarMagic)], tarMagic):
		return FormatTar, nil
	}

	return formatFromName(path), nil
}

func formatFromName(name string) Format {
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return FormatTarGz
	case strings.HasSuffix(name, ".tar.xz"), strings.HasSuffix(name, ".txz"):
		return FormatTarXz
	case strings.HasSuffix(name, ".tar.zst"):
		return FormatTarZst
	case strings.HasSuffix(name, ".tar"):
		return FormatTar
	case strings.HasSuffix(name, ".zip"):
		return FormatZip
	default:
		return FormatUnknown
	}
}
