package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ralt/brewrelease/internal/models"
)

// SHA256HexLength is the length of a hex encoded SHA-256 digest
const SHA256HexLength = sha256.Size * 2

// Checksum contains the digest and size of a file
type Checksum struct {
	SHA256 string
	Size   int64
}

// CalculateChecksum streams a file through SHA-256
func CalculateChecksum(path string) (*Checksum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sum, n, err := SHA256Reader(f)
	if err != nil {
		return nil, err
	}

	return &Checksum{SHA256: sum, Size: n}, nil
}

// SHA256Reader hashes everything readable from r
func SHA256Reader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// IsHexDigest reports whether value is exactly expectedLen hex characters
func IsHexDigest(value string, expectedLen int) bool {
	if len(value) != expectedLen {
		return false
	}
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// VerifyFile compares the SHA-256 of path with expected.
// A mismatch wraps models.ErrChecksumMismatch.
func VerifyFile(path, expected string) error {
	if !IsHexDigest(expected, SHA256HexLength) {
		return fmt.Errorf("invalid expected sha256 %q", expected)
	}

	sum, err := CalculateChecksum(path)
	if err != nil {
		return err
	}

	if !strings.EqualFold(sum.SHA256, expected) {
		return fmt.Errorf("%w: expected %s, got %s", models.ErrChecksumMismatch, strings.ToLower(expected), sum.SHA256)
	}
	return nil
}
