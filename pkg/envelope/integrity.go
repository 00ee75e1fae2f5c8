package envelope

import (
	"bytes"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/minio/sha256-simd"
)

const (
	digestChunkSize = 4096
	digestLen       = 2 * sha256.Size
)

// Digest streams r through SHA-256 and returns the lowercase hex digest.
func Digest(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, digestChunkSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func DigestBytes(b []byte) string {
	// reading from memory cannot fail
	d, _ := Digest(bytes.NewReader(b))
	return d
}

// Verify compares the digest of b with expected in constant time.
func Verify(b []byte, expected string) error {
	actual := DigestBytes(b)
	if subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) != 1 {
		return fmt.Errorf("%w: expected %s, got %s", ErrIntegrity, expected, actual)
	}
	return nil
}

// isDigest reports whether s has the form Digest produces.
func isDigest(s string) bool {
	if len(s) != digestLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
