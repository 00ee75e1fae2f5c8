package crypto

import (
	"crypto/rand"
	"fmt"
	"io"
)

type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrKeyReconstruction   = Error("key fragments do not decode to a valid key")
	ErrTooManyFragments    = Error("more fragments requested than key text characters")
	ErrDecryption          = Error("decryption failed")
	ErrUnsupportedCipher   = Error("unsupported cipher algorithm")
	ErrInvalidKeyLength    = Error("invalid key length")
	ErrMalformedCiphertext = Error("malformed ciphertext")
)

func GenerateKey(length int) ([]byte, error) {
	key := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

func GenerateNonce(length int) ([]byte, error) {
	nonce := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("could not generate nonce: %w", err)
	}
	return nonce, nil
}

// Zero overwrites transient key material once the owning call is done with it.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
