package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/exp/slices"
)

const (
	AlgAES256GCM         = "aes-256-gcm"
	AlgXChaCha20Poly1305 = "xchacha20-poly1305"

	DefaultAlgorithm = AlgAES256GCM
)

var SupportedAlgorithms = []string{AlgAES256GCM, AlgXChaCha20Poly1305}

// Cipher is the symmetric authenticated cipher that protects the message.
// Ciphertext is base64url text so it can travel inside the envelope.
type Cipher interface {
	Algorithm() string
	GenerateKey() ([]byte, error)
	Encrypt(key []byte, plaintext string) (string, error)
	Decrypt(key []byte, ciphertext string) (string, error)
}

type AEAD struct {
	alg     string
	keySize int
	newAEAD func(key []byte) (cipher.AEAD, error)
}

func NewCipher(alg string) (*AEAD, error) {
	if alg == "" {
		alg = DefaultAlgorithm
	}
	if !slices.Contains(SupportedAlgorithms, alg) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCipher, alg)
	}
	switch alg {
	case AlgXChaCha20Poly1305:
		return &AEAD{
			alg:     alg,
			keySize: chacha20poly1305.KeySize,
			newAEAD: chacha20poly1305.NewX,
		}, nil
	default:
		return &AEAD{
			alg:     alg,
			keySize: 32,
			newAEAD: NewGCM,
		}, nil
	}
}

func NewGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (a *AEAD) Algorithm() string {
	return a.alg
}

func (a *AEAD) KeySize() int {
	return a.keySize
}

func (a *AEAD) GenerateKey() ([]byte, error) {
	return GenerateKey(a.keySize)
}

func (a *AEAD) Encrypt(key []byte, plaintext string) (string, error) {
	if len(key) != a.keySize {
		return "", fmt.Errorf("%w: got %d, want %d", ErrInvalidKeyLength, len(key), a.keySize)
	}
	aead, err := a.newAEAD(key)
	if err != nil {
		return "", err
	}
	nonce, err := GenerateNonce(aead.NonceSize())
	if err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

func (a *AEAD) Decrypt(key []byte, ciphertext string) (string, error) {
	if len(key) != a.keySize {
		return "", fmt.Errorf("%w: %w: got %d, want %d", ErrDecryption, ErrInvalidKeyLength, len(key), a.keySize)
	}
	aead, err := a.newAEAD(key)
	if err != nil {
		return "", errors.Join(ErrDecryption, err)
	}
	raw, err := base64.URLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errors.Join(ErrDecryption, ErrMalformedCiphertext, err)
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", errors.Join(ErrDecryption, ErrMalformedCiphertext)
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plainText, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", errors.Join(ErrDecryption, err)
	}
	return string(plainText), nil
}
