// Package envelope binds a ciphertext to the digests of the carriers that hold
// its key, and serializes both into a single transportable token.
package envelope

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrEnvelopeFormat = Error("invalid envelope")
	ErrIntegrity      = Error("carrier digest mismatch")
)

type Hashes struct {
	Image string `json:"image"`
	Video string `json:"video"`
	Audio string `json:"audio"`
}

type Envelope struct {
	Message string `json:"message"`
	// Algorithm names the cipher that produced Message. Empty means the default.
	Algorithm string `json:"alg,omitempty"`
	Hashes    Hashes `json:"hashes"`
}

// wireEnvelope also accepts the short msg, img, vid and aud keys of the
// earlier service so that its tokens can still be inspected. Those tokens hold
// Fernet ciphertext under a double base64 key, which no registered cipher
// reads, so decoding one fails after Unpack.
type wireEnvelope struct {
	Message   *string `json:"message"`
	Msg       *string `json:"msg"`
	Algorithm string  `json:"alg"`
	Hashes    *struct {
		Image *string `json:"image"`
		Video *string `json:"video"`
		Audio *string `json:"audio"`
		Img   *string `json:"img"`
		Vid   *string `json:"vid"`
		Aud   *string `json:"aud"`
	} `json:"hashes"`
}

// Pack serializes e to URL-safe base64 over JSON.
func Pack(e Envelope) (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Unpack is the inverse of Pack. It fails with ErrEnvelopeFormat unless the
// message is present and all three digests are lowercase hex SHA-256.
func Unpack(token string) (*Envelope, error) {
	raw, err := decodeToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnvelopeFormat, err)
	}
	var w wireEnvelope
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnvelopeFormat, err)
	}

	message := pick(w.Message, w.Msg)
	if message == nil {
		return nil, fmt.Errorf("%w: missing message", ErrEnvelopeFormat)
	}
	if w.Hashes == nil {
		return nil, fmt.Errorf("%w: missing hashes", ErrEnvelopeFormat)
	}
	e := &Envelope{Message: *message, Algorithm: w.Algorithm}
	for _, h := range []struct {
		name string
		dst  *string
		val  *string
	}{
		{"image", &e.Hashes.Image, pick(w.Hashes.Image, w.Hashes.Img)},
		{"video", &e.Hashes.Video, pick(w.Hashes.Video, w.Hashes.Vid)},
		{"audio", &e.Hashes.Audio, pick(w.Hashes.Audio, w.Hashes.Aud)},
	} {
		if h.val == nil || *h.val == "" {
			return nil, fmt.Errorf("%w: missing %s digest", ErrEnvelopeFormat, h.name)
		}
		if !isDigest(*h.val) {
			return nil, fmt.Errorf("%w: malformed %s digest %q", ErrEnvelopeFormat, h.name, *h.val)
		}
		*h.dst = *h.val
	}
	return e, nil
}

// Digest returns the expected digest for the named carrier kind.
func (e *Envelope) Digest(kind string) (string, bool) {
	switch kind {
	case "image":
		return e.Hashes.Image, true
	case "video":
		return e.Hashes.Video, true
	case "audio":
		return e.Hashes.Audio, true
	}
	return "", false
}

func pick(a, b *string) *string {
	if a != nil {
		return a
	}
	return b
}

// decodeToken accepts padded or unpadded URL-safe base64 and tolerates
// surrounding whitespace from copy and paste.
func decodeToken(token string) ([]byte, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("empty token")
	}
	if strings.HasSuffix(token, "=") {
		return base64.URLEncoding.DecodeString(token)
	}
	return base64.RawURLEncoding.DecodeString(token)
}
