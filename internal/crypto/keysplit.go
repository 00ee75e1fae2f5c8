package crypto

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// KeySplit encodes key as base64url text and cuts it into n nearly equal fragments.
// The first len(text)%n fragments carry one extra character. Concatenating the
// fragments in order yields the encoded text again.
func KeySplit(key []byte, n int) ([]string, error) {
	if n < 1 {
		return nil, fmt.Errorf("fragment count must be at least 1, got %d", n)
	}
	if len(key) == 0 {
		return nil, errors.New("cannot split an empty key")
	}
	text := base64.URLEncoding.EncodeToString(key)
	if n > len(text) {
		return nil, fmt.Errorf("%w: %d fragments for %d characters", ErrTooManyFragments, n, len(text))
	}

	base := len(text) / n
	rem := len(text) % n

	fragments := make([]string, 0, n)
	start := 0
	for i := 0; i < n; i++ {
		end := start + base
		if i < rem {
			end++
		}
		fragments = append(fragments, text[start:end])
		start = end
	}
	return fragments, nil
}

// KeyMerge concatenates fragments in the given order, drops incidental
// whitespace, repairs base64 padding and decodes the key.
func KeyMerge(fragments []string) ([]byte, error) {
	if len(fragments) == 0 {
		return nil, fmt.Errorf("%w: no fragments", ErrKeyReconstruction)
	}
	text := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, strings.Join(fragments, ""))

	text = fixPadding(text)
	key, err := base64.URLEncoding.DecodeString(text)
	if err != nil {
		return nil, errors.Join(ErrKeyReconstruction, err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: empty key", ErrKeyReconstruction)
	}
	return key, nil
}

func fixPadding(s string) string {
	if missing := len(s) % 4; missing != 0 {
		s += strings.Repeat("=", 4-missing)
	}
	return s
}
