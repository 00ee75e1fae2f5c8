package carrier

import (
	"fmt"
	"strings"
	"unicode"
)

// embedLSB returns a copy of buf whose first headerBits bytes carry len(payload)
// most significant bit first, followed by payload with one bit per byte. Only
// bit 0 of the touched bytes changes.
func embedLSB(buf []byte, headerBits int, payload []byte) ([]byte, error) {
	maxLen := uint64(1)<<uint(headerBits) - 1
	if uint64(len(payload)) > maxLen {
		return nil, fmt.Errorf("%w: %d bytes, header holds at most %d", ErrFragmentTooLong, len(payload), maxLen)
	}
	need := headerBits + 8*len(payload)
	if need > len(buf) {
		return nil, fmt.Errorf("%w: need %d bytes, carrier has %d", ErrCarrierTooSmall, need, len(buf))
	}

	out := make([]byte, len(buf))
	copy(out, buf)

	length := uint64(len(payload))
	for i := 0; i < headerBits; i++ {
		bit := byte(length>>uint(headerBits-1-i)) & 1
		out[i] = out[i]&0xFE | bit
	}
	pos := headerBits
	for _, b := range payload {
		for j := 7; j >= 0; j-- {
			out[pos] = out[pos]&0xFE | (b>>uint(j))&1
			pos++
		}
	}
	return out, nil
}

// lsbLength reads the length header. ok is false when buf is shorter than the header.
func lsbLength(buf []byte, headerBits int) (length uint64, ok bool) {
	if len(buf) < headerBits {
		return 0, false
	}
	for i := 0; i < headerBits; i++ {
		length = length<<1 | uint64(buf[i]&1)
	}
	return length, true
}

// lsbPayload reads length bytes that follow the header, or reports false when
// the buffer cannot hold them.
func lsbPayload(buf []byte, headerBits int, length uint64) ([]byte, bool) {
	if uint64(len(buf)) < uint64(headerBits) || (uint64(len(buf))-uint64(headerBits))/8 < length {
		return nil, false
	}
	payload := make([]byte, length)
	pos := headerBits
	for i := range payload {
		var b byte
		for j := 0; j < 8; j++ {
			b = b<<1 | buf[pos]&1
			pos++
		}
		payload[i] = b
	}
	return payload, true
}

func trimFragment(payload []byte) string {
	return strings.TrimRightFunc(string(payload), unicode.IsSpace)
}
