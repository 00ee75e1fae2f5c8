package carrier

import (
	"context"
	"fmt"
)

const audioHeaderBits = 16

// AudioCodec hides a fragment in the PCM sample bytes of a wave file, one bit
// per sample byte, behind a 16-bit length header.
type AudioCodec struct{}

func NewAudioCodec() *AudioCodec {
	return &AudioCodec{}
}

func (*AudioCodec) Kind() Kind {
	return Audio
}

func (*AudioCodec) Ext() string {
	return ".wav"
}

// EmbedSamples returns a copy of samples with the fragment written into the
// first 16+8*len(fragment) bytes.
func (*AudioCodec) EmbedSamples(samples []byte, fragment string) ([]byte, error) {
	return embedLSB(samples, audioHeaderBits, []byte(fragment))
}

// ExtractSamples returns the hidden fragment, or "" when the buffer is too
// short for the header or for the length it declares.
func (*AudioCodec) ExtractSamples(samples []byte) string {
	length, ok := lsbLength(samples, audioHeaderBits)
	if !ok {
		return ""
	}
	payload, ok := lsbPayload(samples, audioHeaderBits, length)
	if !ok {
		return ""
	}
	return trimFragment(payload)
}

func (c *AudioCodec) Embed(_ context.Context, carrier []byte, fragment string) ([]byte, error) {
	wav, err := parseWAV(carrier)
	if err != nil {
		return nil, err
	}
	embedded, err := c.EmbedSamples(wav.samples(carrier), fragment)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(carrier))
	copy(out, carrier)
	copy(out[wav.dataOffset:], embedded)
	return out, nil
}

func (c *AudioCodec) Extract(_ context.Context, carrier []byte) (string, error) {
	wav, err := parseWAV(carrier)
	if err != nil {
		return "", err
	}
	fragment := c.ExtractSamples(wav.samples(carrier))
	if fragment == "" {
		return "", fmt.Errorf("%w: %d sample bytes", ErrNoFragment, wav.dataSize)
	}
	return fragment, nil
}
