// Package carrier hides short text fragments in the least significant bits of
// media carriers. Each carrier kind has its own framing: audio uses a 16-bit
// length header over PCM sample bytes, video a 32-bit header over the first
// frame's pixels, and images delegate to an LSB primitive.
package carrier

import "context"

type Kind string

const (
	Image Kind = "image"
	Video Kind = "video"
	Audio Kind = "audio"
)

// Kinds lists carriers in fragment order: fragment i lives in Kinds[i].
var Kinds = []Kind{Image, Video, Audio}

func (k Kind) String() string {
	return string(k)
}

type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrCarrierTooSmall    = Error("carrier too small for fragment")
	ErrFragmentTooLong    = Error("fragment too long for length header")
	ErrNoFragment         = Error("no fragment found in carrier")
	ErrFormat             = Error("carrier format not supported")
	ErrPrimitive          = Error("image lsb primitive failed")
	ErrEncoderUnavailable = Error("no lossless video encoder available")
)

// Codec embeds and extracts a fragment for one carrier kind. Carriers are
// complete files; Embed returns a new file and never mutates its input.
type Codec interface {
	Kind() Kind
	Embed(ctx context.Context, carrier []byte, fragment string) ([]byte, error)
	Extract(ctx context.Context, carrier []byte) (string, error)
	// Ext is the file extension of encoded output, including the dot.
	Ext() string
}
