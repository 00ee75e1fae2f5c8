package carrier

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/stegokey/backend-go/pkg/carrier/avi"
)

const (
	videoHeaderBits = 32
	// MaxVideoFragment bounds the length header accepted on extract.
	MaxVideoFragment = 1000
)

// DefaultVideoEncoders are tried in order when re-muxing a video carrier.
var DefaultVideoEncoders = []string{"png", "raw"}

// VideoCodec hides a fragment in the first frame of a video and re-muxes all
// frames into a lossless AVI. Frames are streamed one at a time.
type VideoCodec struct {
	// Encoders names the preferred lossless encoder and its single fallback.
	Encoders []string
	Log      logrus.FieldLogger
}

func NewVideoCodec(encoders []string, log logrus.FieldLogger) *VideoCodec {
	if len(encoders) == 0 {
		encoders = DefaultVideoEncoders
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &VideoCodec{Encoders: encoders, Log: log}
}

func (*VideoCodec) Kind() Kind {
	return Video
}

func (*VideoCodec) Ext() string {
	return ".avi"
}

// EmbedFrame returns a copy of the flattened frame pixels with the fragment
// written behind a 32-bit length header.
func (*VideoCodec) EmbedFrame(pix []byte, fragment string) ([]byte, error) {
	if len(fragment) > MaxVideoFragment {
		return nil, fmt.Errorf("%w: %d bytes, video holds at most %d", ErrFragmentTooLong, len(fragment), MaxVideoFragment)
	}
	return embedLSB(pix, videoHeaderBits, []byte(fragment))
}

// ExtractFrame returns the fragment hidden in pix, or "" when the header is
// zero, implausibly large, or longer than the frame can hold.
func (*VideoCodec) ExtractFrame(pix []byte) string {
	length, ok := lsbLength(pix, videoHeaderBits)
	if !ok || length == 0 || length > MaxVideoFragment {
		return ""
	}
	payload, ok := lsbPayload(pix, videoHeaderBits, length)
	if !ok {
		return ""
	}
	return trimFragment(payload)
}

func (c *VideoCodec) Embed(ctx context.Context, carrier []byte, fragment string) ([]byte, error) {
	encoders := c.Encoders
	if len(encoders) == 0 {
		encoders = DefaultVideoEncoders
	}
	if len(encoders) > 2 {
		encoders = encoders[:2]
	}

	var errs []error
	for _, name := range encoders {
		enc, err := avi.LookupEncoder(name)
		if err != nil {
			c.log().WithField("encoder", name).Debug("video encoder unavailable")
			errs = append(errs, err)
			continue
		}
		out, err := c.remux(ctx, carrier, fragment, enc)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, errEncode) {
			return nil, err
		}
		c.log().WithField("encoder", name).WithError(err).Debug("video encoder failed")
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("%w: %v", ErrEncoderUnavailable, errors.Join(errs...))
}

// errEncode marks failures of the encoder itself, as opposed to the carrier,
// so that Embed knows a fallback encoder is worth trying.
var errEncode = errors.New("encode frame")

func (c *VideoCodec) remux(ctx context.Context, carrier []byte, fragment string, enc avi.Encoder) ([]byte, error) {
	src, err := openFrames(carrier)
	if err != nil {
		return nil, err
	}
	first, err := src.Next()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: video has no frames", ErrFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	first.Pix, err = c.EmbedFrame(first.Pix, fragment)
	if err != nil {
		return nil, err
	}

	info := src.Info()
	var buf avi.Buffer
	w, err := avi.NewWriter(&buf, enc, first.Width, first.Height, info.Rate, info.Scale)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if err := writeFrame(w, first, 0); err != nil {
		return nil, err
	}
	n := 1
	for ; ; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: frame %d: %v", ErrFormat, n, err)
		}
		if err := writeFrame(w, f, n); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", errEncode, err)
	}
	c.log().WithFields(logrus.Fields{
		"encoder": enc.Name(),
		"frames":  n,
	}).Debug("video remuxed")
	return buf.Bytes(), nil
}

func writeFrame(w *avi.Writer, f *avi.Frame, n int) error {
	err := w.WriteFrame(f)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, avi.ErrFrameSize):
		return fmt.Errorf("%w: frame %d: %v", ErrFormat, n, err)
	default:
		return fmt.Errorf("%w: frame %d: %v", errEncode, n, err)
	}
}

func (c *VideoCodec) Extract(_ context.Context, carrier []byte) (string, error) {
	src, err := openFrames(carrier)
	if err != nil {
		return "", err
	}
	first, err := src.Next()
	if err == io.EOF {
		return "", fmt.Errorf("%w: video has no frames", ErrFormat)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFormat, err)
	}
	fragment := c.ExtractFrame(first.Pix)
	if fragment == "" {
		return "", ErrNoFragment
	}
	return fragment, nil
}

func (c *VideoCodec) log() logrus.FieldLogger {
	if c.Log == nil {
		return logrus.StandardLogger()
	}
	return c.Log
}
