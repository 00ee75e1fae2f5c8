package carrier_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/stegokey/backend-go/pkg/carrier"
	"github.com/stegokey/backend-go/pkg/carrier/avi"
	"github.com/stegokey/backend-go/pkg/carrier/carriertest"
)

func TestVideoFrameRoundTrip(t *testing.T) {
	codec := carrier.NewVideoCodec(nil, nil)
	pix := avi.FrameFromImage(carriertest.Pattern(16, 16, 3)).Pix

	out, err := codec.EmbedFrame(pix, "LWtleS1mcmFnbWVudA")
	require.NoError(t, err)
	require.Equal(t, "LWtleS1mcmFnbWVudA", codec.ExtractFrame(out))
}

func TestVideoExtractFrameEdgeCases(t *testing.T) {
	codec := carrier.NewVideoCodec(nil, nil)

	require.Equal(t, "", codec.ExtractFrame(make([]byte, 31)), "shorter than header")
	require.Equal(t, "", codec.ExtractFrame(make([]byte, 4096)), "zero length")

	// header of 1001
	length := 1001
	pix := make([]byte, 32+8*length)
	for i := 0; i < 32; i++ {
		pix[i] = byte(length>>uint(31-i)) & 1
	}
	require.Equal(t, "", codec.ExtractFrame(pix), "implausible length")

	out, err := codec.EmbedFrame(make([]byte, 32+8*5), "hello")
	require.NoError(t, err)
	require.Equal(t, "", codec.ExtractFrame(out[:32+8*4]), "payload cut short")
}

func TestVideoEmbedFrameLimits(t *testing.T) {
	codec := carrier.NewVideoCodec(nil, nil)
	_, err := codec.EmbedFrame(make([]byte, 32+8*1001), strings.Repeat("a", 1001))
	require.ErrorIs(t, err, carrier.ErrFragmentTooLong)

	_, err = codec.EmbedFrame(make([]byte, 32+8*3-1), "abc")
	require.ErrorIs(t, err, carrier.ErrCarrierTooSmall)
}

func readFrames(t *testing.T, b []byte) (avi.StreamInfo, []*avi.Frame) {
	t.Helper()
	r, err := avi.NewReader(bytes.NewReader(b))
	require.NoError(t, err)
	var frames []*avi.Frame
	for {
		f, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		frames = append(frames, f)
	}
	return r.Info(), frames
}

func TestVideoFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	for _, encoder := range []string{"png", "raw"} {
		t.Run(encoder, func(t *testing.T) {
			codec := carrier.NewVideoCodec([]string{encoder}, nil)
			in := carriertest.AVI(t, 10, 32, 24, "png")

			out, err := codec.Embed(ctx, in, "ZnJhZ21lbnQtdHdv")
			require.NoError(t, err)

			got, err := codec.Extract(ctx, out)
			require.NoError(t, err)
			require.Equal(t, "ZnJhZ21lbnQtdHdv", got)

			info, frames := readFrames(t, out)
			require.Len(t, frames, 10)
			require.Equal(t, 10, info.Frames)
			require.EqualValues(t, 10, info.Rate)
			for i := 1; i < len(frames); i++ {
				want := avi.FrameFromImage(carriertest.Pattern(32, 24, i))
				require.Equal(t, want.Pix, frames[i].Pix, "frame %d must be copied through", i)
			}
			original := avi.FrameFromImage(carriertest.Pattern(32, 24, 0)).Pix
			for i := range original {
				require.Equal(t, original[i]&0xFE, frames[0].Pix[i]&0xFE)
			}
		})
	}
}

func TestVideoOutputIsDeterministic(t *testing.T) {
	ctx := context.Background()
	codec := carrier.NewVideoCodec(nil, nil)
	in := carriertest.AVI(t, 3, 16, 16, "raw")
	a, err := codec.Embed(ctx, in, "abc")
	require.NoError(t, err)
	b, err := codec.Embed(ctx, in, "abc")
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestVideoFromGIF(t *testing.T) {
	ctx := context.Background()
	codec := carrier.NewVideoCodec(nil, nil)
	out, err := codec.Embed(ctx, carriertest.GIF(t, 4, 20, 20), "Z2lm")
	require.NoError(t, err)
	require.Equal(t, "RIFF", string(out[:4]))

	got, err := codec.Extract(ctx, out)
	require.NoError(t, err)
	require.Equal(t, "Z2lm", got)

	info, frames := readFrames(t, out)
	require.Len(t, frames, 4)
	require.Equal(t, 20, info.Width)
}

func TestVideoEncoderFallback(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	codec := carrier.NewVideoCodec([]string{"ffv1", "raw"}, log)

	out, err := codec.Embed(context.Background(), carriertest.AVI(t, 2, 16, 16, "png"), "abc")
	require.NoError(t, err)
	info, _ := readFrames(t, out)
	require.Equal(t, "DIB ", info.Handler)

	var unavailable bool
	for _, e := range hook.AllEntries() {
		if e.Message == "video encoder unavailable" && e.Data["encoder"] == "ffv1" {
			unavailable = true
		}
	}
	require.True(t, unavailable)
}

func TestVideoNoEncoderAvailable(t *testing.T) {
	codec := carrier.NewVideoCodec([]string{"ffv1", "x264", "png"}, nil)
	_, err := codec.Embed(context.Background(), carriertest.AVI(t, 2, 16, 16, "png"), "abc")
	require.ErrorIs(t, err, carrier.ErrEncoderUnavailable)
}

func TestVideoEmbedCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := carrier.NewVideoCodec(nil, nil).Embed(ctx, carriertest.AVI(t, 3, 16, 16, "png"), "abc")
	require.ErrorIs(t, err, context.Canceled)
}

func TestVideoErrors(t *testing.T) {
	ctx := context.Background()
	codec := carrier.NewVideoCodec(nil, nil)

	_, err := codec.Embed(ctx, []byte("RIFF....WAVEfmt "), "a")
	require.ErrorIs(t, err, carrier.ErrFormat)

	_, err = codec.Extract(ctx, carriertest.AVI(t, 0, 16, 16, "png"))
	require.ErrorIs(t, err, carrier.ErrFormat)
}

func TestVideoNegativeFrameWidth(t *testing.T) {
	ctx := context.Background()
	codec := carrier.NewVideoCodec(nil, nil)
	in := carriertest.AVI(t, 2, 16, 16, "raw")
	// biWidth of the strf chunk
	width := int32(-16)
	binary.LittleEndian.PutUint32(in[176:], uint32(width))

	require.NotPanics(t, func() {
		_, err := codec.Embed(ctx, in, "abc")
		require.ErrorIs(t, err, carrier.ErrFormat)
		_, err = codec.Extract(ctx, in)
		require.ErrorIs(t, err, carrier.ErrFormat)
	})
}
