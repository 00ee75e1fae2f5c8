package carrier_test

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stegokey/backend-go/pkg/carrier"
	"github.com/stegokey/backend-go/pkg/carrier/carriertest"
)

func TestImageRoundTrip(t *testing.T) {
	ctx := context.Background()
	codec := carrier.NewImageCodec(nil)
	in := carriertest.PNG(t, 64, 64)

	out, err := codec.Embed(ctx, in, "c2VjcmV0LWtleQ")
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 64, 64), img.Bounds())

	got, err := codec.Extract(ctx, out)
	require.NoError(t, err)
	require.Equal(t, "c2VjcmV0LWtleQ", got)
}

func TestImageTooSmall(t *testing.T) {
	_, err := carrier.NewImageCodec(nil).Embed(context.Background(), carriertest.PNG(t, 8, 8), "0123456789012345678901234567890123456789")
	require.ErrorIs(t, err, carrier.ErrCarrierTooSmall)
}

func TestImageRejectsGarbage(t *testing.T) {
	codec := carrier.NewImageCodec(nil)
	_, err := codec.Embed(context.Background(), []byte("not an image"), "a")
	require.ErrorIs(t, err, carrier.ErrFormat)
	_, err = codec.Extract(context.Background(), []byte("not an image"))
	require.ErrorIs(t, err, carrier.ErrFormat)
}

type panicPrimitive struct{}

func (panicPrimitive) Hide(image.Image, []byte) ([]byte, error) { panic("boom") }
func (panicPrimitive) Reveal(image.Image) ([]byte, error)       { panic("boom") }

type emptyPrimitive struct{}

func (emptyPrimitive) Hide(image.Image, []byte) ([]byte, error) { return nil, nil }
func (emptyPrimitive) Reveal(image.Image) ([]byte, error)       { return []byte("  \n"), nil }

func TestImagePrimitiveFailures(t *testing.T) {
	ctx := context.Background()
	in := carriertest.PNG(t, 16, 16)

	codec := carrier.NewImageCodec(emptyPrimitive{})
	_, err := codec.Embed(ctx, in, "a")
	require.ErrorIs(t, err, carrier.ErrPrimitive)
	_, err = codec.Extract(ctx, in)
	require.ErrorIs(t, err, carrier.ErrNoFragment)

	codec = carrier.NewImageCodec(panicPrimitive{})
	_, err = codec.Embed(ctx, in, "a")
	require.ErrorIs(t, err, carrier.ErrPrimitive)
	_, err = codec.Extract(ctx, in)
	require.ErrorIs(t, err, carrier.ErrPrimitive)
}
