// Package carriertest builds small synthetic carrier files for tests.
package carriertest

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stegokey/backend-go/pkg/carrier"
	"github.com/stegokey/backend-go/pkg/carrier/avi"
)

// Pattern returns a deterministic opaque gradient of the given size, shifted by seed.
func Pattern(width, height, seed int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x*7 + seed),
				G: uint8(y*5 + seed*3),
				B: uint8((x ^ y) + seed*11),
				A: 0xFF,
			})
		}
	}
	return img
}

func PNG(t testing.TB, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, Pattern(width, height, 0)))
	return buf.Bytes()
}

// WAV returns a mono 8-bit PCM tone.
func WAV(seconds float64, sampleRate uint32) []byte {
	n := int(seconds * float64(sampleRate))
	samples := make([]byte, n)
	for i := range samples {
		samples[i] = uint8(128 + 100*math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
	}
	return carrier.EncodeWAV(sampleRate, 1, 8, samples)
}

// AVI returns a video of frames distinct frames written with the named encoder.
func AVI(t testing.TB, frames, width, height int, encoder string) []byte {
	t.Helper()
	enc, err := avi.LookupEncoder(encoder)
	require.NoError(t, err)
	var buf avi.Buffer
	w, err := avi.NewWriter(&buf, enc, width, height, 10, 1)
	require.NoError(t, err)
	for i := 0; i < frames; i++ {
		require.NoError(t, w.WriteFrame(avi.FrameFromImage(Pattern(width, height, i))))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// GIF returns an animated GIF with frames paletted frames.
func GIF(t testing.TB, frames, width, height int) []byte {
	t.Helper()
	palette := color.Palette{}
	for i := 0; i < 256; i++ {
		palette = append(palette, color.NRGBA{R: uint8(i), G: uint8(255 - i), B: uint8(i / 2), A: 0xFF})
	}
	g := &gif.GIF{}
	for f := 0; f < frames; f++ {
		pm := image.NewPaletted(image.Rect(0, 0, width, height), palette)
		for i := range pm.Pix {
			pm.Pix[i] = uint8(i + f*13)
		}
		g.Image = append(g.Image, pm)
		g.Delay = append(g.Delay, 10)
	}
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, g))
	return buf.Bytes()
}
