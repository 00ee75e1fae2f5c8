package carrier

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"io"

	"github.com/stegokey/backend-go/pkg/carrier/avi"
)

// frameSource yields decoded frames in order and io.EOF after the last one.
type frameSource interface {
	Info() avi.StreamInfo
	Next() (*avi.Frame, error)
}

// openFrames sniffs the container and returns a frame source over b.
func openFrames(b []byte) (frameSource, error) {
	switch {
	case len(b) >= 12 && string(b[:4]) == "RIFF" && string(b[8:12]) == "AVI ":
		r, err := avi.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		return r, nil
	case len(b) >= 6 && (string(b[:6]) == "GIF87a" || string(b[:6]) == "GIF89a"):
		return newGIFFrames(b)
	default:
		return nil, fmt.Errorf("%w: unrecognised video container", ErrFormat)
	}
}

// gifFrames composites animated GIF frames onto a canvas, honouring each
// frame's disposal method.
type gifFrames struct {
	g      *gif.GIF
	canvas *image.NRGBA
	i      int
	info   avi.StreamInfo
}

func newGIFFrames(b []byte) (*gifFrames, error) {
	g, err := gif.DecodeAll(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("%w: gif has no frames", ErrFormat)
	}
	w, h := g.Config.Width, g.Config.Height
	if w == 0 || h == 0 {
		r := g.Image[0].Bounds()
		w, h = r.Max.X, r.Max.Y
	}
	scale := uint32(10)
	if len(g.Delay) > 0 && g.Delay[0] > 0 {
		scale = uint32(g.Delay[0])
	}
	return &gifFrames{
		g:      g,
		canvas: image.NewNRGBA(image.Rect(0, 0, w, h)),
		info: avi.StreamInfo{
			Width:  w,
			Height: h,
			Rate:   100,
			Scale:  scale,
			Frames: len(g.Image),
		},
	}, nil
}

func (s *gifFrames) Info() avi.StreamInfo {
	return s.info
}

func (s *gifFrames) Next() (*avi.Frame, error) {
	if s.i >= len(s.g.Image) {
		return nil, io.EOF
	}
	pm := s.g.Image[s.i]
	var disposal byte
	if s.i < len(s.g.Disposal) {
		disposal = s.g.Disposal[s.i]
	}
	s.i++

	var previous *image.NRGBA
	if disposal == gif.DisposalPrevious {
		previous = image.NewNRGBA(s.canvas.Bounds())
		copy(previous.Pix, s.canvas.Pix)
	}
	draw.Draw(s.canvas, pm.Bounds(), pm, pm.Bounds().Min, draw.Over)
	f := avi.FrameFromImage(s.canvas)

	switch disposal {
	case gif.DisposalBackground:
		draw.Draw(s.canvas, pm.Bounds(), image.Transparent, image.Point{}, draw.Src)
	case gif.DisposalPrevious:
		s.canvas = previous
	}
	return f, nil
}
