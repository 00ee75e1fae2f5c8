// Package avi reads and writes RIFF AVI files with a single video stream.
//
// The reader understands uncompressed DIB frames as well as PNG and Motion
// JPEG frames. The writer only produces lossless frames so that pixel data
// survives a write/read cycle bit for bit.
package avi

import (
	"image"
	"image/color"
)

type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrFormat         = Error("malformed avi file")
	ErrNoVideo        = Error("avi file has no video stream")
	ErrUnsupported    = Error("unsupported avi video compression")
	ErrUnknownEncoder = Error("unknown video encoder")
	ErrFrameSize      = Error("frame size does not match stream")
	ErrClosed         = Error("avi writer closed")
)

// MaxDimension bounds frame width and height. The stream header stores
// them as int16.
const MaxDimension = 1<<15 - 1

// Frame is a packed RGB24 raster stored top-down, three bytes per pixel.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

func NewFrame(width, height int) *Frame {
	return &Frame{Width: width, Height: height, Pix: make([]byte, width*height*3)}
}

// FrameFromImage flattens img into RGB24, dropping alpha.
func FrameFromImage(img image.Image) *Frame {
	b := img.Bounds()
	f := NewFrame(b.Dx(), b.Dy())
	i := 0
	switch src := img.(type) {
	case *image.RGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, y):]
			for x := 0; x < f.Width; x++ {
				copy(f.Pix[i:i+3], row[x*4:x*4+3])
				i += 3
			}
		}
	case *image.NRGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, y):]
			for x := 0; x < f.Width; x++ {
				copy(f.Pix[i:i+3], row[x*4:x*4+3])
				i += 3
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
				f.Pix[i], f.Pix[i+1], f.Pix[i+2] = c.R, c.G, c.B
				i += 3
			}
		}
	}
	return f
}

// Image returns an opaque copy of f.
func (f *Frame) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, j := 0, 0; i < len(f.Pix); i, j = i+3, j+4 {
		img.Pix[j], img.Pix[j+1], img.Pix[j+2], img.Pix[j+3] = f.Pix[i], f.Pix[i+1], f.Pix[i+2], 0xFF
	}
	return img
}

func (f *Frame) Clone() *Frame {
	pix := make([]byte, len(f.Pix))
	copy(pix, f.Pix)
	return &Frame{Width: f.Width, Height: f.Height, Pix: pix}
}

// StreamInfo describes the video stream. The frame rate is Rate/Scale.
type StreamInfo struct {
	Width       int
	Height      int
	Rate        uint32
	Scale       uint32
	Frames      int
	Handler     string
	Compression string
}

const (
	avifHasIndex   = 0x00000010
	aviifKeyframe  = 0x00000010
	biRGB          = 0
	mainHeaderSize = 56
	streamHdrSize  = 56
	bitmapHdrSize  = 40
)

type mainHeader struct {
	MicroSecPerFrame    uint32
	MaxBytesPerSec      uint32
	PaddingGranularity  uint32
	Flags               uint32
	TotalFrames         uint32
	InitialFrames       uint32
	Streams             uint32
	SuggestedBufferSize uint32
	Width               uint32
	Height              uint32
	Reserved            [4]uint32
}

type streamHeader struct {
	Type                [4]byte
	Handler             [4]byte
	Flags               uint32
	Priority            uint16
	Language            uint16
	InitialFrames       uint32
	Scale               uint32
	Rate                uint32
	Start               uint32
	Length              uint32
	SuggestedBufferSize uint32
	Quality             uint32
	SampleSize          uint32
	Frame               [4]int16
}

type bitmapInfoHeader struct {
	Size          uint32
	Width         int32
	Height        int32
	Planes        uint16
	BitCount      uint16
	Compression   [4]byte
	SizeImage     uint32
	XPelsPerMeter int32
	YPelsPerMeter int32
	ClrUsed       uint32
	ClrImportant  uint32
}

func fourcc(s string) (b [4]byte) {
	copy(b[:], s)
	return b
}

// compressionName maps a biCompression value to a fourcc string. BI_RGB is "".
func compressionName(c [4]byte) string {
	if c == ([4]byte{}) {
		return ""
	}
	return string(c[:])
}
