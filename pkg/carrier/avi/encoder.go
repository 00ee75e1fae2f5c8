package avi

import (
	"bytes"
	"fmt"
	"image/png"
	"sync"

	"golang.org/x/exp/slices"
)

// Encoder compresses frames for the writer. Every registered encoder is lossless.
type Encoder interface {
	Name() string
	// Handler is the fccHandler written to the stream header.
	Handler() string
	// Compression is the biCompression fourcc, or "" for BI_RGB.
	Compression() string
	BitCount() uint16
	// ChunkType is "dc" for compressed frames and "db" for raw DIBs.
	ChunkType() string
	Encode(f *Frame) ([]byte, error)
}

var (
	encodersMu sync.RWMutex
	encoders   = map[string]Encoder{}
)

func init() {
	RegisterEncoder(PNGEncoder{})
	RegisterEncoder(RawEncoder{})
}

func RegisterEncoder(e Encoder) {
	encodersMu.Lock()
	defer encodersMu.Unlock()
	encoders[e.Name()] = e
}

func LookupEncoder(name string) (Encoder, error) {
	encodersMu.RLock()
	defer encodersMu.RUnlock()
	e, ok := encoders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoder, name)
	}
	return e, nil
}

// Encoders lists registered encoder names.
func Encoders() []string {
	encodersMu.RLock()
	defer encodersMu.RUnlock()
	names := make([]string, 0, len(encoders))
	for name := range encoders {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// PNGEncoder stores each frame as a PNG image.
type PNGEncoder struct{}

func (PNGEncoder) Name() string        { return "png" }
func (PNGEncoder) Handler() string     { return "MPNG" }
func (PNGEncoder) Compression() string { return "MPNG" }
func (PNGEncoder) BitCount() uint16    { return 24 }
func (PNGEncoder) ChunkType() string   { return "dc" }

func (PNGEncoder) Encode(f *Frame) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, f.Image()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RawEncoder stores bottom-up BGR24 DIBs with rows padded to four bytes.
type RawEncoder struct{}

func (RawEncoder) Name() string        { return "raw" }
func (RawEncoder) Handler() string     { return "DIB " }
func (RawEncoder) Compression() string { return "" }
func (RawEncoder) BitCount() uint16    { return 24 }
func (RawEncoder) ChunkType() string   { return "db" }

func (RawEncoder) Encode(f *Frame) ([]byte, error) {
	stride := dibStride(f.Width, 24)
	out := make([]byte, stride*f.Height)
	for y := 0; y < f.Height; y++ {
		src := f.Pix[y*f.Width*3 : (y+1)*f.Width*3]
		dst := out[(f.Height-1-y)*stride:]
		for x := 0; x < f.Width; x++ {
			dst[x*3], dst[x*3+1], dst[x*3+2] = src[x*3+2], src[x*3+1], src[x*3]
		}
	}
	return out, nil
}

func dibStride(width int, bitCount uint16) int {
	return (width*int(bitCount)/8 + 3) &^ 3
}
