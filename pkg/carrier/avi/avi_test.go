package avi

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func testFrame(w, h, seed int) *Frame {
	f := NewFrame(w, h)
	for i := range f.Pix {
		f.Pix[i] = byte(i*seed + seed)
	}
	return f
}

func writeAVI(t *testing.T, enc Encoder, frames []*Frame) []byte {
	t.Helper()
	var buf Buffer
	w, err := NewWriter(&buf, enc, frames[0].Width, frames[0].Height, 30000, 1001)
	require.NoError(t, err)
	for _, f := range frames {
		require.NoError(t, w.WriteFrame(f))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestWriterReaderRoundTrip(t *testing.T) {
	for _, name := range Encoders() {
		t.Run(name, func(t *testing.T) {
			enc, err := LookupEncoder(name)
			require.NoError(t, err)
			// odd width exercises DIB row padding
			frames := []*Frame{testFrame(13, 7, 1), testFrame(13, 7, 2), testFrame(13, 7, 3)}
			b := writeAVI(t, enc, frames)

			r, err := NewReader(bytes.NewReader(b))
			require.NoError(t, err)
			info := r.Info()
			require.Equal(t, 13, info.Width)
			require.Equal(t, 7, info.Height)
			require.Equal(t, 3, info.Frames)
			require.EqualValues(t, 30000, info.Rate)
			require.EqualValues(t, 1001, info.Scale)
			require.Equal(t, enc.Handler(), info.Handler)

			for i, want := range frames {
				got, err := r.Next()
				require.NoError(t, err, "frame %d", i)
				require.Equal(t, want.Pix, got.Pix, "frame %d", i)
			}
			_, err = r.Next()
			require.Equal(t, io.EOF, err)
		})
	}
}

func TestWriterLayout(t *testing.T) {
	b := writeAVI(t, RawEncoder{}, []*Frame{testFrame(4, 4, 1), testFrame(4, 4, 2)})

	require.Equal(t, "RIFF", string(b[0:4]))
	require.EqualValues(t, len(b)-8, binary.LittleEndian.Uint32(b[4:]))
	require.Equal(t, "AVI ", string(b[8:12]))
	require.Equal(t, "hdrl", string(b[20:24]))
	require.Equal(t, "LIST", string(b[moviListOffset:moviListOffset+4]))
	require.Equal(t, "movi", string(b[moviTypeOffset:moviTypeOffset+4]))
	require.Equal(t, "00db", string(b[moviDataOffset:moviDataOffset+4]))

	frameSize := 4 * 4 * 3
	idx := moviDataOffset + 2*(8+frameSize)
	require.Equal(t, "idx1", string(b[idx:idx+4]))
	require.EqualValues(t, 32, binary.LittleEndian.Uint32(b[idx+4:]))
	// second entry points at the second chunk, relative to the movi type
	require.EqualValues(t, moviDataOffset-moviTypeOffset+8+frameSize, binary.LittleEndian.Uint32(b[idx+8+16+8:]))
	require.EqualValues(t, 2, binary.LittleEndian.Uint32(b[48:]), "avih total frames")
}

func TestReaderRejectsGarbage(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte("nope")))
	require.ErrorIs(t, err, ErrFormat)

	_, err = NewReader(bytes.NewReader([]byte("RIFF\x04\x00\x00\x00WAVE")))
	require.ErrorIs(t, err, ErrFormat)
}

// biWidth and biHeight of the strf chunk written by Writer.
const (
	biWidthOffset  = 176
	biHeightOffset = 180
)

func TestReaderRejectsBadFrameSize(t *testing.T) {
	for name, patch := range map[string]struct {
		offset int
		value  int32
	}{
		"negative width": {biWidthOffset, -16},
		"zero width":     {biWidthOffset, 0},
		"zero height":    {biHeightOffset, 0},
		"huge width":     {biWidthOffset, MaxDimension + 1},
		"huge height":    {biHeightOffset, -(MaxDimension + 1)},
	} {
		t.Run(name, func(t *testing.T) {
			b := writeAVI(t, RawEncoder{}, []*Frame{testFrame(16, 16, 1), testFrame(16, 16, 2)})
			require.EqualValues(t, 16, binary.LittleEndian.Uint32(b[patch.offset:]))
			binary.LittleEndian.PutUint32(b[patch.offset:], uint32(patch.value))

			_, err := NewReader(bytes.NewReader(b))
			require.ErrorIs(t, err, ErrFormat)
		})
	}
}

func TestReaderTopDownDIB(t *testing.T) {
	want := testFrame(5, 3, 1)
	b := writeAVI(t, RawEncoder{}, []*Frame{want})
	// flip the stored rows and mark the bitmap top-down
	stride := dibStride(5, 24)
	data := b[moviDataOffset+8:]
	rows := make([]byte, stride*3)
	for y := 0; y < 3; y++ {
		copy(rows[y*stride:(y+1)*stride], data[(2-y)*stride:(3-y)*stride])
	}
	copy(data, rows)
	topDown := int32(-3)
	binary.LittleEndian.PutUint32(b[biHeightOffset:], uint32(topDown))

	r, err := NewReader(bytes.NewReader(b))
	require.NoError(t, err)
	require.Equal(t, 3, r.Info().Height)
	got, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, want.Pix, got.Pix)
}

func TestReaderUnsupportedCompression(t *testing.T) {
	RegisterEncoder(h264Stub{})
	defer func() {
		encodersMu.Lock()
		delete(encoders, "h264-stub")
		encodersMu.Unlock()
	}()
	b := writeAVI(t, h264Stub{}, []*Frame{testFrame(4, 4, 1)})
	r, err := NewReader(bytes.NewReader(b))
	require.NoError(t, err)
	_, err = r.Next()
	require.ErrorIs(t, err, ErrUnsupported)
}

type h264Stub struct{}

func (h264Stub) Name() string                  { return "h264-stub" }
func (h264Stub) Handler() string               { return "H264" }
func (h264Stub) Compression() string           { return "H264" }
func (h264Stub) BitCount() uint16              { return 24 }
func (h264Stub) ChunkType() string             { return "dc" }
func (h264Stub) Encode(*Frame) ([]byte, error) { return []byte{0, 0, 0, 1}, nil }

func TestLookupEncoderUnknown(t *testing.T) {
	_, err := LookupEncoder("ffv1")
	require.ErrorIs(t, err, ErrUnknownEncoder)
	require.Equal(t, []string{"png", "raw"}, Encoders())
}

func TestWriterFrameSize(t *testing.T) {
	var buf Buffer
	w, err := NewWriter(&buf, PNGEncoder{}, 4, 4, 25, 1)
	require.NoError(t, err)
	require.ErrorIs(t, w.WriteFrame(testFrame(5, 4, 1)), ErrFrameSize)
	require.NoError(t, w.Close())
	require.ErrorIs(t, w.WriteFrame(testFrame(4, 4, 1)), ErrClosed)

	_, err = NewWriter(&buf, PNGEncoder{}, 0, 4, 25, 1)
	require.ErrorIs(t, err, ErrFrameSize)

	// strh stores the frame rectangle as int16
	_, err = NewWriter(&buf, RawEncoder{}, MaxDimension+1, 4, 25, 1)
	require.ErrorIs(t, err, ErrFrameSize)
	_, err = NewWriter(&buf, RawEncoder{}, 4, MaxDimension+1, 25, 1)
	require.ErrorIs(t, err, ErrFrameSize)
	_, err = NewWriter(&buf, RawEncoder{}, MaxDimension, 1, 25, 1)
	require.NoError(t, err)
}

func TestFrameImageRoundTrip(t *testing.T) {
	src := image.NewRGBA(image.Rect(2, 3, 5, 5))
	src.Set(2, 3, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	src.Set(4, 4, color.RGBA{R: 250, G: 251, B: 252, A: 255})

	f := FrameFromImage(src)
	require.Equal(t, 3, f.Width)
	require.Equal(t, 2, f.Height)
	require.Equal(t, []byte{1, 2, 3}, f.Pix[:3])
	require.Equal(t, []byte{250, 251, 252}, f.Pix[len(f.Pix)-3:])
	require.Equal(t, f.Pix, FrameFromImage(f.Image()).Pix)

	gray := image.NewGray(image.Rect(0, 0, 1, 1))
	gray.Pix[0] = 77
	require.Equal(t, []byte{77, 77, 77}, FrameFromImage(gray).Pix)
}

func TestBufferSeek(t *testing.T) {
	var b Buffer
	_, _ = b.Write([]byte("hello world"))
	_, err := b.Seek(0, io.SeekStart)
	require.NoError(t, err)
	_, _ = b.Write([]byte("J"))
	pos, err := b.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	require.EqualValues(t, 11, pos)
	require.Equal(t, "Jello world", string(b.Bytes()))
	_, err = b.Seek(-1, io.SeekStart)
	require.Error(t, err)
}
