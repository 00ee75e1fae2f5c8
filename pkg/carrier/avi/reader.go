package avi

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"
)

// Reader decodes the first video stream of an AVI file one frame at a time.
type Reader struct {
	s    *kaitai.Stream
	info StreamInfo

	bitCount uint16
	topDown  bool
	streamID string

	moviEnd int64
	last    *Frame
}

func NewReader(r io.ReadSeeker) (*Reader, error) {
	rd := &Reader{s: kaitai.NewStream(r)}
	if err := rd.parse(); err != nil {
		return nil, err
	}
	return rd, nil
}

func (r *Reader) Info() StreamInfo {
	return r.info
}

type chunk struct {
	id    string
	start int64
	end   int64
}

// readChunk reads a chunk header at the current position. end is clamped to limit.
func (r *Reader) readChunk(limit int64) (chunk, error) {
	pos, err := r.s.Pos()
	if err != nil {
		return chunk{}, err
	}
	if limit-pos < 8 {
		return chunk{}, io.EOF
	}
	id, err := r.s.ReadBytes(4)
	if err != nil {
		return chunk{}, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	size, err := r.s.ReadU4le()
	if err != nil {
		return chunk{}, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	c := chunk{id: string(id), start: pos + 8, end: pos + 8 + int64(size)}
	if c.end > limit {
		c.end = limit
	}
	return c, nil
}

func (r *Reader) skip(c chunk) error {
	_, err := r.s.Seek(c.end+c.end&1, io.SeekStart)
	return err
}

func (r *Reader) listType() (string, error) {
	t, err := r.s.ReadBytes(4)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return string(t), nil
}

func (r *Reader) readStruct(c chunk, size int, v any) error {
	if c.end-c.start < int64(size) {
		return fmt.Errorf("%w: short %q chunk", ErrFormat, c.id)
	}
	b, err := r.s.ReadBytes(size)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return binary.Read(bytes.NewReader(b), binary.LittleEndian, v)
}

func (r *Reader) parse() error {
	total, err := r.s.Size()
	if err != nil {
		return err
	}
	riff, err := r.readChunk(total)
	if err != nil || riff.id != "RIFF" {
		return fmt.Errorf("%w: missing RIFF header", ErrFormat)
	}
	if form, err := r.listType(); err != nil || form != "AVI " {
		return fmt.Errorf("%w: not an AVI file", ErrFormat)
	}

	var main mainHeader
	haveHeader, haveMovi := false, false
	for !haveMovi {
		c, err := r.readChunk(riff.end)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if c.id == "LIST" {
			t, err := r.listType()
			if err != nil {
				return err
			}
			switch t {
			case "hdrl":
				if err := r.parseHeaderList(c, &main); err != nil {
					return err
				}
				haveHeader = true
			case "movi":
				haveMovi = true
				r.moviEnd = c.end
				continue
			}
		}
		if err := r.skip(c); err != nil {
			return err
		}
	}

	switch {
	case !haveHeader:
		return fmt.Errorf("%w: missing hdrl list", ErrFormat)
	case r.streamID == "":
		return ErrNoVideo
	case !haveMovi:
		return fmt.Errorf("%w: missing movi list", ErrFormat)
	}
	if r.info.Frames == 0 {
		r.info.Frames = int(main.TotalFrames)
	}
	return nil
}

func (r *Reader) parseHeaderList(list chunk, main *mainHeader) error {
	streams := 0
	for {
		c, err := r.readChunk(list.end)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch c.id {
		case "avih":
			if err := r.readStruct(c, mainHeaderSize, main); err != nil {
				return err
			}
		case "LIST":
			t, err := r.listType()
			if err != nil {
				return err
			}
			if t == "strl" {
				if err := r.parseStreamList(c, streams); err != nil {
					return err
				}
				streams++
			}
		}
		if err := r.skip(c); err != nil {
			return err
		}
	}
}

func (r *Reader) parseStreamList(list chunk, index int) error {
	var hdr streamHeader
	haveHeader := false
	for {
		c, err := r.readChunk(list.end)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch c.id {
		case "strh":
			if err := r.readStruct(c, streamHdrSize, &hdr); err != nil {
				return err
			}
			haveHeader = true
		case "strf":
			if haveHeader && string(hdr.Type[:]) == "vids" && r.streamID == "" {
				var bih bitmapInfoHeader
				if err := r.readStruct(c, bitmapHdrSize, &bih); err != nil {
					return err
				}
				if err := r.useStream(index, hdr, bih); err != nil {
					return err
				}
			}
		}
		if err := r.skip(c); err != nil {
			return err
		}
	}
}

func (r *Reader) useStream(index int, hdr streamHeader, bih bitmapInfoHeader) error {
	width, height := int(bih.Width), int(bih.Height)
	if height < 0 {
		height = -height
		r.topDown = true
	}
	if width <= 0 || height == 0 || width > MaxDimension || height > MaxDimension {
		return fmt.Errorf("%w: frame size %dx%d", ErrFormat, bih.Width, bih.Height)
	}
	r.streamID = fmt.Sprintf("%02d", index)
	r.bitCount = bih.BitCount
	r.info = StreamInfo{
		Width:       width,
		Height:      height,
		Rate:        hdr.Rate,
		Scale:       hdr.Scale,
		Frames:      int(hdr.Length),
		Handler:     string(bytes.TrimRight(hdr.Handler[:], "\x00")),
		Compression: compressionName(bih.Compression),
	}
	return nil
}

// Next returns the next frame of the video stream, or io.EOF after the last.
func (r *Reader) Next() (*Frame, error) {
	for {
		c, err := r.readChunk(r.moviEnd)
		if err != nil {
			return nil, err
		}
		if c.id == "LIST" {
			// 'rec ' groups are read in place.
			if _, err := r.listType(); err != nil {
				return nil, err
			}
			continue
		}
		if c.id[:2] != r.streamID || (c.id[2:] != "dc" && c.id[2:] != "db") {
			if err := r.skip(c); err != nil {
				return nil, err
			}
			continue
		}

		size := c.end - c.start
		if size == 0 {
			// An empty chunk repeats the previous frame.
			if err := r.skip(c); err != nil {
				return nil, err
			}
			if r.last == nil {
				continue
			}
			return r.last.Clone(), nil
		}
		data, err := r.s.ReadBytes(int(size))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		if err := r.skip(c); err != nil {
			return nil, err
		}
		f, err := r.decode(data)
		if err != nil {
			return nil, err
		}
		r.last = f
		return f.Clone(), nil
	}
}

func (r *Reader) decode(data []byte) (*Frame, error) {
	switch r.info.Compression {
	case "", "DIB ", "RGB ", "RAW ":
		return r.decodeDIB(data)
	case "MPNG", "PNG1", "png ":
		return decodeImage(data, png.Decode)
	case "MJPG", "mjpg", "JPEG":
		return decodeImage(data, jpeg.Decode)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, r.info.Compression)
	}
}

func decodeImage(data []byte, decode func(io.Reader) (image.Image, error)) (*Frame, error) {
	img, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return FrameFromImage(img), nil
}

func (r *Reader) decodeDIB(data []byte) (*Frame, error) {
	if r.bitCount != 24 && r.bitCount != 32 {
		return nil, fmt.Errorf("%w: %d-bit DIB", ErrUnsupported, r.bitCount)
	}
	w, h := r.info.Width, r.info.Height
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: frame size %dx%d", ErrFormat, w, h)
	}
	stride := dibStride(w, r.bitCount)
	if len(data) < stride*h {
		return nil, fmt.Errorf("%w: DIB frame has %d bytes, want %d", ErrFormat, len(data), stride*h)
	}
	bpp := int(r.bitCount) / 8
	f := NewFrame(w, h)
	for y := 0; y < h; y++ {
		srcY := y
		if !r.topDown {
			srcY = h - 1 - y
		}
		src := data[srcY*stride:]
		dst := f.Pix[y*w*3:]
		for x := 0; x < w; x++ {
			dst[x*3], dst[x*3+1], dst[x*3+2] = src[x*bpp+2], src[x*bpp+1], src[x*bpp]
		}
	}
	return f, nil
}
