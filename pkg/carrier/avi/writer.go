package avi

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Fixed header layout written by Writer. Sizes are patched on Close.
const (
	hdrlListOffset = 12
	strlListOffset = 88
	moviListOffset = 212
	moviDataOffset = 224
	// idx1 offsets are relative to the 'movi' list type.
	moviTypeOffset = moviListOffset + 8
)

type indexEntry struct {
	ID     [4]byte
	Flags  uint32
	Offset uint32
	Size   uint32
}

// Writer streams frames into a single-stream AVI file. The header is written
// up front with placeholder sizes and rewritten by Close, so frames never need
// to be held in memory.
type Writer struct {
	w   io.WriteSeeker
	enc Encoder

	width, height int
	rate, scale   uint32

	chunkID  [4]byte
	pos      int64
	maxChunk uint32
	index    []indexEntry
	closed   bool
}

func NewWriter(w io.WriteSeeker, enc Encoder, width, height int, rate, scale uint32) (*Writer, error) {
	if width <= 0 || height <= 0 || width > MaxDimension || height > MaxDimension {
		return nil, fmt.Errorf("%w: %dx%d", ErrFrameSize, width, height)
	}
	if rate == 0 || scale == 0 {
		rate, scale = 25, 1
	}
	aw := &Writer{
		w:       w,
		enc:     enc,
		width:   width,
		height:  height,
		rate:    rate,
		scale:   scale,
		chunkID: fourcc("00" + enc.ChunkType()),
	}
	if err := aw.writeHeader(0); err != nil {
		return nil, err
	}
	aw.pos = moviDataOffset
	return aw, nil
}

func (w *Writer) WriteFrame(f *Frame) error {
	if w.closed {
		return ErrClosed
	}
	if f.Width != w.width || f.Height != w.height || len(f.Pix) != f.Width*f.Height*3 {
		return fmt.Errorf("%w: got %dx%d, stream is %dx%d", ErrFrameSize, f.Width, f.Height, w.width, w.height)
	}
	data, err := w.enc.Encode(f)
	if err != nil {
		return fmt.Errorf("%s encoder: %w", w.enc.Name(), err)
	}

	var hdr [8]byte
	copy(hdr[:4], w.chunkID[:])
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(data)))
	if _, err := w.w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := w.w.Write(data); err != nil {
		return err
	}
	n := int64(8 + len(data))
	if len(data)%2 == 1 {
		if _, err := w.w.Write([]byte{0}); err != nil {
			return err
		}
		n++
	}

	w.index = append(w.index, indexEntry{
		ID:     w.chunkID,
		Flags:  aviifKeyframe,
		Offset: uint32(w.pos - moviTypeOffset),
		Size:   uint32(len(data)),
	})
	if uint32(len(data)) > w.maxChunk {
		w.maxChunk = uint32(len(data))
	}
	w.pos += n
	return nil
}

// Close writes the index and patches the header. It does not close the
// underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	moviEnd := w.pos
	var idx bytes.Buffer
	idx.WriteString("idx1")
	_ = binary.Write(&idx, binary.LittleEndian, uint32(len(w.index)*16))
	_ = binary.Write(&idx, binary.LittleEndian, w.index)
	if _, err := w.w.Write(idx.Bytes()); err != nil {
		return err
	}
	w.pos += int64(idx.Len())

	if _, err := w.w.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := w.writeHeader(moviEnd); err != nil {
		return err
	}
	_, err := w.w.Seek(w.pos, io.SeekStart)
	return err
}

func (w *Writer) writeHeader(moviEnd int64) error {
	if moviEnd < moviDataOffset {
		moviEnd = moviDataOffset
	}
	fileSize := w.pos
	if fileSize < moviDataOffset {
		fileSize = moviDataOffset
	}
	frames := uint32(len(w.index))

	var buf bytes.Buffer
	put := func(v any) { _ = binary.Write(&buf, binary.LittleEndian, v) }
	list := func(size int64, t string) {
		buf.WriteString("LIST")
		put(uint32(size))
		buf.WriteString(t)
	}

	buf.WriteString("RIFF")
	put(uint32(fileSize - 8))
	buf.WriteString("AVI ")

	list(moviListOffset-hdrlListOffset-8, "hdrl")
	buf.WriteString("avih")
	put(uint32(mainHeaderSize))
	put(mainHeader{
		MicroSecPerFrame:    uint32(uint64(w.scale) * 1000000 / uint64(w.rate)),
		Flags:               avifHasIndex,
		TotalFrames:         frames,
		Streams:             1,
		SuggestedBufferSize: w.maxChunk,
		Width:               uint32(w.width),
		Height:              uint32(w.height),
	})

	list(moviListOffset-strlListOffset-8, "strl")
	buf.WriteString("strh")
	put(uint32(streamHdrSize))
	put(streamHeader{
		Type:                fourcc("vids"),
		Handler:             fourcc(w.enc.Handler()),
		Scale:               w.scale,
		Rate:                w.rate,
		Length:              frames,
		SuggestedBufferSize: w.maxChunk,
		Quality:             0xFFFFFFFF,
		Frame:               [4]int16{0, 0, int16(w.width), int16(w.height)},
	})
	buf.WriteString("strf")
	put(uint32(bitmapHdrSize))
	put(bitmapInfoHeader{
		Size:        bitmapHdrSize,
		Width:       int32(w.width),
		Height:      int32(w.height),
		Planes:      1,
		BitCount:    w.enc.BitCount(),
		Compression: fourcc(w.enc.Compression()),
		SizeImage:   uint32(dibStride(w.width, w.enc.BitCount()) * w.height),
	})

	list(moviEnd-moviTypeOffset, "movi")

	if buf.Len() != moviDataOffset {
		return fmt.Errorf("avi header is %d bytes, want %d", buf.Len(), moviDataOffset)
	}
	_, err := w.w.Write(buf.Bytes())
	return err
}

// Buffer is an in-memory io.WriteSeeker.
type Buffer struct {
	buf []byte
	pos int
}

func (b *Buffer) Write(p []byte) (int, error) {
	if end := b.pos + len(p); end > len(b.buf) {
		if end > cap(b.buf) {
			grown := make([]byte, end, 2*end)
			copy(grown, b.buf)
			b.buf = grown
		} else {
			b.buf = b.buf[:end]
		}
	}
	copy(b.buf[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *Buffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return 0, fmt.Errorf("avi: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("avi: negative position %d", abs)
	}
	b.pos = int(abs)
	return abs, nil
}

func (b *Buffer) Bytes() []byte {
	return b.buf
}
