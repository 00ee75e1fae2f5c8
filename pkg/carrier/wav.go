package carrier

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"
)

const (
	wavFormatPCM        = 0x0001
	wavFormatIEEEFloat  = 0x0003
	wavFormatExtensible = 0xFFFE
)

// WAVFormat is the subset of the "fmt " chunk needed to describe PCM samples.
type WAVFormat struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// wavFile locates the sample bytes inside a RIFF/WAVE file. Everything outside
// [dataOffset, dataOffset+dataSize) is copied through untouched on embed.
type wavFile struct {
	Format     WAVFormat
	dataOffset int64
	dataSize   int64
}

func parseWAV(b []byte) (*wavFile, error) {
	s := kaitai.NewStream(bytes.NewReader(b))

	riff, err := s.ReadBytes(4)
	if err != nil || string(riff) != "RIFF" {
		return nil, fmt.Errorf("%w: missing RIFF header", ErrFormat)
	}
	if _, err := s.ReadU4le(); err != nil {
		return nil, fmt.Errorf("%w: truncated RIFF header", ErrFormat)
	}
	wave, err := s.ReadBytes(4)
	if err != nil || string(wave) != "WAVE" {
		return nil, fmt.Errorf("%w: not a WAVE file", ErrFormat)
	}

	var (
		wav     wavFile
		haveFmt bool
		total   = int64(len(b))
	)
	wav.dataOffset = -1
	for {
		pos, err := s.Pos()
		if err != nil {
			return nil, err
		}
		if total-pos < 8 {
			break
		}
		id, err := s.ReadBytes(4)
		if err != nil {
			return nil, err
		}
		size, err := s.ReadU4le()
		if err != nil {
			return nil, err
		}
		start := pos + 8
		end := start + int64(size)

		switch string(id) {
		case "fmt ":
			if size < 16 || end > total {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrFormat)
			}
			if err := readWAVFormat(s, &wav.Format); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrFormat, err)
			}
			haveFmt = true
		case "data":
			// Streaming writers leave the size unset; the samples run to the end of the file.
			if end > total {
				end = total
			}
			wav.dataOffset = start
			wav.dataSize = end - start
		}

		if end > total {
			break
		}
		next := end + end&1
		if _, err := s.Seek(next, io.SeekStart); err != nil {
			return nil, err
		}
	}

	if !haveFmt {
		return nil, fmt.Errorf("%w: missing fmt chunk", ErrFormat)
	}
	if wav.dataOffset < 0 {
		return nil, fmt.Errorf("%w: missing data chunk", ErrFormat)
	}
	switch wav.Format.AudioFormat {
	case wavFormatPCM, wavFormatIEEEFloat, wavFormatExtensible:
	default:
		return nil, fmt.Errorf("%w: compressed wave format 0x%04x", ErrFormat, wav.Format.AudioFormat)
	}
	return &wav, nil
}

func readWAVFormat(s *kaitai.Stream, f *WAVFormat) error {
	var err error
	if f.AudioFormat, err = s.ReadU2le(); err != nil {
		return err
	}
	if f.Channels, err = s.ReadU2le(); err != nil {
		return err
	}
	if f.SampleRate, err = s.ReadU4le(); err != nil {
		return err
	}
	if f.ByteRate, err = s.ReadU4le(); err != nil {
		return err
	}
	if f.BlockAlign, err = s.ReadU2le(); err != nil {
		return err
	}
	f.BitsPerSample, err = s.ReadU2le()
	return err
}

func (w *wavFile) samples(b []byte) []byte {
	return b[w.dataOffset : w.dataOffset+w.dataSize]
}

// EncodeWAV writes a canonical 44-byte-header PCM wave file around samples.
func EncodeWAV(sampleRate uint32, channels, bitsPerSample uint16, samples []byte) []byte {
	blockAlign := channels * bitsPerSample / 8
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(samples)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, struct {
		Size uint32
		WAVFormat
	}{
		Size: 16,
		WAVFormat: WAVFormat{
			AudioFormat:   wavFormatPCM,
			Channels:      channels,
			SampleRate:    sampleRate,
			ByteRate:      sampleRate * uint32(blockAlign),
			BlockAlign:    blockAlign,
			BitsPerSample: bitsPerSample,
		},
	})
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(samples)))
	buf.Write(samples)
	if len(samples)%2 == 1 {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}
