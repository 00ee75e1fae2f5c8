package carrier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/auyer/steganography"
)

// Primitive is the image LSB scheme. Hide returns an encoded PNG file.
type Primitive interface {
	Hide(img image.Image, message []byte) ([]byte, error)
	Reveal(img image.Image) ([]byte, error)
}

// ImageCodec delegates framing and capacity to a Primitive; it only decodes
// the carrier and turns primitive failures into errors.
type ImageCodec struct {
	primitive Primitive
}

func NewImageCodec(p Primitive) *ImageCodec {
	if p == nil {
		p = LSBPrimitive{}
	}
	return &ImageCodec{primitive: p}
}

func (*ImageCodec) Kind() Kind {
	return Image
}

func (*ImageCodec) Ext() string {
	return ".png"
}

func (c *ImageCodec) Embed(_ context.Context, carrier []byte, fragment string) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(carrier))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	out, err := c.hide(img, []byte(fragment))
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrPrimitive)
	}
	return out, nil
}

func (c *ImageCodec) Extract(_ context.Context, carrier []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(carrier))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFormat, err)
	}
	msg, err := c.reveal(img)
	if err != nil {
		return "", err
	}
	fragment := trimFragment(msg)
	if fragment == "" {
		return "", ErrNoFragment
	}
	return fragment, nil
}

func (c *ImageCodec) hide(img image.Image, msg []byte) (out []byte, err error) {
	defer recoverPrimitive(&err)
	return c.primitive.Hide(img, msg)
}

func (c *ImageCodec) reveal(img image.Image) (msg []byte, err error) {
	defer recoverPrimitive(&err)
	return c.primitive.Reveal(img)
}

// LSBPrimitive is backed by github.com/auyer/steganography, which stores a
// 4-byte length followed by the message in the RGB low bits.
type LSBPrimitive struct{}

func (LSBPrimitive) Hide(img image.Image, message []byte) ([]byte, error) {
	if limit := steganography.MaxEncodeSize(img); uint64(len(message)) > uint64(limit) {
		return nil, fmt.Errorf("%w: need %d bytes, image holds %d", ErrCarrierTooSmall, len(message), limit)
	}
	var buf bytes.Buffer
	if err := steganography.Encode(&buf, img, message); err != nil {
		return nil, errors.Join(ErrPrimitive, err)
	}
	return buf.Bytes(), nil
}

func (LSBPrimitive) Reveal(img image.Image) ([]byte, error) {
	size := steganography.GetMessageSizeFromImage(img)
	if size == 0 || size > steganography.MaxEncodeSize(img) {
		return nil, nil
	}
	return steganography.Decode(size, img), nil
}

func recoverPrimitive(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v", ErrPrimitive, r)
	}
}
