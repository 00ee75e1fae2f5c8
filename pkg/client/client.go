// Package client runs the encode and decode protocols: a fresh key encrypts
// the plaintext, its text encoding is split across an image, a video and an
// audio carrier, and an envelope binds the ciphertext to the digests of the
// encoded carriers.
package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stegokey/backend-go/internal/crypto"
	"github.com/stegokey/backend-go/pkg/carrier"
	"github.com/stegokey/backend-go/pkg/envelope"
)

const tracerName = "github.com/stegokey/backend-go/pkg/client"

// Carriers holds one file per carrier kind.
type Carriers struct {
	Image []byte
	Video []byte
	Audio []byte
}

func (c *Carriers) Get(k carrier.Kind) []byte {
	switch k {
	case carrier.Image:
		return c.Image
	case carrier.Video:
		return c.Video
	case carrier.Audio:
		return c.Audio
	}
	return nil
}

func (c *Carriers) Set(k carrier.Kind, b []byte) {
	switch k {
	case carrier.Image:
		c.Image = b
	case carrier.Video:
		c.Video = b
	case carrier.Audio:
		c.Audio = b
	}
}

type Client struct {
	cipher *crypto.AEAD
	codecs map[carrier.Kind]carrier.Codec
	log    logrus.FieldLogger
	tracer trace.Tracer
}

type ClientOptions struct {
	// Cipher is the algorithm used for new envelopes. Decode follows the
	// envelope's own algorithm.
	Cipher        string
	VideoEncoders []string
	// Codecs replace the default codec of the same kind.
	Codecs []carrier.Codec
	Logger logrus.FieldLogger
	Tracer trace.Tracer
}

func NewClient(ops ...ClientOptions) (*Client, error) {
	var op ClientOptions
	if len(ops) > 0 {
		op = ops[0]
	}

	c := &Client{
		log:    op.Logger,
		tracer: op.Tracer,
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}

	aead, err := crypto.NewCipher(op.Cipher)
	if err != nil {
		return nil, err
	}
	c.cipher = aead

	c.codecs = map[carrier.Kind]carrier.Codec{
		carrier.Image: carrier.NewImageCodec(nil),
		carrier.Video: carrier.NewVideoCodec(op.VideoEncoders, c.log),
		carrier.Audio: carrier.NewAudioCodec(),
	}
	for _, codec := range op.Codecs {
		c.codecs[codec.Kind()] = codec
	}
	return c, nil
}

// Codec returns the codec used for kind.
func (c *Client) Codec(kind carrier.Kind) carrier.Codec {
	return c.codecs[kind]
}

type EncodeResult struct {
	Token    string
	Envelope envelope.Envelope
	// Carriers are the encoded files, the only copies that decode will accept.
	Carriers Carriers
}

// Encode encrypts plaintext under a fresh key and hides the key across the
// three carriers. Nothing is returned unless every step succeeds.
func (c *Client) Encode(ctx context.Context, plaintext string, in Carriers) (res *EncodeResult, err error) {
	ctx, span := c.tracer.Start(ctx, "Encode")
	defer func() { endSpan(span, err) }()
	t := c.transitions(ctx, "encode")

	t.step(StepStart, "")
	if plaintext == "" {
		return nil, newError(InputMissing, "", errors.New("no data provided"))
	}
	for _, kind := range carrier.Kinds {
		if len(in.Get(kind)) == 0 {
			return nil, newError(InputMissing, kind, fmt.Errorf("missing %s", kind))
		}
	}

	t.step(StepCipherEncrypt, "")
	key, err := c.cipher.GenerateKey()
	if err != nil {
		return nil, newError(CodecFailure, "", err)
	}
	defer crypto.Zero(key)
	ciphertext, err := c.cipher.Encrypt(key, plaintext)
	if err != nil {
		return nil, newError(CodecFailure, "", err)
	}

	t.step(StepSplitKey, "")
	fragments, err := crypto.KeySplit(key, len(carrier.Kinds))
	if err != nil {
		return nil, newError(CodecFailure, "", err)
	}

	res = &EncodeResult{}
	for i, kind := range carrier.Kinds {
		t.step(embedStep(kind), kind)
		out, err := c.codecs[kind].Embed(ctx, in.Get(kind), fragments[i])
		if err != nil {
			return nil, newError(CodecFailure, kind, err)
		}
		res.Carriers.Set(kind, out)
	}

	t.step(StepHashAll, "")
	res.Envelope = envelope.Envelope{
		Message: ciphertext,
		Hashes: envelope.Hashes{
			Image: envelope.DigestBytes(res.Carriers.Image),
			Video: envelope.DigestBytes(res.Carriers.Video),
			Audio: envelope.DigestBytes(res.Carriers.Audio),
		},
	}
	if alg := c.cipher.Algorithm(); alg != crypto.DefaultAlgorithm {
		res.Envelope.Algorithm = alg
	}

	t.step(StepPackEnvelope, "")
	res.Token, err = envelope.Pack(res.Envelope)
	if err != nil {
		return nil, newError(CodecFailure, "", err)
	}

	t.step(StepDone, "")
	return res, nil
}

// Decode verifies each carrier against the envelope immediately before
// extracting its fragment, then rebuilds the key and decrypts the message.
func (c *Client) Decode(ctx context.Context, token string, in Carriers) (plaintext string, err error) {
	ctx, span := c.tracer.Start(ctx, "Decode")
	defer func() { endSpan(span, err) }()
	t := c.transitions(ctx, "decode")

	t.step(StepStart, "")
	if token == "" {
		return "", newError(InputMissing, "", errors.New("ciphertext missing"))
	}

	t.step(StepUnpackEnvelope, "")
	env, err := c.Inspect(token)
	if err != nil {
		return "", err
	}
	aead, err := c.cipherFor(env.Algorithm)
	if err != nil {
		return "", newError(EnvelopeFormatError, "", err)
	}

	fragments := make([]string, 0, len(carrier.Kinds))
	for _, kind := range carrier.Kinds {
		b := in.Get(kind)
		if len(b) == 0 {
			return "", newError(InputMissing, kind, fmt.Errorf("missing encoded %s", kind))
		}

		t.step(verifyStep(kind), kind)
		expected, _ := env.Digest(string(kind))
		if err := envelope.Verify(b, expected); err != nil {
			t.log.WithField("carrier", kind).Warn("carrier failed integrity check")
			return "", newError(IntegrityViolation, kind, err)
		}

		t.step(extractStep(kind), kind)
		fragment, err := c.codecs[kind].Extract(ctx, b)
		if err != nil {
			return "", newError(CodecFailure, kind, err)
		}
		fragments = append(fragments, fragment)
	}

	t.step(StepReconstructKey, "")
	key, err := crypto.KeyMerge(fragments)
	if err != nil {
		return "", newError(KeyReconstructionError, "", err)
	}
	defer crypto.Zero(key)
	if len(key) != aead.KeySize() {
		return "", newError(KeyReconstructionError, "", fmt.Errorf("%w: %d-byte key, %s needs %d", crypto.ErrKeyReconstruction, len(key), aead.Algorithm(), aead.KeySize()))
	}

	t.step(StepCipherDecrypt, "")
	plaintext, err = aead.Decrypt(key, env.Message)
	if err != nil {
		return "", newError(DecryptionError, "", err)
	}

	t.step(StepDone, "")
	return plaintext, nil
}

// Inspect unpacks a token without touching any carrier.
func (c *Client) Inspect(token string) (*envelope.Envelope, error) {
	env, err := envelope.Unpack(token)
	if err != nil {
		return nil, newError(EnvelopeFormatError, "", err)
	}
	return env, nil
}

func (c *Client) cipherFor(alg string) (*crypto.AEAD, error) {
	if alg == "" {
		alg = crypto.DefaultAlgorithm
	}
	if alg == c.cipher.Algorithm() {
		return c.cipher, nil
	}
	return crypto.NewCipher(alg)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if kind := KindOf(err); kind != "" {
			span.SetAttributes(attribute.String("stegokey.outcome", string(kind)))
		}
	}
	span.End()
}
