package client

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stegokey/backend-go/pkg/carrier"
)

// Step is a state of the encode or decode protocol.
type Step string

const (
	StepStart          Step = "Start"
	StepCipherEncrypt  Step = "CipherEncrypt"
	StepSplitKey       Step = "SplitKey"
	StepEmbedImage     Step = "EmbedImage"
	StepEmbedVideo     Step = "EmbedVideo"
	StepEmbedAudio     Step = "EmbedAudio"
	StepHashAll        Step = "HashAll"
	StepPackEnvelope   Step = "PackEnvelope"
	StepUnpackEnvelope Step = "UnpackEnvelope"
	StepVerifyImage    Step = "VerifyImageHash"
	StepExtractImage   Step = "ExtractImage"
	StepVerifyVideo    Step = "VerifyVideoHash"
	StepExtractVideo   Step = "ExtractVideo"
	StepVerifyAudio    Step = "VerifyAudioHash"
	StepExtractAudio   Step = "ExtractAudio"
	StepReconstructKey Step = "ReconstructKey"
	StepCipherDecrypt  Step = "CipherDecrypt"
	StepDone           Step = "Done"
)

var (
	embedSteps   = map[carrier.Kind]Step{carrier.Image: StepEmbedImage, carrier.Video: StepEmbedVideo, carrier.Audio: StepEmbedAudio}
	verifySteps  = map[carrier.Kind]Step{carrier.Image: StepVerifyImage, carrier.Video: StepVerifyVideo, carrier.Audio: StepVerifyAudio}
	extractSteps = map[carrier.Kind]Step{carrier.Image: StepExtractImage, carrier.Video: StepExtractVideo, carrier.Audio: StepExtractAudio}
)

func embedStep(k carrier.Kind) Step   { return embedSteps[k] }
func verifyStep(k carrier.Kind) Step  { return verifySteps[k] }
func extractStep(k carrier.Kind) Step { return extractSteps[k] }

// transitions logs each step at debug level and marks it on the span.
type transitions struct {
	log  logrus.FieldLogger
	span trace.Span
}

func (c *Client) transitions(ctx context.Context, op string) *transitions {
	return &transitions{
		log:  c.log.WithField("op", op),
		span: trace.SpanFromContext(ctx),
	}
}

func (t *transitions) step(s Step, k carrier.Kind) {
	entry := t.log.WithField("step", s)
	attrs := []attribute.KeyValue{attribute.String("step", string(s))}
	if k != "" {
		entry = entry.WithField("carrier", k)
		attrs = append(attrs, attribute.String("carrier", string(k)))
	}
	entry.Debug("transition")
	t.span.AddEvent(string(s), trace.WithAttributes(attrs...))
}
