package client

import (
	"errors"
	"fmt"

	"github.com/stegokey/backend-go/pkg/carrier"
)

// Kind classifies a failed encode or decode for callers.
type Kind string

const (
	InputMissing           Kind = "InputMissing"
	CodecFailure           Kind = "CodecFailure"
	EnvelopeFormatError    Kind = "EnvelopeFormatError"
	IntegrityViolation     Kind = "IntegrityViolation"
	KeyReconstructionError Kind = "KeyReconstructionError"
	DecryptionError        Kind = "DecryptionError"
)

// Error is returned by every Client operation. Carrier is set whenever a
// single carrier is implicated.
type Error struct {
	Kind    Kind
	Carrier carrier.Kind
	Err     error
}

// Sentinels for errors.Is. They match any carrier.
var (
	ErrInputMissing       = &Error{Kind: InputMissing}
	ErrCodecFailure       = &Error{Kind: CodecFailure}
	ErrEnvelopeFormat     = &Error{Kind: EnvelopeFormatError}
	ErrIntegrityViolation = &Error{Kind: IntegrityViolation}
	ErrKeyReconstruction  = &Error{Kind: KeyReconstructionError}
	ErrDecryption         = &Error{Kind: DecryptionError}
)

func newError(kind Kind, c carrier.Kind, err error) *Error {
	return &Error{Kind: kind, Carrier: c, Err: err}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Carrier != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Carrier)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind. A target without a carrier
// matches every carrier.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Carrier == "" || t.Carrier == e.Carrier)
}

// KindOf returns the kind of err, or "" if err did not come from a Client.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CarrierOf returns the carrier implicated by err, if any.
func CarrierOf(err error) carrier.Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Carrier
	}
	return ""
}
