package pixeldata

import (
	"errors"
	"fmt"
)

// Conditions returned by the representation store and the pixel data element.
// Test for them with errors.Is; the returned errors usually wrap them with context.
var (
	// ErrIllegalParameter: a nil or invalid collaborator/argument was passed
	ErrIllegalParameter = errors.New("illegal parameter")
	// ErrIllegalCall: the operation is not allowed in the current state
	ErrIllegalCall = errors.New("illegal call")
	// ErrRepresentationNotFound: no conforming representation exists or can be produced
	ErrRepresentationNotFound = errors.New("pixel representation not found")
	// ErrMemoryExhausted: the buffer cannot be held in a single element value
	ErrMemoryExhausted = errors.New("memory exhausted")
	// ErrCorruptedData: the encoded value is malformed
	ErrCorruptedData = errors.New("corrupted data")
	// ErrStreamError: the underlying reader or writer failed
	ErrStreamError = errors.New("stream error")
)

// TranscodeError wraps a codec failure
type TranscodeError struct {
	Codec string // codec name
	Op    string // "encode" or "decode"
	Err   error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Codec, e.Op, e.Err)
}

func (e *TranscodeError) Unwrap() error {
	return e.Err
}

// streamErr tags an io failure as ErrStreamError while keeping the cause
func streamErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStreamError, err)
}
