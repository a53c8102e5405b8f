package utterance

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned when an input is absent or malformed,
	// or when a prosody value falls outside its domain under [PolicyReject].
	ErrInvalidArgument = errors.New("utterance: invalid argument")

	// ErrClosed is returned by mutators called after [Utterance.Close].
	ErrClosed = errors.New("utterance: closed")

	// ErrUnknownVoice is returned by [FromSpec] and [Spec.Apply] when a voice
	// ID cannot be resolved.
	ErrUnknownVoice = errors.New("utterance: unknown voice")
)

// Rejection reasons, also used as the reason attribute on metrics.
const (
	ReasonMissing      = "missing"
	ReasonInvalidUTF8  = "invalid_utf8"
	ReasonNaN          = "nan"
	ReasonOutOfRange   = "out_of_range"
	ReasonUncomparable = "uncomparable"
)

// ArgumentError describes a rejected input. It matches ErrInvalidArgument
// with errors.Is.
type ArgumentError struct {
	Property Property
	Value    any
	Reason   string
}

func (e *ArgumentError) Error() string {
	switch e.Reason {
	case ReasonMissing:
		return fmt.Sprintf("utterance: %s is required", e.Property)
	case ReasonOutOfRange:
		r, _ := RangeOf(e.Property)
		return fmt.Sprintf("utterance: %s %v out of range %s", e.Property, e.Value, r)
	default:
		return fmt.Sprintf("utterance: invalid %s %v: %s", e.Property, e.Value, e.Reason)
	}
}

func (e *ArgumentError) Unwrap() error { return ErrInvalidArgument }
