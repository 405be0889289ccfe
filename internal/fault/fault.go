// Package fault defines the error taxonomy shared by every pipeline stage.
//
// Adapters wrap provider failures in an *Error carrying a Kind so that the
// dispatcher and the transports can decide how to surface them without
// inspecting provider-specific error types.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by the pipeline stage that produced it.
type Kind string

const (
	KindTranscription  Kind = "transcription"
	KindClassification Kind = "classification"
	KindGeneration     Kind = "generation"
	KindSynthesis      Kind = "synthesis"
	KindRateLimited    Kind = "rate_limited"
	KindConfiguration  Kind = "configuration"
	KindInvalidInput   Kind = "invalid_input"
)

// Sentinel errors, one per Kind. An *Error matches the sentinel of its Kind
// under errors.Is.
var (
	ErrTranscription  = errors.New("transcription failed")
	ErrClassification = errors.New("classification failed")
	ErrGeneration     = errors.New("generation failed")
	ErrSynthesis      = errors.New("synthesis failed")
	ErrRateLimited    = errors.New("rate limited")
	ErrConfiguration  = errors.New("invalid configuration")
	ErrInvalidInput   = errors.New("invalid input")
)

var sentinels = map[Kind]error{
	KindTranscription:  ErrTranscription,
	KindClassification: ErrClassification,
	KindGeneration:     ErrGeneration,
	KindSynthesis:      ErrSynthesis,
	KindRateLimited:    ErrRateLimited,
	KindConfiguration:  ErrConfiguration,
	KindInvalidInput:   ErrInvalidInput,
}

// UnavailableMessage is what end users see for any failed hosted call.
const UnavailableMessage = "Service temporarily unavailable, please retry."

// Error is a stage failure.
type Error struct {
	Kind Kind
	Op   string // e.g. "openai transcribe"
	Err  error
}

// E builds an *Error. A nil err yields a bare error of the given kind.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error from a format string.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's Kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// KindOf returns the Kind of the first *Error in err's chain, or "" when none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// UserMessage renders err for an end user. Input errors keep their detail;
// every provider failure collapses to UnavailableMessage.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if KindOf(err) == KindInvalidInput {
		var fe *Error
		errors.As(err, &fe)
		if fe.Err != nil {
			return fe.Err.Error()
		}
		return "invalid request"
	}
	return UnavailableMessage
}
