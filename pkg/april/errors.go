package april

import (
	"errors"
	"strings"
)

// Kind categorizes a binding error.
type Kind string

const (
	// KindStringEncoding: a Go string could not be passed to the engine as a C string.
	KindStringEncoding Kind = "string_encoding"
	// KindNullPointer: the engine returned NULL from a fallible call.
	KindNullPointer Kind = "null_pointer"
	// KindInvalidUTF8: the engine returned bytes that are not valid UTF-8.
	KindInvalidUTF8 Kind = "invalid_utf8"
	// KindEmptyAudio: an operation that requires audio got none.
	KindEmptyAudio Kind = "empty_audio"
	// KindInvalidAudio: audio bytes are not a whole number of PCM16 samples.
	KindInvalidAudio Kind = "invalid_audio"
	// KindClosed: the model or session was already closed.
	KindClosed Kind = "closed"
	// KindConsumed: the config was already used to create a session.
	KindConsumed Kind = "consumed"
	// KindNoEngine: no native engine has been registered.
	KindNoEngine Kind = "no_engine"
)

// Error is the structured error returned by the binding.
type Error struct {
	Op     string
	Kind   Kind
	Detail string
	Err    error
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString("april: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(kindText(e.Kind))
	if e.Detail != "" {
		b.WriteString(" (")
		b.WriteString(e.Detail)
		b.WriteByte(')')
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. It lets the
// sentinels below match any error produced by the binding.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Op == "" && t.Kind == e.Kind
}

func kindText(k Kind) string {
	switch k {
	case KindStringEncoding:
		return "failed to encode string for the engine"
	case KindNullPointer:
		return "got null pointer from april"
	case KindInvalidUTF8:
		return "got invalid UTF-8 in a string from april"
	case KindEmptyAudio:
		return "attempting to feed an empty audio sample to april"
	case KindInvalidAudio:
		return "audio is not a whole number of 16-bit samples"
	case KindClosed:
		return "already closed"
	case KindConsumed:
		return "config already used to create a session"
	case KindNoEngine:
		return "no native engine registered"
	default:
		return string(k)
	}
}

// Sentinels for errors.Is.
var (
	ErrStringEncoding = &Error{Kind: KindStringEncoding}
	ErrNullPointer    = &Error{Kind: KindNullPointer}
	ErrInvalidUTF8    = &Error{Kind: KindInvalidUTF8}
	ErrEmptyAudio     = &Error{Kind: KindEmptyAudio}
	ErrInvalidAudio   = &Error{Kind: KindInvalidAudio}
	ErrClosed         = &Error{Kind: KindClosed}
	ErrConfigConsumed = &Error{Kind: KindConsumed}
	ErrNoEngine       = &Error{Kind: KindNoEngine}
)

func newError(op string, kind Kind, detail string) error {
	return &Error{Op: op, Kind: kind, Detail: detail}
}

// KindOf returns the Kind of err, or "" when err did not come from the binding.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
