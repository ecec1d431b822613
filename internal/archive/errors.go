package archive

import (
	"errors"
	"fmt"
)

// Kind classifies an extraction failure.
type Kind int

const (
	// KindCorrupt means the stream is truncated or does not parse as the
	// declared format.
	KindCorrupt Kind = iota + 1
	// KindUnsupported means the format is recognized but cannot be read.
	KindUnsupported
	// KindEmpty means no regular file remained after filtering.
	KindEmpty
)

func (k Kind) String() string {
	switch k {
	case KindCorrupt:
		return "corrupt archive"
	case KindUnsupported:
		return "unsupported format"
	case KindEmpty:
		return "empty archive"
	default:
		return "extraction error"
	}
}

// Sentinels for errors.Is checks against *Error.
var (
	ErrCorrupt     = errors.New("corrupt archive")
	ErrUnsupported = errors.New("unsupported format")
	ErrEmpty       = errors.New("empty archive")
)

// Error is returned for every extraction failure.
type Error struct {
	Kind Kind
	Name string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Name, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Name, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel that corresponds to the error kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrCorrupt:
		return e.Kind == KindCorrupt
	case ErrUnsupported:
		return e.Kind == KindUnsupported
	case ErrEmpty:
		return e.Kind == KindEmpty
	}
	return false
}

func corrupt(name string, err error) error {
	return &Error{Kind: KindCorrupt, Name: name, Err: err}
}

func unsupported(name string, err error) error {
	return &Error{Kind: KindUnsupported, Name: name, Err: err}
}
