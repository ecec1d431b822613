package matcher

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoMatch matches any *NoMatchError.
	ErrNoMatch = errors.New("no match")
	// ErrAmbiguous matches any *AmbiguousMatchError.
	ErrAmbiguous = errors.New("ambiguous match")
	// ErrUnsupportedPlatform is returned by automatic asset selection when
	// the OS or architecture has no known naming convention.
	ErrUnsupportedPlatform = errors.New("unsupported platform for automatic asset selection")

	errEmptyPattern = errors.New("empty pattern")
)

// PatternError reports pattern syntax that failed to compile.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

// NoMatchError reports that nothing matched.
type NoMatchError struct {
	Pattern    string
	Candidates []string
}

func (e *NoMatchError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("%s matches nothing: there are no candidates", e.Pattern)
	}
	return fmt.Sprintf("%s matches none of %d candidates:%s", e.Pattern, len(e.Candidates), FormatList(e.Candidates))
}

func (e *NoMatchError) Is(target error) bool { return target == ErrNoMatch }

// AmbiguousMatchError reports several matches where one was required.
type AmbiguousMatchError struct {
	Pattern string
	Matches []string
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("%s matches %d candidates:%s", e.Pattern, len(e.Matches), FormatList(e.Matches))
}

func (e *AmbiguousMatchError) Is(target error) bool { return target == ErrAmbiguous }

// FormatList renders names as an indented bullet list.
func FormatList(items []string) string {
	var b strings.Builder
	for _, item := range items {
		b.WriteString("\n* ")
		b.WriteString(item)
	}
	return b.String()
}
