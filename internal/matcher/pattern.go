// Package matcher selects release assets and archive members by glob or
// regular expression, and guesses them when no pattern is configured.
package matcher

import (
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

// RegexPrefix marks a pattern as a regular expression.
const RegexPrefix = "~"

// Pattern is a compiled glob or regular expression.
type Pattern struct {
	raw  string
	glob glob.Glob
	re   *regexp.Regexp
}

// Parse compiles a pattern. Globs treat "/" as a separator so "*" stays
// within one path component; "**" crosses components.
func Parse(s string) (Pattern, error) {
	if s == "" {
		return Pattern{}, &PatternError{Pattern: s, Err: errEmptyPattern}
	}
	if expr, ok := strings.CutPrefix(s, RegexPrefix); ok {
		if !strings.HasPrefix(expr, "^") && !strings.HasSuffix(expr, "$") {
			expr = "^(?:" + expr + ")$"
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return Pattern{}, &PatternError{Pattern: s, Err: err}
		}
		return Pattern{raw: s, re: re}, nil
	}
	g, err := glob.Compile(s, '/')
	if err != nil {
		return Pattern{}, &PatternError{Pattern: s, Err: err}
	}
	return Pattern{raw: s, glob: g}, nil
}

// FromRegexp wraps an already compiled expression as written.
func FromRegexp(re *regexp.Regexp) Pattern {
	return Pattern{raw: RegexPrefix + re.String(), re: re}
}

// Match reports whether candidate matches.
func (p Pattern) Match(candidate string) bool {
	switch {
	case p.re != nil:
		return p.re.MatchString(candidate)
	case p.glob != nil:
		return p.glob.Match(candidate)
	}
	return false
}

func (p Pattern) String() string { return p.raw }
