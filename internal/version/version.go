// Package version determines which version of a tool is installed and how
// it compares to a release.
package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/coreos/go-semver/semver"
)

// Source selects how a binary is asked for its version.
type Source int

const (
	// SourceFlag runs "<binary> --version".
	SourceFlag Source = iota
	// SourceCommand runs "<binary> version".
	SourceCommand
)

var sourceNames = map[Source]string{
	SourceFlag:    "flag",
	SourceCommand: "command",
}

// SourceNames lists the accepted configuration values.
func SourceNames() []string {
	return []string{"flag", "command"}
}

// ParseSource maps a configuration value to a Source. Empty means flag.
func ParseSource(s string) (Source, error) {
	switch strings.TrimSpace(s) {
	case "", "flag":
		return SourceFlag, nil
	case "command":
		return SourceCommand, nil
	}
	return SourceFlag, fmt.Errorf("unknown version source %q (expected one of %s)", s, strings.Join(SourceNames(), ", "))
}

func (s Source) String() string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Source(%d)", int(s))
}

// Args returns the arguments that make a binary print its version.
func (s Source) Args() []string {
	if s == SourceCommand {
		return []string{"version"}
	}
	return []string{"--version"}
}

// ReleaseVersion is a release tag, parsed as semver when possible.
type ReleaseVersion struct {
	Tag    string
	Semver *semver.Version
}

// ParseRelease interprets a release tag. "v1.2.3" and "1.2.3" are semver,
// "v1.2" is 1.2.0, "r38" is the revision 38.0.0, anything else is kept as a
// raw tag.
func ParseRelease(tag string) ReleaseVersion {
	rv := ReleaseVersion{Tag: tag}
	if v, ok := parseRevision(tag); ok {
		rv.Semver = v
		return rv
	}
	if v, ok := parseSemver(strings.TrimPrefix(tag, "v")); ok {
		rv.Semver = v
	}
	return rv
}

// IsSemver reports whether the tag parsed as a semantic version.
func (v ReleaseVersion) IsSemver() bool { return v.Semver != nil }

func (v ReleaseVersion) String() string {
	if v.Semver != nil {
		return v.Semver.String()
	}
	return v.Tag
}

// NewerThan reports whether the release is strictly newer than installed.
// ok is false when the release tag isn't a semantic version.
func (v ReleaseVersion) NewerThan(installed *semver.Version) (newer, ok bool) {
	if v.Semver == nil || installed == nil {
		return false, false
	}
	return installed.LessThan(*v.Semver), true
}

func parseRevision(s string) (*semver.Version, bool) {
	rest, ok := strings.CutPrefix(s, "r")
	if !ok || rest == "" {
		return nil, false
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || n < 0 {
		return nil, false
	}
	return &semver.Version{Major: n}, true
}

var majorMinor = regexp.MustCompile(`^\d+\.\d+$`)

// parseSemver accepts full semver and pads a bare "major.minor".
func parseSemver(s string) (*semver.Version, bool) {
	if majorMinor.MatchString(s) {
		s += ".0"
	}
	v, err := semver.NewVersion(s)
	if err != nil {
		return nil, false
	}
	return v, true
}

// ParseOutput extracts a version from the output of a version command:
// either a bare revision like "r38", or the first semver-shaped token of the
// first line, where words are split on spaces and then on hyphens.
func ParseOutput(out string) (*semver.Version, bool) {
	if v, ok := parseRevision(strings.TrimSpace(out)); ok {
		return v, true
	}

	line := strings.TrimSpace(out)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	for _, word := range strings.Fields(line) {
		for _, token := range strings.Split(word, "-") {
			token = strings.TrimPrefix(strings.TrimRight(token, ",;:()"), "v")
			if v, ok := parseSemver(token); ok {
				return v, true
			}
		}
	}
	return nil, false
}
