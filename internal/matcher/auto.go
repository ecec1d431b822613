package matcher

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

const (
	autoAssetPattern  = "automatic asset selection"
	autoBinaryPattern = "automatic binary selection"
)

var (
	osTokens = map[string]string{
		"linux":  "linux",
		"darwin": "(?:apple-darwin|darwin|macos)",
	}
	archTokens = map[string]string{
		"arm64": "(?:aarch64|arm64)",
		"amd64": "(?:amd64|x64|x86_64)",
	}
)

const (
	separator      = `[-._]`
	anyFields      = `(?:` + separator + `[^/]+)?`
	compressionExt = `(?:\.(?:gz|bz2|xz|lzma|zst))?`
	archiveExt     = `\.(?:tar\.[^/.]+|tgz|tbz2?|txz|tzst|zip)$`
)

// AssetMatchers returns the prioritized expressions used to pick a release
// asset for the given platform when no pattern is configured.
func AssetMatchers(tool, project, goos, goarch string) ([]Pattern, error) {
	osRe, ok := osTokens[goos]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, goos, goarch)
	}
	archRe, ok := archTokens[goarch]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, goos, goarch)
	}

	platform := fmt.Sprintf("(?:%s[-_]%s|%s[-_]%s)", osRe, archRe, archRe, osRe)
	archive := separator + platform + anyFields + archiveExt

	names := nameMatchers(tool, project)
	var exprs []string
	for _, name := range names {
		exprs = append(exprs,
			"^"+name+anyFields+archive,
			"^"+name+separator+platform+compressionExt+"$",
		)
	}
	exprs = append(exprs, archive)
	for _, name := range names {
		exprs = append(exprs,
			"^"+name+separator+archRe+compressionExt+"$",
			"^"+name+compressionExt+"$",
		)
	}

	patterns := make([]Pattern, len(exprs))
	for i, expr := range exprs {
		patterns[i] = FromRegexp(regexp.MustCompile(expr))
	}
	return patterns, nil
}

// AutoAsset picks the asset for the platform. The first matcher that
// selects exactly one asset wins.
func AutoAsset(assets []string, tool, project, goos, goarch string) (string, error) {
	matchers, err := AssetMatchers(tool, project, goos, goarch)
	if err != nil {
		return "", err
	}
	var ambiguous []string
	for _, m := range matchers {
		var matched []string
		for _, a := range assets {
			if m.Match(a) {
				matched = append(matched, a)
			}
		}
		if len(matched) == 1 {
			return matched[0], nil
		}
		if len(matched) > 1 && ambiguous == nil {
			ambiguous = matched
		}
	}
	if ambiguous != nil {
		return "", &AmbiguousMatchError{Pattern: autoAssetPattern, Matches: ambiguous}
	}
	return "", &NoMatchError{Pattern: autoAssetPattern, Candidates: assets}
}

// Candidate is an archive member considered during binary discovery.
type Candidate struct {
	Path       string
	Executable bool
	// Target is the member a link resolves to, empty for regular files.
	Target string
}

func (c Candidate) file() string {
	if c.Target != "" {
		return c.Target
	}
	return c.Path
}

// collapse keeps one candidate per underlying file and returns their paths
// in first-seen order. A link wins over the file it points at.
func collapse(candidates []Candidate) []string {
	index := make(map[string]int, len(candidates))
	var kept []Candidate
	for _, c := range candidates {
		if i, ok := index[c.file()]; ok {
			if kept[i].Target == "" && c.Target != "" {
				kept[i] = c
			}
			continue
		}
		index[c.file()] = len(kept)
		kept = append(kept, c)
	}
	paths := make([]string, len(kept))
	for i, c := range kept {
		paths[i] = c.Path
	}
	return paths
}

// SelectCandidate returns the only file matching p. Members that resolve to
// the same file count once.
func SelectCandidate(candidates []Candidate, p Pattern) (string, error) {
	var matched []Candidate
	all := make([]string, len(candidates))
	for i, c := range candidates {
		all[i] = c.Path
		if p.Match(c.Path) {
			matched = append(matched, c)
		}
	}
	if len(matched) == 0 {
		return "", &NoMatchError{Pattern: p.String(), Candidates: all}
	}
	paths := collapse(matched)
	if len(paths) > 1 {
		return "", &AmbiguousMatchError{Pattern: p.String(), Matches: paths}
	}
	return paths[0], nil
}

// BinaryMatcher matches members whose base name is the tool or project name.
func BinaryMatcher(tool, project string) Pattern {
	names := nameMatchers(tool, project)
	if len(names) == 0 {
		return Pattern{}
	}
	expr := names[0]
	if len(names) > 1 {
		expr = "(?:" + strings.Join(names, "|") + ")"
	}
	return FromRegexp(regexp.MustCompile("(?:^|/)" + expr + "$"))
}

// AutoBinary picks the tool binary among archive members: a member named
// after the tool, then the only executable member, then the only member.
func AutoBinary(candidates []Candidate, tool, project string) (string, error) {
	byName := BinaryMatcher(tool, project)
	var named, executable []Candidate
	for _, c := range candidates {
		if byName.Match(c.Path) {
			named = append(named, c)
		}
		if c.Executable {
			executable = append(executable, c)
		}
	}

	for _, group := range [][]Candidate{named, executable, candidates} {
		if len(group) == 0 {
			continue
		}
		paths := collapse(group)
		if len(paths) > 1 {
			return "", &AmbiguousMatchError{Pattern: autoBinaryPattern, Matches: paths}
		}
		return paths[0], nil
	}
	return "", &NoMatchError{Pattern: autoBinaryPattern}
}

// nameMatchers returns one expression per distinct name, each accepting
// both hyphen and underscore spellings.
func nameMatchers(names ...string) []string {
	var out []string
	seen := map[string]bool{}
	for _, name := range names {
		name = path.Base(name)
		if name == "" || name == "." || name == "/" {
			continue
		}
		hyphen := strings.ReplaceAll(name, "_", "-")
		underscore := strings.ReplaceAll(hyphen, "-", "_")
		expr := regexp.QuoteMeta(hyphen)
		if hyphen != underscore {
			expr = fmt.Sprintf("(?:%s|%s)", regexp.QuoteMeta(hyphen), regexp.QuoteMeta(underscore))
		}
		if seen[expr] {
			continue
		}
		seen[expr] = true
		out = append(out, expr)
	}
	return out
}
