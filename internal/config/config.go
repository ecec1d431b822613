package config

import (
	"os"
	"sort"
	"strings"
)

// TokenEnv is consulted when the config carries no token.
const TokenEnv = "GITHUB_TOKEN"

// Config is the decoded view of the registry file.
type Config struct {
	Path   string              `yaml:"path,omitempty"`
	GitHub GitHubConfig        `yaml:"github,omitempty"`
	Tools  map[string]ToolSpec `yaml:"tools,omitempty"`
}

// GitHubConfig holds forge credentials.
type GitHubConfig struct {
	Token string `yaml:"token,omitempty"`
}

// ToolSpec declares a single managed tool. Empty matchers select the asset
// and the binary automatically.
type ToolSpec struct {
	Project        string `yaml:"project,omitempty"`
	ReleaseMatcher string `yaml:"release_matcher,omitempty"`
	BinaryMatcher  string `yaml:"binary_matcher,omitempty"`
	Changelog      string `yaml:"changelog,omitempty"`
	Prerelease     *bool  `yaml:"prerelease,omitempty"`
	VersionSource  string `yaml:"version_source,omitempty"`
	Path           string `yaml:"path,omitempty"`
	Post           string `yaml:"post,omitempty"`
}

// AllowPrerelease returns the effective prerelease flag.
func (s ToolSpec) AllowPrerelease() bool {
	return s.Prerelease != nil && *s.Prerelease
}

// Merge overlays the fields set in update onto s.
func (s ToolSpec) Merge(update ToolSpec) ToolSpec {
	merged := s
	setString(&merged.Project, update.Project)
	setString(&merged.ReleaseMatcher, update.ReleaseMatcher)
	setString(&merged.BinaryMatcher, update.BinaryMatcher)
	setString(&merged.Changelog, update.Changelog)
	setString(&merged.VersionSource, update.VersionSource)
	setString(&merged.Path, update.Path)
	setString(&merged.Post, update.Post)
	if update.Prerelease != nil {
		merged.Prerelease = boolPtr(*update.Prerelease)
	}
	return merged
}

// Subsumes reports whether every field set in other already has the same
// value in s.
func (s ToolSpec) Subsumes(other ToolSpec) bool {
	return s.Equal(s.Merge(other))
}

// Equal compares two specs field by field.
func (s ToolSpec) Equal(other ToolSpec) bool {
	if (s.Prerelease == nil) != (other.Prerelease == nil) {
		return false
	}
	if s.Prerelease != nil && *s.Prerelease != *other.Prerelease {
		return false
	}
	a, b := s, other
	a.Prerelease, b.Prerelease = nil, nil
	return a == b
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Token returns the configured token, falling back to GITHUB_TOKEN.
func (c Config) Token() string {
	if token := strings.TrimSpace(c.GitHub.Token); token != "" {
		return token
	}
	return strings.TrimSpace(os.Getenv(TokenEnv))
}

// Names returns the tool names in sorted order.
func (c Config) Names() []string {
	names := make([]string, 0, len(c.Tools))
	for name := range c.Tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func boolPtr(v bool) *bool {
	return &v
}
