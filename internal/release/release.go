// Package release models forge releases and picks the release and asset
// to install.
package release

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"binup/internal/matcher"
	"binup/internal/version"
)

var (
	// ErrNoEligibleRelease is returned when a project has no releases.
	ErrNoEligibleRelease = errors.New("no eligible release")
	// ErrNoAssets is returned when the selected release ships no assets.
	ErrNoAssets = errors.New("release has no assets")
	// ErrInvalidProject is returned for project names not of the form owner/repo.
	ErrInvalidProject = errors.New("invalid project name")
)

// Project identifies a repository on the forge.
type Project struct {
	Owner string
	Name  string
}

// ParseProject parses "owner/repo".
func ParseProject(s string) (Project, error) {
	owner, name, ok := strings.Cut(s, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Project{}, fmt.Errorf("%w %q: expected owner/repo", ErrInvalidProject, s)
	}
	return Project{Owner: owner, Name: name}, nil
}

func (p Project) String() string { return p.Owner + "/" + p.Name }

// ReleasesURL is the default changelog location of the project.
func (p Project) ReleasesURL() string {
	return "https://github.com/" + p.String() + "/releases"
}

// Asset is a downloadable file attached to a release.
type Asset struct {
	ID        int64
	Name      string
	Size      int64
	UpdatedAt time.Time
	URL       string
}

// Release is a tagged release, newest-first as reported by the forge.
type Release struct {
	Tag         string
	Version     version.ReleaseVersion
	Prerelease  bool
	PublishedAt time.Time
	HTMLURL     string
	Assets      []Asset
}

// New builds a Release and parses its tag.
func New(tag string, prerelease bool, assets []Asset) Release {
	return Release{Tag: tag, Version: version.ParseRelease(tag), Prerelease: prerelease, Assets: assets}
}

// Platform is the OS and architecture assets are selected for.
type Platform struct {
	OS   string
	Arch string
}

// CurrentPlatform returns the platform binup runs on.
func CurrentPlatform() Platform {
	return Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

func (p Platform) String() string { return p.OS + "/" + p.Arch }

// Select returns the release to install from a newest-first list. Prereleases
// are skipped unless allowed or unless nothing else exists.
func Select(releases []Release, allowPrerelease bool) (Release, error) {
	if len(releases) == 0 {
		return Release{}, ErrNoEligibleRelease
	}
	if allowPrerelease {
		return releases[0], nil
	}
	for _, r := range releases {
		if !r.Prerelease {
			return r, nil
		}
	}
	return releases[0], nil
}

// SelectAsset picks the asset of r to download. With a nil pattern the
// platform heuristics of matcher.AutoAsset are used.
func SelectAsset(r Release, p *matcher.Pattern, tool string, project Project, platform Platform) (Asset, error) {
	if len(r.Assets) == 0 {
		return Asset{}, fmt.Errorf("release %s: %w", r.Tag, ErrNoAssets)
	}
	names := make([]string, len(r.Assets))
	for i, a := range r.Assets {
		names[i] = a.Name
	}

	var (
		name string
		err  error
	)
	if p != nil {
		name, err = matcher.SelectOne(names, *p)
	} else {
		name, err = matcher.AutoAsset(names, tool, project.Name, platform.OS, platform.Arch)
	}
	if err != nil {
		return Asset{}, fmt.Errorf("release %s: %w", r.Tag, err)
	}
	for _, a := range r.Assets {
		if a.Name == name {
			return a, nil
		}
	}
	return Asset{}, fmt.Errorf("release %s: asset %s vanished", r.Tag, name)
}
