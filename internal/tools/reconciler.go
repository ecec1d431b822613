// Package tools reconciles registered tools with the binaries on disk.
package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"binup/internal/config"
	"binup/internal/matcher"
	"binup/internal/paths"
	"binup/internal/release"
	"binup/internal/runner"
	"binup/internal/version"
)

// Forge lists releases and streams assets.
type Forge interface {
	Releases(ctx context.Context, project release.Project) ([]release.Release, error)
	Download(ctx context.Context, project release.Project, asset release.Asset) (io.ReadCloser, error)
}

// StateResolver observes an installed binary.
type StateResolver interface {
	Resolve(ctx context.Context, path string, src version.Source) (version.State, error)
}

// Reporter receives progress while tools are processed. Methods are called
// from the reconciling goroutine.
type Reporter interface {
	Start(tool string)
	Stage(tool string, state State, detail string)
	Progress(tool string, done, total int64)
	Done(result Result)
}

// Options tune a run.
type Options struct {
	// Force reinstalls even when the binary looks current.
	Force bool
	// NoUpgrade leaves already installed binaries alone.
	NoUpgrade bool
}

// Reconciler drives tools through resolve, decide and install.
type Reconciler struct {
	Forge      Forge
	Resolver   StateResolver
	Runner     runner.Runner
	Reporter   Reporter
	Logger     log.FieldLogger
	Platform   release.Platform
	InstallDir string
	Options    Options
}

// Run reconciles the named tools in order. A failing tool never stops the
// others. The returned error joins every tool failure.
func (r *Reconciler) Run(ctx context.Context, cfg config.Config, names []string) ([]Result, error) {
	results := make([]Result, 0, len(names))
	var errs []error
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		spec, ok := cfg.Tools[name]
		var res Result
		if !ok {
			res = Result{Tool: name, Outcome: OutcomeFailed, Err: fmt.Errorf("%s is not registered in the configuration", name)}
			r.reporter().Start(name)
			r.reporter().Done(res)
		} else {
			res = r.Reconcile(ctx, name, spec)
		}
		if res.Failed() {
			errs = append(errs, fmt.Errorf("%s: %w", name, res.Err))
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// Reconcile processes one tool and reports its result.
func (r *Reconciler) Reconcile(ctx context.Context, name string, spec config.ToolSpec) Result {
	rep := r.reporter()
	rep.Start(name)
	res := r.reconcile(ctx, name, spec)
	if res.Err != nil {
		res.Outcome = OutcomeFailed
		rep.Stage(name, StateFailed, res.Err.Error())
	}
	rep.Done(res)
	return res
}

func (r *Reconciler) reconcile(ctx context.Context, name string, spec config.ToolSpec) Result {
	logger := r.logger().WithField("tool", name)
	rep := r.reporter()
	res := Result{Tool: name}

	project, err := release.ParseProject(spec.Project)
	if err != nil {
		res.Err = err
		return res
	}
	res.Changelog = spec.Changelog
	if res.Changelog == "" {
		res.Changelog = project.ReleasesURL()
	}
	src, err := version.ParseSource(spec.VersionSource)
	if err != nil {
		res.Err = err
		return res
	}
	var assetPattern, binaryPattern *matcher.Pattern
	if assetPattern, err = optionalPattern(spec.ReleaseMatcher); err != nil {
		res.Err = err
		return res
	}
	if binaryPattern, err = optionalPattern(spec.BinaryMatcher); err != nil {
		res.Err = err
		return res
	}

	dir, err := paths.InstallDir(r.InstallDir, spec.Path)
	if err != nil {
		res.Err = err
		return res
	}
	res.Path = filepath.Join(dir, name)

	rep.Stage(name, StateUninstalled, "checking installed binary")
	state, err := r.Resolver.Resolve(ctx, res.Path, src)
	if err != nil {
		res.Err = &IOError{Op: "inspect", Path: res.Path, Err: err}
		return res
	}
	res.Installed, res.ModTime = state.Version, state.ModTime
	if state.Installed {
		logger.Debugf("%s is installed (version %s, modified %s)", res.Path, displayVersion(state), state.ModTime.Format("2006-01-02 15:04:05"))
		if r.Options.NoUpgrade && !r.Options.Force {
			logger.Infof("%s is already installed.", name)
			res.Outcome = OutcomeSkipped
			return res
		}
	}

	rep.Stage(name, StateUninstalled, "fetching releases of "+project.String())
	releases, err := r.Forge.Releases(ctx, project)
	if err != nil {
		res.Err = fmt.Errorf("get releases of %s: %w", project, err)
		return res
	}
	rel, err := release.Select(releases, spec.AllowPrerelease())
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", project, err)
		return res
	}
	res.Release, res.Target = rel.Tag, rel.Version
	logger.Debugf("The latest release is %s:%s", rel.Version, matcher.FormatList(assetNames(rel)))

	asset, err := release.SelectAsset(rel, assetPattern, name, project, r.platform())
	if err != nil {
		res.Err = err
		return res
	}
	res.Asset = asset

	action := Decide(state, rel.Version, asset, r.Options.Force)
	if action == ActionNone {
		logger.Infof("%s is already up-to-date.", name)
		res.Outcome = OutcomeUpToDate
		return res
	}
	rep.Stage(name, action.State(), describe(action, state, rel))
	logger.Info(describe(action, state, rel) + changelogHint(res.Changelog, state, rel))

	member, err := r.install(ctx, installJob{
		name:    name,
		project: project,
		asset:   asset,
		binary:  binaryPattern,
		dest:    res.Path,
		logger:  logger,
	})
	if err != nil {
		res.Err = err
		return res
	}
	res.Member = member
	if action == ActionInstall {
		res.Outcome = OutcomeInstalled
	} else {
		res.Outcome = OutcomeUpgraded
	}

	if spec.Post != "" {
		rep.Stage(name, StateInstalled, "running post-install command")
		if warn := r.runPost(ctx, spec.Post, logger); warn != nil {
			logger.Warn(warn.Error())
			res.Warning = warn
		}
	}
	rep.Stage(name, StateInstalled, "")
	return res
}

func (r *Reconciler) reporter() Reporter {
	if r.Reporter == nil {
		return nopReporter{}
	}
	return r.Reporter
}

func (r *Reconciler) logger() log.FieldLogger {
	if r.Logger == nil {
		return log.StandardLogger()
	}
	return r.Logger
}

func (r *Reconciler) platform() release.Platform {
	if r.Platform.OS == "" || r.Platform.Arch == "" {
		return release.CurrentPlatform()
	}
	return r.Platform
}

func optionalPattern(s string) (*matcher.Pattern, error) {
	if s == "" {
		return nil, nil
	}
	p, err := matcher.Parse(s)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func assetNames(rel release.Release) []string {
	names := make([]string, len(rel.Assets))
	for i, a := range rel.Assets {
		names[i] = a.Name
	}
	return names
}

func displayVersion(state version.State) string {
	if state.Version == nil {
		return "unknown"
	}
	return state.Version.String()
}

func describe(action Action, state version.State, rel release.Release) string {
	switch {
	case action == ActionInstall:
		return fmt.Sprintf("Installing %s", rel.Version)
	case state.Version != nil:
		return fmt.Sprintf("Upgrading %s -> %s", state.Version, rel.Version)
	default:
		return fmt.Sprintf("Upgrading to %s", rel.Version)
	}
}

// changelogHint points at the changelog unless the versions are known to be
// identical.
func changelogHint(changelog string, state version.State, rel release.Release) string {
	if changelog == "" {
		return ""
	}
	if state.Version != nil && rel.Version.Semver != nil && state.Version.Equal(*rel.Version.Semver) {
		return ""
	}
	return fmt.Sprintf(" (see %s)", changelog)
}

type nopReporter struct{}

func (nopReporter) Start(string) {}
func (nopReporter) Stage(string, State, string) {}
func (nopReporter) Progress(string, int64, int64) {}
func (nopReporter) Done(Result) {}
