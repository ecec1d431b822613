package tools

import (
	"time"

	"github.com/coreos/go-semver/semver"

	"binup/internal/release"
	"binup/internal/version"
)

// State is a step of the per-tool state machine.
type State string

const (
	StateUninstalled State = "uninstalled"
	StateInstalling  State = "installing"
	StateInstalled   State = "installed"
	StateUpToDate    State = "up-to-date"
	StateUpgrading   State = "upgrading"
	StateFailed      State = "failed"
)

// Action is the outcome of the reconciliation decision.
type Action int

const (
	ActionInstall Action = iota
	ActionUpgrade
	ActionNone
)

func (a Action) String() string {
	switch a {
	case ActionInstall:
		return "install"
	case ActionUpgrade:
		return "upgrade"
	default:
		return "none"
	}
}

// State returns the transient state the action moves the tool into.
func (a Action) State() State {
	switch a {
	case ActionInstall:
		return StateInstalling
	case ActionUpgrade:
		return StateUpgrading
	default:
		return StateUpToDate
	}
}

// Outcome summarizes how a tool run ended.
type Outcome string

const (
	OutcomeInstalled Outcome = "installed"
	OutcomeUpgraded  Outcome = "upgraded"
	OutcomeUpToDate  Outcome = "up-to-date"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Result captures what happened to a single tool.
type Result struct {
	Tool      string
	Outcome   Outcome
	Path      string
	Installed *semver.Version
	ModTime   time.Time
	Target    version.ReleaseVersion
	Release   string
	Asset     release.Asset
	Member    string
	Changelog string
	Warning   error
	Err       error
}

// Failed reports whether the run ended in the Failed state.
func (r Result) Failed() bool { return r.Outcome == OutcomeFailed }

// Changed reports whether the binary on disk was replaced.
func (r Result) Changed() bool {
	return r.Outcome == OutcomeInstalled || r.Outcome == OutcomeUpgraded
}

// InstalledVersion renders the observed version for display.
func (r Result) InstalledVersion() string {
	if r.Installed != nil {
		return r.Installed.String()
	}
	return ""
}
