package tools

import (
	"binup/internal/release"
	"binup/internal/version"
)

// Decide picks the action for a tool from its observed state and the target
// release. It performs no I/O.
//
// A missing binary is always installed. With force an installed binary is
// replaced. Otherwise a semver comparison is used when the binary reported a
// version and the tag is semver, and only a strictly newer release upgrades.
// Without a comparable version the asset timestamp must be strictly after
// the binary's mtime.
func Decide(state version.State, target version.ReleaseVersion, asset release.Asset, force bool) Action {
	if !state.Installed {
		return ActionInstall
	}
	if force {
		return ActionUpgrade
	}
	if newer, ok := target.NewerThan(state.Version); ok {
		if newer {
			return ActionUpgrade
		}
		return ActionNone
	}
	if asset.UpdatedAt.After(state.ModTime) {
		return ActionUpgrade
	}
	return ActionNone
}
