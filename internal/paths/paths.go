package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
)

const (
	// DefaultInstallDir is used when neither the config nor the tool sets a path.
	DefaultInstallDir = "~/.local/bin"

	configDirName  = "binup"
	configFileName = "config.yaml"
)

// DefaultConfigFile returns ~/.config/binup/config.yaml, honoring
// XDG_CONFIG_HOME when it is set.
func DefaultConfigFile() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" && filepath.IsAbs(xdg) {
		return filepath.Join(xdg, configDirName, configFileName), nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("detect user home: %w", err)
	}
	return filepath.Join(home, ".config", configDirName, configFileName), nil
}

// Expand resolves a leading ~ and makes the path absolute.
func Expand(path string) (string, error) {
	expanded, err := homedir.Expand(strings.TrimSpace(path))
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", path, err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	return abs, nil
}

// InstallDir picks the destination directory: the tool override, then the
// global setting, then DefaultInstallDir.
func InstallDir(global, override string) (string, error) {
	dir := strings.TrimSpace(override)
	if dir == "" {
		dir = strings.TrimSpace(global)
	}
	if dir == "" {
		dir = DefaultInstallDir
	}
	return Expand(dir)
}

// Shorten replaces the home directory prefix with ~ for display.
func Shorten(path string) string {
	home, err := homedir.Dir()
	if err != nil || home == "" {
		return path
	}
	if path == home {
		return "~"
	}
	if rest, ok := strings.CutPrefix(path, home+string(filepath.Separator)); ok {
		return filepath.Join("~", rest)
	}
	return path
}

// EnsureDir creates dir and its parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

// FileExists reports whether a path exists and is a regular file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}
