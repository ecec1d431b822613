package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"binup/internal/paths"
	"binup/internal/tui"
)

var uninstallYes bool

func newUninstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uninstall names...",
		Short: "Remove tools and their config entries",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runUninstall,
	}

	cmd.Flags().BoolVarP(&uninstallYes, "yes", "y", false, "Don't ask for confirmation")

	return cmd
}

func runUninstall(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	names, err := selectTools(s, args)
	if err != nil {
		return err
	}

	if !uninstallYes {
		ok, err := confirm(cmd, "Uninstall "+strings.Join(names, ", ")+"?",
			"The binaries and their entries in "+paths.Shorten(s.doc.Path())+" will be removed.")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	cfg := s.config()
	var removed []string
	var errs []error
	for _, name := range names {
		spec := cfg.Tools[name]
		dir, err := paths.InstallDir(cfg.Path, spec.Path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		path := filepath.Join(dir, name)
		exists, err := paths.FileExists(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: inspect %s: %w", name, path, err))
			continue
		}
		if exists {
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, fmt.Errorf("%s: remove %s: %w", name, path, err))
				continue
			}
			s.logger.Debugf("Removed %s.", path)
		} else {
			s.logger.Debugf("%s is not installed.", path)
		}
		if _, err := s.doc.Remove(name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		removed = append(removed, name)
	}
	if s.doc.Modified() {
		if err := s.doc.Save(); err != nil {
			return errors.Join(append(errs, err)...)
		}
	}
	for _, name := range removed {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: uninstalled\n", name)
	}
	return errors.Join(errs...)
}

// confirm is replaced in tests.
var confirm = func(cmd *cobra.Command, title, description string) (bool, error) {
	return tui.Confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), title, description)
}
