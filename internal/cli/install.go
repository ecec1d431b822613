package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"binup/internal/config"
	"binup/internal/tools"
)

var (
	installProject        string
	installReleaseMatcher string
	installBinaryMatcher  string
	installVersionSource  string
	installChangelog      string
	installPath           string
	installPost           string
	installPrerelease     bool
	installForce          bool
	installNoUpgrade      bool
	installNoProgress     bool
)

// specFlags are the install flags that register or update a tool.
var specFlags = []string{"project", "release-matcher", "binary-matcher", "version-source", "changelog", "path", "post", "prerelease"}

func newInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install [names...]",
		Short: "Register and install tools",
		Long: "Install the named tools, or every registered tool. Passing any tool\n" +
			"option registers the single named tool first, merging the options into\n" +
			"an existing entry.",
		RunE: runInstall,
	}

	cmd.Flags().StringVarP(&installProject, "project", "p", "", "GitHub project as owner/repo")
	cmd.Flags().StringVarP(&installReleaseMatcher, "release-matcher", "r", "", "Glob or regex selecting the release asset")
	cmd.Flags().StringVarP(&installBinaryMatcher, "binary-matcher", "b", "", "Glob or regex selecting the binary inside the asset")
	cmd.Flags().StringVar(&installVersionSource, "version-source", "", "How to ask the binary for its version (flag or command)")
	cmd.Flags().StringVar(&installChangelog, "changelog", "", "Changelog URL")
	cmd.Flags().StringVar(&installPath, "path", "", "Install directory for this tool")
	cmd.Flags().StringVarP(&installPost, "post", "s", "", "Post-install shell command")
	cmd.Flags().BoolVar(&installPrerelease, "prerelease", false, "Allow prereleases")
	cmd.Flags().BoolVarP(&installForce, "force", "f", false, "Reinstall even if the binary is up to date")
	cmd.Flags().BoolVar(&installNoUpgrade, "no-upgrade", false, "Leave already installed binaries alone")
	cmd.Flags().BoolVar(&installNoProgress, "no-progress", false, "Disable interactive progress output")

	return cmd
}

func runInstall(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, installNoProgress)
	if err != nil {
		return err
	}
	defer s.Close()

	if registering(cmd) {
		if len(args) != 1 {
			return errors.New("registering a tool requires exactly one name")
		}
		if err := register(s, args[0], specFromFlags(cmd)); err != nil {
			return err
		}
	}

	names, err := selectTools(s, args)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		s.logger.Info("No tools are configured.")
		return nil
	}
	return reconcileTools(s, cmd.OutOrStdout(), "Installing tools", names, tools.Options{
		Force:     installForce,
		NoUpgrade: installNoUpgrade,
	})
}

func registering(cmd *cobra.Command) bool {
	for _, name := range specFlags {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

func specFromFlags(cmd *cobra.Command) config.ToolSpec {
	spec := config.ToolSpec{
		Project:        installProject,
		ReleaseMatcher: installReleaseMatcher,
		BinaryMatcher:  installBinaryMatcher,
		Changelog:      installChangelog,
		VersionSource:  installVersionSource,
		Path:           installPath,
		Post:           installPost,
	}
	if cmd.Flags().Changed("prerelease") {
		v := installPrerelease
		spec.Prerelease = &v
	}
	return spec
}

// register upserts the tool and saves the registry only when it changed.
func register(s *session, name string, spec config.ToolSpec) error {
	if _, exists := s.doc.Get(name); !exists && spec.Project == "" {
		return fmt.Errorf("%s is not registered yet: --project is required", name)
	}
	changed, err := s.doc.Upsert(name, spec)
	if err != nil {
		return err
	}
	if !changed {
		s.logger.Debugf("%s is already registered with these options.", name)
		return nil
	}
	if err := s.doc.Save(); err != nil {
		return err
	}
	s.logger.Infof("Registered %s in %s.", name, s.doc.Path())
	return nil
}

// selectTools validates names against the registry, defaulting to all.
func selectTools(s *session, args []string) ([]string, error) {
	if len(args) == 0 {
		return s.doc.Names(), nil
	}
	var unknown []error
	seen := map[string]bool{}
	names := make([]string, 0, len(args))
	for _, name := range args {
		if seen[name] {
			continue
		}
		seen[name] = true
		if _, ok := s.doc.Get(name); !ok {
			unknown = append(unknown, fmt.Errorf("%s is not registered in %s", name, s.doc.Path()))
			continue
		}
		names = append(names, name)
	}
	if len(unknown) > 0 {
		return nil, errors.Join(unknown...)
	}
	return names, nil
}
