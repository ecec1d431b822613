package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"binup/internal/config"
	"binup/internal/paths"
	"binup/internal/release"
	"binup/internal/tools"
	"binup/internal/tui"
	"binup/internal/version"
)

var (
	listLocal bool
	listFull  bool
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered tools with installed and latest versions",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}

	cmd.Flags().BoolVarP(&listLocal, "local", "l", false, "Skip fetching the latest releases")
	cmd.Flags().BoolVar(&listFull, "full", false, "Show changelog URLs")

	return cmd
}

func runList(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	cfg := s.config()
	names := cfg.Names()
	if len(names) == 0 {
		s.logger.Info("No tools are configured.")
		return nil
	}

	var forge tools.Forge
	if !listLocal {
		if forge, err = newForge(cfg, s.logger); err != nil {
			return err
		}
	}
	resolver := newResolver(s.logger)

	var status *tui.StatusWriter
	if tui.IsTerminal(cmd.ErrOrStderr()) {
		status = tui.NewStatusWriter(cmd.ErrOrStderr())
	}

	rows := make([]tui.ListRow, 0, len(names))
	var errs []error
	for _, name := range names {
		if status != nil {
			status.Update("Checking " + name + "...")
		}
		row, err := listRow(s.ctx, cfg, name, resolver, forge)
		if err != nil {
			s.logger.WithField("tool", name).Debug(err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		rows = append(rows, row)
	}
	if status != nil {
		status.Stop()
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, tui.RenderList(out, rows, tui.ListOptions{Full: listFull, Color: tui.ColorEnabled(out)}))
	return errors.Join(errs...)
}

func listRow(ctx context.Context, cfg config.Config, name string, resolver tools.StateResolver, forge tools.Forge) (tui.ListRow, error) {
	spec := cfg.Tools[name]
	row := tui.ListRow{Name: name, Changelog: spec.Changelog}

	project, err := release.ParseProject(spec.Project)
	if err != nil {
		return row, err
	}
	if row.Changelog == "" {
		row.Changelog = project.ReleasesURL()
	}
	src, err := version.ParseSource(spec.VersionSource)
	if err != nil {
		return row, err
	}
	dir, err := paths.InstallDir(cfg.Path, spec.Path)
	if err != nil {
		return row, err
	}

	state, err := resolver.Resolve(ctx, filepath.Join(dir, name), src)
	if err != nil {
		return row, err
	}
	switch {
	case state.Version != nil:
		row.Installed = state.Version.String()
	case state.Installed:
		row.Installed = "unknown"
	}

	if forge == nil {
		return row, nil
	}
	releases, err := forge.Releases(ctx, project)
	if err != nil {
		row.Latest = "?"
		return row, err
	}
	latest, err := release.Select(releases, spec.AllowPrerelease())
	if err != nil {
		row.Latest = "?"
		return row, err
	}
	row.Latest = latest.Version.String()
	if state.Version != nil {
		if newer, ok := latest.Version.NewerThan(state.Version); ok {
			row.Freshness = tui.FreshnessCurrent
			if newer {
				row.Freshness = tui.FreshnessOutdated
			}
		}
	}
	return row, nil
}
