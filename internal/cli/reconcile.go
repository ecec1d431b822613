package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"binup/internal/paths"
	"binup/internal/tools"
	"binup/internal/tui"
)

// reconcileTools runs the reconciler over names, rendering progress when
// attached to a terminal, and prints a summary. The returned error joins
// every tool failure.
func reconcileTools(s *session, out io.Writer, title string, names []string, opts tools.Options) error {
	rec, err := s.reconciler(opts)
	if err != nil {
		return err
	}
	cfg := s.config()

	var (
		results []tools.Result
		runErr  error
	)
	if s.mode == tui.ModeTUI {
		ctx, cancel := context.WithCancel(s.ctx)
		defer cancel()
		model := tui.NewToolModel(title, names)
		err := tui.RunWithWork(out, model, cancel, func(send func(tea.Msg)) {
			rec.Reporter = tui.NewToolReporter(send)
			results, runErr = rec.Run(ctx, cfg, names)
		})
		if err != nil {
			return fmt.Errorf("progress display: %w", err)
		}
		fmt.Fprintln(out)
	} else {
		results, runErr = rec.Run(s.ctx, cfg, names)
	}

	printSummary(out, results)
	return runErr
}

// printSummary lists every outcome, then the totals.
func printSummary(w io.Writer, results []tools.Result) {
	counts := map[tools.Outcome]int{}
	warnings := 0
	for _, res := range results {
		counts[res.Outcome]++
		fmt.Fprintf(w, "%s: %s\n", res.Tool, describeResult(res))
		if res.Warning != nil {
			warnings++
			fmt.Fprintf(w, "  warning: %v\n", res.Warning)
		}
	}
	if len(results) < 2 {
		return
	}

	var parts []string
	for _, o := range []tools.Outcome{tools.OutcomeInstalled, tools.OutcomeUpgraded, tools.OutcomeUpToDate, tools.OutcomeSkipped, tools.OutcomeFailed} {
		if n := counts[o]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, o))
		}
	}
	if warnings > 0 {
		parts = append(parts, fmt.Sprintf("%d with warnings", warnings))
	}
	fmt.Fprintf(w, "\n%s\n", strings.Join(parts, ", "))
}

func describeResult(res tools.Result) string {
	switch res.Outcome {
	case tools.OutcomeInstalled:
		return fmt.Sprintf("installed %s to %s%s", res.Target, paths.Shorten(res.Path), released(res))
	case tools.OutcomeUpgraded:
		from := res.InstalledVersion()
		if from == "" {
			return fmt.Sprintf("upgraded to %s%s", res.Target, released(res))
		}
		return fmt.Sprintf("upgraded %s -> %s%s", from, res.Target, released(res))
	case tools.OutcomeUpToDate:
		return fmt.Sprintf("up-to-date (%s)", tui.NonEmptyOrDash(nonEmpty(res.InstalledVersion(), res.Target.String())))
	case tools.OutcomeSkipped:
		return "already installed"
	default:
		return fmt.Sprintf("failed: %v", res.Err)
	}
}

func released(res tools.Result) string {
	if res.Asset.UpdatedAt.IsZero() {
		return ""
	}
	return fmt.Sprintf(" (released %s)", humanize.Time(res.Asset.UpdatedAt))
}

func nonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
