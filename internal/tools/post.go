package tools

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"binup/internal/runner"
)

// PostHook runs a post-install command through bash with the process
// environment. A failure is returned as a warning because the binary is
// already in place.
func PostHook(ctx context.Context, run runner.Runner, command string, logger log.FieldLogger) *PostInstallWarning {
	if run == nil {
		run = runner.CmdRunner{}
	}
	logger.Debugf("Executing post-install command:\n%s", indent(command))

	res, err := run.Run(ctx, "bash", []string{"-c", command}, runner.Options{})
	output := strings.TrimSpace(string(res.Stderr))
	if err != nil {
		if output == "" {
			output = strings.TrimSpace(string(res.Stdout))
		}
		return &PostInstallWarning{Command: command, Output: output, Err: err}
	}
	if out := strings.TrimSpace(string(res.Stdout)); out != "" {
		logger.Debugf("Post-install command output:\n%s", indent(out))
	}
	if output != "" {
		logger.Debugf("Post-install command has finished:\n%s", indent(output))
	} else {
		logger.Debug("Post-install command has finished.")
	}
	return nil
}

func (r *Reconciler) runPost(ctx context.Context, command string, logger log.FieldLogger) *PostInstallWarning {
	return PostHook(ctx, r.Runner, command, logger)
}
