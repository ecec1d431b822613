package cli

import (
	"github.com/spf13/cobra"

	"binup/internal/tools"
)

var (
	upgradeForce      bool
	upgradeNoProgress bool
)

func newUpgradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upgrade [names...]",
		Short: "Upgrade the named tools, or all of them",
		RunE:  runUpgrade,
	}

	cmd.Flags().BoolVarP(&upgradeForce, "force", "f", false, "Reinstall even if the binary is up to date")
	cmd.Flags().BoolVar(&upgradeNoProgress, "no-progress", false, "Disable interactive progress output")

	return cmd
}

func runUpgrade(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, upgradeNoProgress)
	if err != nil {
		return err
	}
	defer s.Close()

	names, err := selectTools(s, args)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		s.logger.Info("No tools are configured.")
		return nil
	}
	return reconcileTools(s, cmd.OutOrStdout(), "Upgrading tools", names, tools.Options{Force: upgradeForce})
}
