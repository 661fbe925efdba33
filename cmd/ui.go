package cmd

import (
	"github.com/spf13/cobra"

	"panelctl/internal/app"
)

func newUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Start the interactive dashboard",
		Long: `Starts the terminal dashboard. It logs in with --secret-file or
PANELCTL_SECRET when available and prompts for the secret otherwise.

Keys: j/k select, s/x/r start/stop/restart, R refresh, enter follow logs,
esc close logs, y copy logs, L logout, ? help, q quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunTUI(commandContext(cmd), newAppConfig(cmd))
		},
	}
}
