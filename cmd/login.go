package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"panelctl/internal/app"
	"panelctl/internal/reporting"
	"panelctl/internal/session"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Verify the secret against the panel server",
		Long: `Runs the challenge-response handshake with the configured server and
logs out again. Use it to check a secret and server URL before
scripting other commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := newAppConfig(cmd)
			application, err := app.NewApplication(cfg, reporting.NopReporter{})
			if err != nil {
				return err
			}
			return app.RunOnce(commandContext(cmd), application, func(ctx context.Context, g *session.Gateway) error {
				fmt.Fprintf(cmd.OutOrStdout(), "✅ Logged in to %s\n", cfg.Panel.Server.URL)
				return nil
			})
		},
	}
}
