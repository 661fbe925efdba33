package cmd

import (
	"github.com/spf13/cobra"

	"panelctl/internal/app"
	"panelctl/internal/reporting"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print live service state changes",
		Long: `Logs in, prints the full service table once and then one line per
unit whose state changes, until interrupted with Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := newAppConfig(cmd)
			application, err := app.NewApplication(cfg, reporting.NewChangesOnlyReporter(cfg.Stdout))
			if err != nil {
				return err
			}
			return app.RunWatch(commandContext(cmd), application)
		},
	}
}
