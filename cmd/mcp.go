package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"panelctl/internal/api/tools"
	"panelctl/internal/app"
	"panelctl/internal/reporting"
)

var errSecretOnStdin = errors.New("mcp serve reads the protocol from stdin; use a secret file or " + app.SecretEnvVar)

func newMCPCmd() *cobra.Command {
	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Expose the panel to MCP clients",
	}
	mcpCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve panel tools over stdio",
		Long: `Logs in and serves the service_list, service_start, service_stop,
service_restart and service_logs tools over stdin/stdout for an MCP
client such as an AI assistant. The secret must come from --secret-file
or PANELCTL_SECRET since stdin carries the protocol.`,
		Args: cobra.NoArgs,
		RunE: runMCPServe,
	})
	return mcpCmd
}

func runMCPServe(cmd *cobra.Command, args []string) error {
	cfg := newAppConfig(cmd)
	application, err := app.NewApplication(cfg, reporting.NopReporter{})
	if err != nil {
		return err
	}
	if cfg.SecretFile == "-" {
		return errSecretOnStdin
	}

	ctx := commandContext(cmd)
	if err := application.Login(ctx); err != nil {
		return err
	}
	defer application.Shutdown(context.Background())

	return tools.ServeStdio(application.Services().Gateway, rootCmd.Version)
}
