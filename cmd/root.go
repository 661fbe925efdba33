package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"panelctl/internal/app"
)

// Persistent flags shared by every command
var (
	configPath string
	serverURL  string
	secretFile string
	debugMode  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "panelctl",
	Short: "Control systemd services through a panel server",
	Long: `panelctl talks to a service panel server: it authenticates with a
shared secret, lists systemd units, starts, stops and restarts them,
and follows their status and journal logs live.

Use 'panelctl ui' for the interactive dashboard, or the service and
watch commands for scripting.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. rejected secret, unreachable server)
	SilenceUsage: true,
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "panelctl version %s\n" .Version}}`)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		// Cobra prints the error, we just exit non-zero
		stop()
		os.Exit(1)
	}
}

// newAppConfig builds the application config from the persistent flags.
func newAppConfig(cmd *cobra.Command) *app.Config {
	cfg := app.NewConfig(configPath, serverURL, secretFile, debugMode, rootCmd.Version)
	cfg.Stdin = cmd.InOrStdin()
	cfg.Stdout = cmd.OutOrStdout()
	cfg.Stderr = cmd.ErrOrStderr()
	return cfg
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is layered ~/.config/panelctl and ./.panelctl)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "panel server URL, overrides server.url")
	rootCmd.PersistentFlags().StringVar(&secretFile, "secret-file", "", "read the secret from this file, - for stdin")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newUICmd())
	rootCmd.AddCommand(newMCPCmd())
	rootCmd.AddCommand(newDevCmd())
}
