package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"panelctl/internal/api"
	"panelctl/internal/app"
	"panelctl/internal/cli"
	"panelctl/internal/reporting"
	"panelctl/internal/session"
)

var (
	serviceOutputFormat string
	serviceLogLines     int
	serviceLogTransport string
)

// serviceCmd represents the service command
var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage services",
	Long: `Manage the systemd units exposed by the panel server.

Available commands:
  list     - List all units with their state
  start    - Start a unit
  stop     - Stop a unit
  restart  - Restart a unit
  logs     - Follow the journal of a unit

Every command logs in first, using --secret-file, PANELCTL_SECRET or a
prompt, and logs out when done.`,
}

// serviceListCmd lists all services
var serviceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all units",
	Long: `List all units with their active state, sub state and whether
they are enabled, in the order the server returns them.`,
	Args: cobra.NoArgs,
	RunE: runServiceList,
}

// serviceStartCmd starts a service
var serviceStartCmd = &cobra.Command{
	Use:   "start <unit>",
	Short: "Start a unit",
	Long: `Start a unit by name, e.g. nginx.service.

Use 'panelctl service list' to see available units. The command exits
non-zero when the server reports that the action failed.`,
	Args: cobra.ExactArgs(1),
	RunE: actionRunner(api.ActionStart),
}

// serviceStopCmd stops a service
var serviceStopCmd = &cobra.Command{
	Use:   "stop <unit>",
	Short: "Stop a unit",
	Long: `Stop a unit by name, e.g. nginx.service.

Use 'panelctl service list' to see available units. The command exits
non-zero when the server reports that the action failed.`,
	Args: cobra.ExactArgs(1),
	RunE: actionRunner(api.ActionStop),
}

// serviceRestartCmd restarts a service
var serviceRestartCmd = &cobra.Command{
	Use:   "restart <unit>",
	Short: "Restart a unit",
	Long: `Restart a unit by name, e.g. nginx.service.

Use 'panelctl service list' to see available units. The command exits
non-zero when the server reports that the action failed.`,
	Args: cobra.ExactArgs(1),
	RunE: actionRunner(api.ActionRestart),
}

// serviceLogsCmd follows a unit's journal
var serviceLogsCmd = &cobra.Command{
	Use:   "logs <unit>",
	Short: "Follow the journal of a unit",
	Long: `Print the last lines of a unit's journal and keep following it
until interrupted with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: runServiceLogs,
}

func init() {
	rootCmd.AddCommand(serviceCmd)

	serviceCmd.AddCommand(serviceListCmd)
	serviceCmd.AddCommand(serviceStartCmd)
	serviceCmd.AddCommand(serviceStopCmd)
	serviceCmd.AddCommand(serviceRestartCmd)
	serviceCmd.AddCommand(serviceLogsCmd)

	serviceCmd.PersistentFlags().StringVarP(&serviceOutputFormat, "output", "o", "table", "Output format (table, json, yaml)")
	serviceLogsCmd.Flags().IntVarP(&serviceLogLines, "lines", "n", 0, "Number of past lines to show (default from logs.tailLines)")
	serviceLogsCmd.Flags().StringVar(&serviceLogTransport, "transport", "", "Log transport: sse or websocket (default from logs.transport)")
}

func newPrinter(cmd *cobra.Command) (*cli.Printer, error) {
	format, err := cli.ParseOutputFormat(serviceOutputFormat)
	if err != nil {
		return nil, err
	}
	out := cmd.OutOrStdout()
	return cli.NewPrinter(out, cli.PrinterOptions{Format: format, NoColor: noColor(out)}), nil
}

// noColor reports whether out should get plain text.
func noColor(out io.Writer) bool {
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return true
	}
	f, ok := out.(*os.File)
	return !ok || !term.IsTerminal(int(f.Fd()))
}

func runServiceList(cmd *cobra.Command, args []string) error {
	printer, err := newPrinter(cmd)
	if err != nil {
		return err
	}
	application, err := app.NewApplication(newAppConfig(cmd), reporting.NopReporter{})
	if err != nil {
		return err
	}

	return app.RunOnce(commandContext(cmd), application, func(ctx context.Context, g *session.Gateway) error {
		list, err := g.Refresh(ctx)
		if err != nil {
			return err
		}
		return printer.Services(list, time.Now())
	})
}

func actionRunner(action api.Action) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		unit := args[0]
		printer, err := newPrinter(cmd)
		if err != nil {
			return err
		}
		application, err := app.NewApplication(newAppConfig(cmd), reporting.NopReporter{})
		if err != nil {
			return err
		}

		return app.RunOnce(commandContext(cmd), application, func(ctx context.Context, g *session.Gateway) error {
			outcome, err := g.Act(ctx, unit, action)
			if err != nil {
				return err
			}
			if err := printer.Outcome(outcome); err != nil {
				return err
			}
			if !outcome.OK {
				return fmt.Errorf("%s %s exited with code %d", action, unit, outcome.Code)
			}
			return nil
		})
	}
}

func runServiceLogs(cmd *cobra.Command, args []string) error {
	cfg := newAppConfig(cmd)
	cfg.LogTransport = serviceLogTransport

	application, err := app.NewApplication(cfg, reporting.NewLogsOnlyReporter(cfg.Stdout))
	if err != nil {
		return err
	}
	return app.RunLogs(commandContext(cmd), application, args[0], serviceLogLines)
}
