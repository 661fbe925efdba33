package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"panelctl/internal/testing/mockpanel"
	"panelctl/pkg/logging"
)

var (
	mockAddr     string
	mockSecret   string
	mockScenario string
)

func newDevCmd() *cobra.Command {
	devCmd := &cobra.Command{
		Use:    "dev",
		Short:  "Development helpers",
		Hidden: true,
	}

	mockCmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Serve an in-process mock panel",
		Long: `Serves a mock panel implementing the full protocol: challenge and
login, service list, lifecycle actions, status and log streams. Units
come from --scenario (YAML) or a built-in demo set.`,
		Args: cobra.NoArgs,
		RunE: runMockServer,
	}
	mockCmd.Flags().StringVar(&mockAddr, "addr", "127.0.0.1:8080", "Listen address")
	mockCmd.Flags().StringVar(&mockSecret, "secret", "panelctl", "Secret the mock accepts (ignored when the scenario sets one)")
	mockCmd.Flags().StringVar(&mockScenario, "scenario", "", "Scenario YAML file")

	devCmd.AddCommand(mockCmd)
	return devCmd
}

func runMockServer(cmd *cobra.Command, args []string) error {
	logging.InitForCLI(logging.LevelInfo, cmd.ErrOrStderr())

	sc := mockpanel.DemoScenario(mockSecret)
	if mockScenario != "" {
		loaded, err := mockpanel.LoadScenario(mockScenario)
		if err != nil {
			return err
		}
		if loaded.Secret == "" {
			loaded.Secret = mockSecret
		}
		sc = loaded
	}

	panel, err := mockpanel.FromScenario(sc)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", mockAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", mockAddr, err)
	}
	srv := &http.Server{Handler: panel, ReadHeaderTimeout: 10 * time.Second}

	ctx := commandContext(cmd)
	go func() {
		<-ctx.Done()
		panel.DropStreams()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Mock panel serving %d units on http://%s\n", len(sc.Services), ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
