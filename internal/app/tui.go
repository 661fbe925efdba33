package app

import (
	"context"
	"errors"

	"panelctl/internal/reporting"
	"panelctl/internal/tui/controller"
	"panelctl/internal/tui/design"
	"panelctl/internal/tui/model"
	"panelctl/pkg/logging"
)

// tuiUpdateBuffer is the capacity of the reporter channel feeding the UI.
const tuiUpdateBuffer = 256

// RunTUI runs the interactive dashboard until the user quits. When a secret
// is available from a file or the environment it logs in right away;
// otherwise the login view prompts for one.
func RunTUI(ctx context.Context, cfg *Config) error {
	updates := reporting.NewBufferedChannel(tuiUpdateBuffer, reporting.DefaultStrategy(), 0)
	defer updates.Close()

	a, err := NewApplication(cfg, reporting.NewTUIReporter(updates))
	if err != nil {
		return err
	}

	secret, err := ReadStoredSecret(cfg)
	if err != nil && !errors.Is(err, ErrNoSecret) {
		return err
	}

	// Logs go to the activity pane from here on.
	logChan := logging.InitForTUI(logLevel(cfg, cfg.Panel.Logging.Level))
	defer logging.CloseTUIChannel()

	design.Initialize(cfg.Panel.UI.ColorMode)

	p := controller.NewProgram(model.TUIConfig{
		DebugMode:  cfg.Debug,
		ColorMode:  cfg.Panel.UI.ColorMode,
		ServerURL:  cfg.Panel.Server.URL,
		TailLines:  cfg.Panel.Logs.TailLines,
		Gateway:    a.services.Gateway,
		Updates:    updates.Channel(),
		LogChannel: logChan,
		Secret:     secret,
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.Quit()
		case <-done:
		}
	}()

	_, runErr := p.Run()
	// Nothing drains the channel any more; release stream goroutines
	// waiting on it before Shutdown waits for them.
	updates.Close()
	a.Shutdown(context.Background())
	if runErr != nil {
		logging.Error("TUI", runErr, "Dashboard exited with error")
	}
	return runErr
}
