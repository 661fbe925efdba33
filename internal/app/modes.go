package app

import (
	"context"
	"errors"
	"fmt"

	"panelctl/internal/api"
	"panelctl/internal/session"
	"panelctl/pkg/logging"
)

// ErrSessionEnded is returned by the follow modes when the session stops
// while they run.
var ErrSessionEnded = errors.New("session ended")

// RunWatch logs in and lets the status stream drive the reporter until ctx
// is cancelled or the stream gives up.
func RunWatch(ctx context.Context, a *Application) error {
	if err := a.Login(ctx); err != nil {
		return err
	}
	defer a.Shutdown(context.Background())

	status, err := a.services.Gateway.Status()
	if err != nil {
		return err
	}
	logging.Info("CLI", "Watching service status. Press Ctrl+C to exit.")

	select {
	case <-ctx.Done():
		return nil
	case <-status.Done():
		err := status.Err()
		if api.IsUnauthorized(err) {
			return fmt.Errorf("%w: %v", ErrSessionEnded, err)
		}
		return fmt.Errorf("status stream ended: %w", err)
	}
}

// RunLogs logs in and follows unit until ctx is cancelled or the stream
// gives up. tail <= 0 uses the configured tail.
func RunLogs(ctx context.Context, a *Application, unit string, tail int) error {
	if err := a.Login(ctx); err != nil {
		return err
	}
	defer a.Shutdown(context.Background())

	if err := a.services.Gateway.OpenLogs(unit, tail); err != nil {
		return err
	}
	logs, err := a.services.Gateway.Logs()
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return nil
	case <-logs.Done():
		if err := logs.Err(); err != nil {
			return fmt.Errorf("log stream for %s ended: %w", unit, err)
		}
		return ErrSessionEnded
	}
}

// RunOnce logs in, runs fn and logs out, whatever fn returns. No stream is
// opened; fn fetches what it needs.
func RunOnce(ctx context.Context, a *Application, fn func(ctx context.Context, g *session.Gateway) error) error {
	if err := a.Authenticate(ctx); err != nil {
		return err
	}
	defer a.Shutdown(context.Background())
	return fn(ctx, a.services.Gateway)
}
