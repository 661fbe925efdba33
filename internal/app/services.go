package app

import (
	"fmt"

	"panelctl/internal/api"
	"panelctl/internal/reporting"
	"panelctl/internal/services"
	"panelctl/internal/session"
	"panelctl/internal/stream"
)

// Services holds the initialized client stack
type Services struct {
	Client   *api.Client
	Gateway  *session.Gateway
	Reporter reporting.Reporter
}

// InitializeServices creates the transport client and the session gateway
// that owns every component behind it.
func InitializeServices(cfg *Config, reporter reporting.Reporter) (*Services, error) {
	panel := cfg.Panel
	if panel == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	if reporter == nil {
		reporter = reporting.NopReporter{}
	}

	userAgent := api.DefaultUserAgent
	if cfg.Version != "" {
		userAgent += "/" + cfg.Version
	}
	client, err := api.NewClient(api.Options{
		BaseURL:   panel.Server.URL,
		Endpoints: panel.Endpoints,
		Timeout:   panel.Server.Timeout,
		UserAgent: userAgent,
	})
	if err != nil {
		return nil, err
	}

	transport, err := services.ParseTransport(panel.Logs.Transport)
	if err != nil {
		return nil, err
	}

	gateway := session.NewGateway(client, reporter, session.Options{
		LoginTimeout: panel.Server.Timeout,
		Stream: stream.Options{
			InitialInterval: panel.Stream.ReconnectInitial,
			MaxInterval:     panel.Stream.ReconnectMax,
			MaxElapsedTime:  panel.Stream.ReconnectMaxElapsed,
			Buffer:          panel.Stream.Buffer,
		},
		LogTransport:   transport,
		LogBufferLines: panel.Logs.BufferLines,
		TailLines:      panel.Logs.TailLines,
	})

	return &Services{
		Client:   client,
		Gateway:  gateway,
		Reporter: reporter,
	}, nil
}
