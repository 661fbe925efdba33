package config

import (
	"time"

	"panelctl/internal/api"
	"panelctl/internal/reporting"
	"panelctl/internal/services"
)

// GetDefaultConfig returns the built-in configuration. No server is set;
// it has to come from a config file, PANELCTL_SERVER or --server.
func GetDefaultConfig() PanelctlConfig {
	return PanelctlConfig{
		Server: ServerConfig{
			Timeout: api.DefaultTimeout,
		},
		Endpoints: api.DefaultEndpoints(),
		Logs: LogsConfig{
			Transport:   string(services.TransportSSE),
			TailLines:   services.DefaultTailLines,
			BufferLines: reporting.DefaultLogBufferLines,
		},
		Stream: StreamConfig{
			ReconnectInitial: 500 * time.Millisecond,
			ReconnectMax:     30 * time.Second,
			Buffer:           64,
		},
		Logging: LoggingSettings{
			Level: "warn",
		},
		UI: UIConfig{
			ColorMode: "auto",
		},
	}
}
