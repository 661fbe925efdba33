package config

import (
	"time"

	"panelctl/internal/api"
)

// PanelctlConfig is the top-level configuration structure for panelctl.
type PanelctlConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Endpoints api.Endpoints   `yaml:"endpoints"`
	Logs      LogsConfig      `yaml:"logs"`
	Stream    StreamConfig    `yaml:"stream"`
	Logging   LoggingSettings `yaml:"logging"`
	UI        UIConfig        `yaml:"ui"`
}

// ServerConfig locates the panel server.
type ServerConfig struct {
	URL     string        `yaml:"url"`               // Base URL, e.g. "https://panel.example.com"
	Timeout time.Duration `yaml:"timeout,omitempty"` // Per-request timeout for non-streaming calls
	// SecretFile is read when no --secret-file flag is given.
	SecretFile string `yaml:"secretFile,omitempty"`
}

// LogsConfig controls the log stream.
type LogsConfig struct {
	Transport   string `yaml:"transport,omitempty"`   // "sse" or "websocket"
	TailLines   int    `yaml:"tailLines,omitempty"`   // History requested on open
	BufferLines int    `yaml:"bufferLines,omitempty"` // Lines kept in memory
}

// StreamConfig is the reconnect policy of both streams.
type StreamConfig struct {
	ReconnectInitial    time.Duration `yaml:"reconnectInitial,omitempty"`
	ReconnectMax        time.Duration `yaml:"reconnectMax,omitempty"`
	// ReconnectMaxElapsed bounds how long a lost log stream is retried.
	// Zero retries until the stream is closed. The status stream always
	// retries until logout.
	ReconnectMaxElapsed time.Duration `yaml:"reconnectMaxElapsed,omitempty"`
	Buffer              int           `yaml:"buffer,omitempty"`
}

// LoggingSettings controls panelctl's own log output.
type LoggingSettings struct {
	Level string `yaml:"level,omitempty"` // debug, info, warn, error
}

// UIConfig tunes the terminal UI.
type UIConfig struct {
	ColorMode string `yaml:"colorMode,omitempty"` // "auto", "dark" or "light"
}
