package app

import (
	"io"
	"os"

	"panelctl/internal/config"
)

// Config holds the application configuration
type Config struct {
	// ConfigPath replaces the layered config files when set (--config).
	ConfigPath string
	// ServerURL overrides server.url (--server).
	ServerURL string
	// SecretFile is where the secret is read from (--secret-file); "-" is stdin.
	SecretFile string
	// LogTransport overrides logs.transport (--transport).
	LogTransport string

	// Debug settings
	Debug bool

	// Version is sent in the User-Agent header.
	Version string

	// Stdin, Stdout and Stderr default to the process streams.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Panel configuration, filled by NewApplication
	Panel *config.PanelctlConfig
}

// NewConfig creates a new application configuration
func NewConfig(configPath, serverURL, secretFile string, debug bool, version string) *Config {
	return &Config{
		ConfigPath: configPath,
		ServerURL:  serverURL,
		SecretFile: secretFile,
		Debug:      debug,
		Version:    version,
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}
}
