package app

import (
	"context"
	"fmt"
	"os"

	"panelctl/internal/config"
	"panelctl/internal/reporting"
	"panelctl/pkg/logging"
)

// Application is the main application structure that bootstraps panelctl
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads configuration, applies flag overrides and wires the
// client stack around reporter. Nothing talks to the server yet.
func NewApplication(cfg *Config, reporter reporting.Reporter) (*Application, error) {
	if cfg.Stdin == nil {
		cfg.Stdin = os.Stdin
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}

	// Command output goes to stdout; logs stay on stderr.
	logging.InitForCLI(logLevel(cfg, ""), cfg.Stderr)

	var panelCfg config.PanelctlConfig
	var err error
	if cfg.ConfigPath != "" {
		panelCfg, err = config.LoadConfigFromPath(cfg.ConfigPath)
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load configuration from path: %s", cfg.ConfigPath)
			return nil, fmt.Errorf("failed to load configuration from path %s: %w", cfg.ConfigPath, err)
		}
		logging.Debug("Bootstrap", "Loaded configuration from custom path: %s", cfg.ConfigPath)
	} else {
		panelCfg, err = config.LoadConfig()
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load configuration")
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		logging.Debug("Bootstrap", "Loaded configuration using layered approach")
	}

	if cfg.ServerURL != "" {
		panelCfg.Server.URL = cfg.ServerURL
	}
	if cfg.LogTransport != "" {
		panelCfg.Logs.Transport = cfg.LogTransport
	}
	if cfg.SecretFile == "" {
		cfg.SecretFile = panelCfg.Server.SecretFile
	}
	if err := panelCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.Panel = &panelCfg

	logging.InitForCLI(logLevel(cfg, panelCfg.Logging.Level), cfg.Stderr)

	services, err := InitializeServices(cfg, reporter)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// Config returns the resolved configuration.
func (a *Application) Config() *Config { return a.config }

// Services returns the wired client stack.
func (a *Application) Services() *Services { return a.services }

// Login reads the secret and authenticates the gateway.
func (a *Application) Login(ctx context.Context) error {
	secret, err := ReadSecret(a.config)
	if err != nil {
		return err
	}
	return a.services.Gateway.Login(ctx, secret)
}

// Authenticate reads the secret and logs in without starting the status
// stream.
func (a *Application) Authenticate(ctx context.Context) error {
	secret, err := ReadSecret(a.config)
	if err != nil {
		return err
	}
	return a.services.Gateway.Authenticate(ctx, secret)
}

// Shutdown logs out if logged in.
func (a *Application) Shutdown(ctx context.Context) {
	a.services.Gateway.Close(ctx)
}

func logLevel(cfg *Config, configured string) logging.LogLevel {
	if cfg.Debug {
		return logging.LevelDebug
	}
	if configured == "" {
		return logging.LevelWarn
	}
	return logging.ParseLevel(configured)
}
