package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"panelctl/internal/api"
	"panelctl/internal/services"
	"panelctl/pkg/logging"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osGetwd = os.Getwd
var osLookupEnv = os.LookupEnv

const (
	userConfigDir    = ".config/panelctl"
	projectConfigDir = ".panelctl"
	configFileName   = "config.yaml"

	// ServerEnvVar overrides server.url.
	ServerEnvVar = "PANELCTL_SERVER"
)

// LoadConfig loads the panelctl configuration by layering default, user, and
// project settings. PANELCTL_SERVER, when set, wins over every file.
func LoadConfig() (PanelctlConfig, error) {
	config := GetDefaultConfig()

	for _, layer := range []struct {
		name string
		path func() (string, error)
	}{
		{"user", getUserConfigPath},
		{"project", getProjectConfigPath},
	} {
		path, err := layer.path()
		if err != nil {
			logging.Warn("Config", "Could not determine %s config path: %v", layer.name, err)
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		overlay, err := loadConfigFromFile(path)
		if err != nil {
			return PanelctlConfig{}, fmt.Errorf("error loading %s config from %s: %w", layer.name, path, err)
		}
		logging.Debug("Config", "Loaded %s config from %s", layer.name, path)
		config = mergeConfigs(config, overlay)
	}

	applyEnv(&config)
	return config, nil
}

// LoadConfigFromPath loads defaults overlaid with a single file, skipping
// the user and project layers.
func LoadConfigFromPath(path string) (PanelctlConfig, error) {
	overlay, err := loadConfigFromFile(path)
	if err != nil {
		return PanelctlConfig{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}
	config := mergeConfigs(GetDefaultConfig(), overlay)
	applyEnv(&config)
	return config, nil
}

var getUserConfigPath = func() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

// loadConfigFromFile loads a PanelctlConfig from a YAML file, expanding
// environment references first.
func loadConfigFromFile(filePath string) (PanelctlConfig, error) {
	var config PanelctlConfig
	data, err := os.ReadFile(filePath)
	if err != nil {
		return PanelctlConfig{}, err
	}
	if err := yaml.Unmarshal([]byte(ExpandEnv(string(data))), &config); err != nil {
		return PanelctlConfig{}, err
	}
	return config, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} and ${VAR:-default} references. An unset or
// empty VAR with no default expands to the empty string.
func ExpandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		if v, ok := osLookupEnv(m[1]); ok && v != "" {
			return v
		}
		return m[3]
	})
}

func applyEnv(config *PanelctlConfig) {
	if v, ok := osLookupEnv(ServerEnvVar); ok && v != "" {
		config.Server.URL = v
	}
}

// mergeConfigs merges 'overlay' config into 'base' config. Zero values in
// the overlay leave the base untouched.
func mergeConfigs(base, overlay PanelctlConfig) PanelctlConfig {
	merged := base

	if overlay.Server.URL != "" {
		merged.Server.URL = overlay.Server.URL
	}
	if overlay.Server.Timeout != 0 {
		merged.Server.Timeout = overlay.Server.Timeout
	}
	if overlay.Server.SecretFile != "" {
		merged.Server.SecretFile = overlay.Server.SecretFile
	}

	merged.Endpoints = mergeEndpoints(base.Endpoints, overlay.Endpoints)

	if overlay.Logs.Transport != "" {
		merged.Logs.Transport = overlay.Logs.Transport
	}
	if overlay.Logs.TailLines != 0 {
		merged.Logs.TailLines = overlay.Logs.TailLines
	}
	if overlay.Logs.BufferLines != 0 {
		merged.Logs.BufferLines = overlay.Logs.BufferLines
	}

	if overlay.Stream.ReconnectInitial != 0 {
		merged.Stream.ReconnectInitial = overlay.Stream.ReconnectInitial
	}
	if overlay.Stream.ReconnectMax != 0 {
		merged.Stream.ReconnectMax = overlay.Stream.ReconnectMax
	}
	if overlay.Stream.ReconnectMaxElapsed != 0 {
		merged.Stream.ReconnectMaxElapsed = overlay.Stream.ReconnectMaxElapsed
	}
	if overlay.Stream.Buffer != 0 {
		merged.Stream.Buffer = overlay.Stream.Buffer
	}

	if overlay.Logging.Level != "" {
		merged.Logging.Level = overlay.Logging.Level
	}
	if overlay.UI.ColorMode != "" {
		merged.UI.ColorMode = overlay.UI.ColorMode
	}
	return merged
}

func mergeEndpoints(base, overlay api.Endpoints) api.Endpoints {
	pick := func(b, o string) string {
		if o != "" {
			return o
		}
		return b
	}
	return api.Endpoints{
		Challenge:    pick(base.Challenge, overlay.Challenge),
		Login:        pick(base.Login, overlay.Login),
		Logout:       pick(base.Logout, overlay.Logout),
		Services:     pick(base.Services, overlay.Services),
		Action:       pick(base.Action, overlay.Action),
		StatusStream: pick(base.StatusStream, overlay.StatusStream),
		Logs:         pick(base.Logs, overlay.Logs),
		LogsSocket:   pick(base.LogsSocket, overlay.LogsSocket),
	}
}

// Validate reports every problem with the configuration at once.
func (c PanelctlConfig) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Server.URL) == "" {
		errs = append(errs, fmt.Errorf("server.url is required (set it in %s, %s or with --server)",
			filepath.Join("~", userConfigDir, configFileName), ServerEnvVar))
	} else if u, err := url.Parse(c.Server.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("server.url %q must be an absolute http(s) URL", c.Server.URL))
	}
	if c.Server.Timeout <= 0 {
		errs = append(errs, errors.New("server.timeout must be positive"))
	}
	if _, err := services.ParseTransport(c.Logs.Transport); err != nil {
		errs = append(errs, fmt.Errorf("logs.transport: %w", err))
	}
	if c.Logs.TailLines < 0 {
		errs = append(errs, errors.New("logs.tailLines must not be negative"))
	}
	if c.Logs.BufferLines <= 0 {
		errs = append(errs, errors.New("logs.bufferLines must be positive"))
	}
	if c.Stream.ReconnectMaxElapsed < 0 {
		errs = append(errs, errors.New("stream.reconnectMaxElapsed must not be negative (0 retries until closed)"))
	}
	if c.Stream.ReconnectInitial <= 0 || c.Stream.ReconnectMax <= 0 {
		errs = append(errs, errors.New("stream reconnect intervals must be positive"))
	} else if c.Stream.ReconnectMax < c.Stream.ReconnectInitial {
		errs = append(errs, errors.New("stream.reconnectMax must not be smaller than stream.reconnectInitial"))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q must be debug, info, warn or error", c.Logging.Level))
	}
	switch c.UI.ColorMode {
	case "", "auto", "dark", "light":
	default:
		errs = append(errs, fmt.Errorf("ui.colorMode %q must be auto, dark or light", c.UI.ColorMode))
	}
	return errors.Join(errs...)
}

// GetUserConfigDir returns the user configuration directory path
func GetUserConfigDir() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir), nil
}
