package mockpanel

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"panelctl/internal/api"
)

// Scenario describes the units a mock panel serves. It is loaded from YAML
// so the same server can back package tests and manual runs of the CLI.
type Scenario struct {
	// Secret is the login secret the server accepts.
	Secret string `yaml:"secret"`
	// StatusInterval makes the status stream re-send the full list on a
	// timer, like the real server. Zero sends only on changes.
	StatusInterval time.Duration `yaml:"statusInterval"`
	// NonceTTL bounds how long an issued challenge is valid.
	NonceTTL time.Duration `yaml:"nonceTTL"`
	Services []ServiceDefinition `yaml:"services"`
}

// ServiceDefinition is one unit of a scenario.
type ServiceDefinition struct {
	Unit          string   `yaml:"unit"`
	Description   string   `yaml:"description"`
	ActiveState   string   `yaml:"activeState"`
	SubState      string   `yaml:"subState"`
	LoadState     string   `yaml:"loadState"`
	UnitFileState string   `yaml:"unitFileState"`
	Logs          []string `yaml:"logs"`
	// FailActions makes every action on this unit exit non-zero.
	FailActions bool   `yaml:"failActions"`
	Stderr      string `yaml:"stderr"`
}

// Record converts the definition into the wire representation.
func (d ServiceDefinition) Record() api.ServiceRecord {
	r := api.ServiceRecord{
		Unit:          d.Unit,
		Description:   d.Description,
		ActiveState:   api.ActiveState(d.ActiveState),
		SubState:      d.SubState,
		LoadState:     d.LoadState,
		UnitFileState: d.UnitFileState,
	}
	if r.ActiveState == "" {
		r.ActiveState = api.StateInactive
	}
	if r.SubState == "" {
		r.SubState = "dead"
	}
	if r.LoadState == "" {
		r.LoadState = "loaded"
	}
	if r.UnitFileState == "" {
		r.UnitFileState = "enabled"
	}
	return r
}

// LoadScenario reads a scenario from a YAML file.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("failed to read scenario %s: %w", path, err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return Scenario{}, fmt.Errorf("failed to parse scenario %s: %w", path, err)
	}
	if sc.Secret == "" {
		return Scenario{}, fmt.Errorf("scenario %s: secret is required", path)
	}
	for i, svc := range sc.Services {
		if svc.Unit == "" {
			return Scenario{}, fmt.Errorf("scenario %s: service %d has no unit", path, i)
		}
	}
	return sc, nil
}

// DemoScenario is served when no scenario file is given.
func DemoScenario(secret string) Scenario {
	return Scenario{
		Secret:         secret,
		StatusInterval: 1500 * time.Millisecond,
		Services: []ServiceDefinition{
			{Unit: "nginx.service", Description: "A high performance web server", ActiveState: "active", SubState: "running",
				Logs: []string{"Starting nginx...", "Started A high performance web server."}},
			{Unit: "postgresql.service", Description: "PostgreSQL RDBMS", ActiveState: "active", SubState: "exited",
				Logs: []string{"database system is ready to accept connections"}},
			{Unit: "worker.service", Description: "Background worker", ActiveState: "failed", SubState: "failed",
				FailActions: true, Stderr: "Job for worker.service failed because the control process exited with error code.",
				Logs: []string{"worker: connecting to queue", "worker: fatal: queue unreachable"}},
		},
	}
}
