package api

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ActiveState mirrors systemd's ActiveState property.
type ActiveState string

const (
	StateActive       ActiveState = "active"
	StateInactive     ActiveState = "inactive"
	StateFailed       ActiveState = "failed"
	StateActivating   ActiveState = "activating"
	StateDeactivating ActiveState = "deactivating"
	StateReloading    ActiveState = "reloading"
	StateUnknown      ActiveState = "unknown"
)

// IsTransitional reports whether the unit is between two stable states.
func (s ActiveState) IsTransitional() bool {
	return s == StateActivating || s == StateDeactivating || s == StateReloading
}

// ServiceRecord is one managed unit as reported by the server.
type ServiceRecord struct {
	Unit          string      `json:"unit" yaml:"unit"`
	Description   string      `json:"description" yaml:"description"`
	ActiveState   ActiveState `json:"activeState" yaml:"activeState"`
	SubState      string      `json:"subState" yaml:"subState"`
	LoadState     string      `json:"loadState" yaml:"loadState"`
	UnitFileState string      `json:"unitFileState" yaml:"unitFileState"`
}

// serviceRecordWire accepts both the snake_case keys the panel server emits
// and the camelCase keys ServiceRecord marshals to.
type serviceRecordWire struct {
	Unit        string `json:"unit"`
	Description string `json:"description"`

	ActiveState   string `json:"active_state"`
	SubState      string `json:"sub_state"`
	LoadState     string `json:"load_state"`
	UnitFileState string `json:"unit_file_state"`

	ActiveStateCamel   string `json:"activeState"`
	SubStateCamel      string `json:"subState"`
	LoadStateCamel     string `json:"loadState"`
	UnitFileStateCamel string `json:"unitFileState"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *ServiceRecord) UnmarshalJSON(data []byte) error {
	var w serviceRecordWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Unit == "" {
		return fmt.Errorf("service record without unit name")
	}
	*r = ServiceRecord{
		Unit:          w.Unit,
		Description:   w.Description,
		ActiveState:   ActiveState(firstNonEmpty(w.ActiveState, w.ActiveStateCamel, string(StateUnknown))),
		SubState:      firstNonEmpty(w.SubState, w.SubStateCamel),
		LoadState:     firstNonEmpty(w.LoadState, w.LoadStateCamel),
		UnitFileState: firstNonEmpty(w.UnitFileState, w.UnitFileStateCamel),
	}
	return nil
}

// StatusSnapshot is the payload of the services endpoint and of every
// "status" stream event.
type StatusSnapshot struct {
	Services []ServiceRecord `json:"services"`
}

// LogEvent is the payload of a "log" stream event.
type LogEvent struct {
	Line string `json:"line"`
}

// Action is a lifecycle operation on a unit.
type Action string

const (
	ActionStart   Action = "start"
	ActionStop    Action = "stop"
	ActionRestart Action = "restart"
)

// Actions lists the supported actions in display order.
var Actions = []Action{ActionStart, ActionStop, ActionRestart}

// ParseAction validates a user-supplied action name.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Actions {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q (want start, stop or restart)", ErrInvalidAction, s)
}

// ActionOutcome is the server's answer to an action request. OK is false
// when systemctl exited non-zero or when the server refused the request; in
// the latter case Error carries the server's reason.
type ActionOutcome struct {
	Unit   string `json:"unit,omitempty" yaml:"unit,omitempty"`
	Action Action `json:"action,omitempty" yaml:"action,omitempty"`
	OK     bool   `json:"ok" yaml:"ok"`
	Code   int    `json:"code" yaml:"code"`
	Stdout string `json:"stdout" yaml:"stdout"`
	Stderr string `json:"stderr" yaml:"stderr"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Summary renders the outcome as a single line.
func (o ActionOutcome) Summary() string {
	if o.OK {
		return fmt.Sprintf("%s %s: ok", o.Action, o.Unit)
	}
	reason := firstNonEmpty(o.Error, strings.TrimSpace(o.Stderr), fmt.Sprintf("exit code %d", o.Code))
	return fmt.Sprintf("%s %s failed: %s", o.Action, o.Unit, reason)
}

type challengeResponse struct {
	Nonce string `json:"nonce"`
}

type loginRequest struct {
	Nonce string `json:"nonce"`
	HMAC  string `json:"hmac"`
}

type okResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Endpoints holds the server paths panelctl talks to.
type Endpoints struct {
	Challenge    string `yaml:"challenge"`
	Login        string `yaml:"login"`
	Logout       string `yaml:"logout"`
	Services     string `yaml:"services"`
	Action       string `yaml:"action"`
	StatusStream string `yaml:"statusStream"`
	Logs         string `yaml:"logs"`
	LogsSocket   string `yaml:"logsSocket"`
}

// DefaultEndpoints returns the paths served by the panel server.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Challenge:    "/api/auth/challenge",
		Login:        "/api/auth/login",
		Logout:       "/api/auth/logout",
		Services:     "/api/services",
		Action:       "/api/service",
		StatusStream: "/api/status/stream",
		Logs:         "/api/logs",
		LogsSocket:   "/ws/logs",
	}
}

// WithDefaults fills empty paths from DefaultEndpoints.
func (e Endpoints) WithDefaults() Endpoints {
	d := DefaultEndpoints()
	e.Challenge = firstNonEmpty(e.Challenge, d.Challenge)
	e.Login = firstNonEmpty(e.Login, d.Login)
	e.Logout = firstNonEmpty(e.Logout, d.Logout)
	e.Services = firstNonEmpty(e.Services, d.Services)
	e.Action = firstNonEmpty(e.Action, d.Action)
	e.StatusStream = firstNonEmpty(e.StatusStream, d.StatusStream)
	e.Logs = firstNonEmpty(e.Logs, d.Logs)
	e.LogsSocket = firstNonEmpty(e.LogsSocket, d.LogsSocket)
	return e
}
