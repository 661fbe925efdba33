package controller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panelctl/internal/api"
	"panelctl/internal/reporting"
	"panelctl/internal/tui/model"
	"panelctl/internal/tui/view"
)

// fakeGateway records what the UI asked for.
type fakeGateway struct {
	mu        sync.Mutex
	loginErr  error
	secrets   []string
	actions   []string
	opened    []string
	closed    int
	logouts   int
	refreshes int
	outcome   api.ActionOutcome
}

func (f *fakeGateway) Login(_ context.Context, secret []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secrets = append(f.secrets, string(secret))
	return f.loginErr
}

func (f *fakeGateway) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	return nil
}

func (f *fakeGateway) State() reporting.SessionState { return reporting.SessionLoggedIn }

func (f *fakeGateway) Act(_ context.Context, unit string, action api.Action) (api.ActionOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, string(action)+" "+unit)
	out := f.outcome
	out.Unit, out.Action = unit, action
	return out, nil
}

func (f *fakeGateway) Refresh(context.Context) ([]api.ServiceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return testServices(), nil
}

func (f *fakeGateway) OpenLogs(unit string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, unit)
	return nil
}

func (f *fakeGateway) CloseLogs() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
}

func testServices() []api.ServiceRecord {
	return []api.ServiceRecord{
		{Unit: "nginx.service", ActiveState: api.StateActive, SubState: "running", Description: "web"},
		{Unit: "postgres.service", ActiveState: api.StateInactive, SubState: "dead", Description: "db"},
		{Unit: "worker.service", ActiveState: api.StateFailed, SubState: "failed", Description: "jobs"},
	}
}

func newTestModel(g *fakeGateway) *model.Model {
	m := model.InitializeModel(model.TUIConfig{
		ServerURL: "http://panel.local",
		Gateway:   g,
		TailLines: 50,
	})
	m.Width, m.Height = 120, 40
	return m
}

func loggedIn(t *testing.T, g *fakeGateway) *model.Model {
	t.Helper()
	m := newTestModel(g)
	m, _ = Update(model.LoginResultMsg{}, m)
	m, _ = Update(reporting.ServicesMsg{Services: testServices(), At: time.Now()}, m)
	require.Equal(t, model.ModeDashboard, m.CurrentAppMode)
	return m
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestLogin_SubmitsSecret(t *testing.T) {
	g := &fakeGateway{}
	m := newTestModel(g)

	for _, r := range "hunter2" {
		m, _ = Update(keyRunes(string(r)), m)
	}
	m, cmd := Update(tea.KeyMsg{Type: tea.KeyEnter}, m)
	require.NotNil(t, cmd)
	assert.Equal(t, reporting.SessionAuthenticating, m.SessionState)
	assert.Empty(t, m.SecretInput.Value())

	result := cmd()
	assert.Equal(t, model.LoginResultMsg{}, result)
	assert.Equal(t, []string{"hunter2"}, g.secrets)

	m, _ = Update(result, m)
	assert.Equal(t, model.ModeDashboard, m.CurrentAppMode)
	assert.Equal(t, reporting.SessionLoggedIn, m.SessionState)
}

func TestLogin_EmptySecret(t *testing.T) {
	g := &fakeGateway{}
	m := newTestModel(g)

	m, cmd := Update(tea.KeyMsg{Type: tea.KeyEnter}, m)
	assert.Nil(t, cmd)
	assert.NotEmpty(t, m.LoginError)
	assert.Empty(t, g.secrets)
}

func TestLogin_Failure(t *testing.T) {
	g := &fakeGateway{}
	m := newTestModel(g)

	m, _ = Update(model.LoginResultMsg{Err: errors.New("unauthorized")}, m)
	assert.Equal(t, model.ModeLogin, m.CurrentAppMode)
	assert.Equal(t, reporting.SessionLoggedOut, m.SessionState)
	assert.Contains(t, m.LoginError, "unauthorized")
	assert.Contains(t, view.Render(m), "unauthorized")
}

func TestLogin_PendingSecretSubmittedOnInit(t *testing.T) {
	g := &fakeGateway{}
	m := model.InitializeModel(model.TUIConfig{Gateway: g, Secret: []byte("from-env")})

	cmd := initCmds(m)
	require.NotNil(t, cmd)
	assert.Equal(t, reporting.SessionAuthenticating, m.SessionState)
	assert.Nil(t, m.PendingSecret)
}

func TestServices_KeepSelectionAcrossSnapshots(t *testing.T) {
	g := &fakeGateway{}
	m := loggedIn(t, g)

	m, _ = Update(keyRunes("j"), m)
	m, _ = Update(keyRunes("j"), m)
	require.Equal(t, "worker.service", m.Services[m.SelectedIndex].Unit)

	reordered := []api.ServiceRecord{testServices()[2], testServices()[0]}
	m, _ = Update(reporting.ServicesMsg{Services: reordered, At: time.Now()}, m)
	assert.Equal(t, 0, m.SelectedIndex)

	m, _ = Update(reporting.ServicesMsg{Services: testServices()[:1], At: time.Now()}, m)
	assert.Equal(t, 0, m.SelectedIndex)

	m, _ = Update(reporting.ServicesMsg{At: time.Now()}, m)
	assert.Equal(t, 0, m.SelectedIndex)
	_, ok := m.SelectedService()
	assert.False(t, ok)
}

func TestSelection_Bounds(t *testing.T) {
	g := &fakeGateway{}
	m := loggedIn(t, g)

	m, _ = Update(keyRunes("k"), m)
	assert.Equal(t, 0, m.SelectedIndex)
	for i := 0; i < 10; i++ {
		m, _ = Update(keyRunes("j"), m)
	}
	assert.Equal(t, 2, m.SelectedIndex)
}

func TestActions(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"s", "start nginx.service"},
		{"x", "stop nginx.service"},
		{"r", "restart nginx.service"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			g := &fakeGateway{outcome: api.ActionOutcome{OK: true}}
			m := loggedIn(t, g)

			m, cmd := Update(keyRunes(tt.key), m)
			require.NotNil(t, cmd)
			assert.Contains(t, m.Pending, "nginx.service")

			// A second press while the first is in flight is refused.
			m, _ = Update(keyRunes(tt.key), m)

			result := model.ActionCmd(g, "nginx.service", m.Pending["nginx.service"])()
			assert.Equal(t, []string{tt.want}, g.actions)

			m, _ = Update(result, m)
			assert.NotContains(t, m.Pending, "nginx.service")
			assert.Equal(t, model.StatusBarSuccess, m.StatusBarMessageType)
		})
	}
}

func TestActionFailure_ShowsError(t *testing.T) {
	g := &fakeGateway{}
	m := loggedIn(t, g)
	m.Pending["nginx.service"] = api.ActionStart

	m, _ = Update(model.ActionResultMsg{Outcome: api.ActionOutcome{
		Unit: "nginx.service", Action: api.ActionStart, OK: false, Stderr: "boom",
	}}, m)
	assert.Equal(t, model.StatusBarError, m.StatusBarMessageType)
	assert.Empty(t, m.Pending)
}

func TestLogs_FollowAndGenerationFilter(t *testing.T) {
	g := &fakeGateway{}
	m := loggedIn(t, g)

	m, cmd := Update(tea.KeyMsg{Type: tea.KeyEnter}, m)
	require.NotNil(t, cmd)
	_ = cmd()
	assert.Equal(t, []string{"nginx.service"}, g.opened)
	assert.Equal(t, "nginx.service", m.LogUnit)

	m, _ = Update(reporting.LogResetMsg{Unit: "nginx.service", Generation: 2}, m)
	m, _ = Update(reporting.LogLineMsg{Line: reporting.LogLine{Unit: "nginx.service", Text: "stale", Generation: 1}}, m)
	m, _ = Update(reporting.LogLineMsg{Line: reporting.LogLine{Unit: "nginx.service", Text: "fresh", Generation: 2}}, m)
	assert.Equal(t, []string{"fresh"}, m.LogLines)
	assert.Contains(t, view.Render(m), "Logs: nginx.service")

	m, cmd = Update(tea.KeyMsg{Type: tea.KeyEsc}, m)
	assert.Empty(t, m.LogUnit)
	assert.Empty(t, m.LogLines)
	assert.Zero(t, g.closed, "closing must not run inside Update")
	require.NotNil(t, cmd)
	assert.Nil(t, cmd())
	assert.Equal(t, 1, g.closed)

	// Lines still in flight from the closed stream are ignored.
	m, _ = Update(reporting.LogLineMsg{Line: reporting.LogLine{Unit: "nginx.service", Text: "late", Generation: 2}}, m)
	assert.Empty(t, m.LogLines)
}

func TestLogs_NewSnapshotKeepsLogPane(t *testing.T) {
	g := &fakeGateway{}
	m := loggedIn(t, g)

	m, _ = Update(reporting.LogResetMsg{Unit: "nginx.service", Generation: 1}, m)
	m, _ = Update(reporting.LogLineMsg{Line: reporting.LogLine{Unit: "nginx.service", Text: "a", Generation: 1}}, m)
	m, _ = Update(reporting.ServicesMsg{Services: testServices(), At: time.Now()}, m)
	assert.Equal(t, []string{"a"}, m.LogLines)
}

func TestCopyLogs(t *testing.T) {
	g := &fakeGateway{}
	m := loggedIn(t, g)
	var copied string
	m.Clipboard = func(s string) error { copied = s; return nil }

	m, _ = Update(keyRunes("y"), m)
	assert.Equal(t, model.StatusBarWarning, m.StatusBarMessageType)

	m, _ = Update(reporting.LogResetMsg{Unit: "nginx.service", Generation: 1}, m)
	for _, text := range []string{"one", "two"} {
		m, _ = Update(reporting.LogLineMsg{Line: reporting.LogLine{Unit: "nginx.service", Text: text, Generation: 1}}, m)
	}
	m, _ = Update(keyRunes("y"), m)
	assert.Equal(t, "one\ntwo", copied)
	assert.Equal(t, model.StatusBarSuccess, m.StatusBarMessageType)
}

func TestSessionExpiry_ReturnsToLogin(t *testing.T) {
	g := &fakeGateway{}
	m := loggedIn(t, g)
	m, _ = Update(reporting.LogResetMsg{Unit: "nginx.service", Generation: 1}, m)

	m, _ = Update(reporting.SessionMsg{State: reporting.SessionLoggedOut, Err: errors.New("session expired")}, m)
	assert.Equal(t, model.ModeLogin, m.CurrentAppMode)
	assert.Empty(t, m.Services)
	assert.Empty(t, m.LogUnit)
	assert.Contains(t, m.LoginError, "session expired")
	assert.Equal(t, model.StatusBarWarning, m.StatusBarMessageType)
}

func TestLogout(t *testing.T) {
	g := &fakeGateway{}
	m := loggedIn(t, g)

	m, cmd := Update(keyRunes("L"), m)
	require.NotNil(t, cmd)
	m, _ = Update(cmd(), m)
	assert.Equal(t, 1, g.logouts)
	assert.Equal(t, model.ModeLogin, m.CurrentAppMode)
	assert.Empty(t, m.Services)
}

func TestRefresh(t *testing.T) {
	g := &fakeGateway{}
	m := loggedIn(t, g)

	m, cmd := Update(keyRunes("R"), m)
	require.NotNil(t, cmd)
	m, _ = Update(cmd(), m)
	assert.Equal(t, 1, g.refreshes)
	assert.Contains(t, m.StatusBarMessage, "3 services")
}

func TestHelpOverlay(t *testing.T) {
	g := &fakeGateway{}
	m := loggedIn(t, g)

	m, _ = Update(keyRunes("?"), m)
	assert.Equal(t, model.ModeHelpOverlay, m.CurrentAppMode)
	assert.Contains(t, view.Render(m), "Keyboard shortcuts")

	m, _ = Update(tea.KeyMsg{Type: tea.KeyEsc}, m)
	assert.Equal(t, model.ModeDashboard, m.CurrentAppMode)
}

func TestStatusBar_ClearsOnlyLatest(t *testing.T) {
	g := &fakeGateway{}
	m := loggedIn(t, g)

	m.SetStatusMessage("first", model.StatusBarInfo, time.Second)
	m.SetStatusMessage("second", model.StatusBarInfo, time.Second)

	m, _ = Update(model.ClearStatusBarMsg{Seq: m.StatusBarSeq - 1}, m)
	assert.Equal(t, "second", m.StatusBarMessage)
	m, _ = Update(model.ClearStatusBarMsg{Seq: m.StatusBarSeq}, m)
	assert.Empty(t, m.StatusBarMessage)
}

func TestQuit(t *testing.T) {
	g := &fakeGateway{}
	m := loggedIn(t, g)

	m, cmd := Update(keyRunes("q"), m)
	require.NotNil(t, cmd)
	assert.Equal(t, model.ModeQuitting, m.CurrentAppMode)
}

func TestDashboardRender(t *testing.T) {
	g := &fakeGateway{}
	m := loggedIn(t, g)

	out := view.Render(m)
	for _, s := range []string{"nginx.service", "postgres.service", "worker.service", "logged in", "updated"} {
		assert.True(t, strings.Contains(out, s), "missing %q", s)
	}
}
