package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panelctl/internal/api"
	"panelctl/internal/reporting"
	"panelctl/internal/services"
	"panelctl/internal/session"
	"panelctl/internal/testing/mockpanel"
)

const secret = "s3cr3t"

func withEnv(t *testing.T, env map[string]string) {
	t.Helper()
	original := osLookupEnv
	t.Cleanup(func() { osLookupEnv = original })
	osLookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func withTerminal(t *testing.T, tty bool, input string) {
	t.Helper()
	origTTY, origRead, origFD := isTerminal, readPassword, terminalInput
	t.Cleanup(func() { isTerminal, readPassword, terminalInput = origTTY, origRead, origFD })
	terminalInput = func() int { return 0 }
	isTerminal = func(int) bool { return tty }
	readPassword = func(int) ([]byte, error) { return []byte(input), nil }
}

func TestReadSecret(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "secret")
	require.NoError(t, os.WriteFile(file, []byte("from-file\n"), 0o600))
	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o600))

	tests := []struct {
		name    string
		file    string
		stdin   string
		env     map[string]string
		tty     bool
		typed   string
		want    string
		wantErr bool
	}{
		{name: "file wins over env", file: file, env: map[string]string{SecretEnvVar: "env"}, want: "from-file"},
		{name: "stdin", file: "-", stdin: "piped\r\n", want: "piped"},
		{name: "empty stdin", file: "-", stdin: "", wantErr: true},
		{name: "empty file", file: empty, wantErr: true},
		{name: "missing file", file: filepath.Join(dir, "nope"), wantErr: true},
		{name: "env", env: map[string]string{SecretEnvVar: "env"}, want: "env"},
		{name: "prompt", tty: true, typed: "typed", want: "typed"},
		{name: "no source", tty: false, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withEnv(t, tt.env)
			withTerminal(t, tt.tty, tt.typed)
			var stderr bytes.Buffer
			cfg := &Config{SecretFile: tt.file, Stdin: strings.NewReader(tt.stdin), Stderr: &stderr}

			got, err := ReadSecret(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestReadSecret_NoSourceError(t *testing.T) {
	withEnv(t, nil)
	withTerminal(t, false, "")
	_, err := ReadSecret(&Config{})
	assert.ErrorIs(t, err, ErrNoSecret)
}

func newApp(t *testing.T, srv *mockpanel.Server, url string, reporter reporting.Reporter) *Application {
	t.Helper()
	withEnv(t, map[string]string{SecretEnvVar: secret})
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  url: `+url+`
  timeout: 2s
stream:
  reconnectInitial: 10ms
  reconnectMax: 50ms
  reconnectMaxElapsed: 300ms
`), 0o600))

	cfg := NewConfig(path, "", "", false, "1.2.3")
	cfg.Stderr = &bytes.Buffer{}
	a, err := NewApplication(cfg, reporter)
	require.NoError(t, err)
	return a
}

func startServer(t *testing.T) (*mockpanel.Server, string) {
	t.Helper()
	sc := mockpanel.DemoScenario(secret)
	sc.StatusInterval = 0
	srv, err := mockpanel.FromScenario(sc)
	require.NoError(t, err)
	url := srv.Start()
	t.Cleanup(srv.Close)
	return srv, url
}

func TestNewApplication_ServerFlagOverrides(t *testing.T) {
	_, url := startServer(t)
	withEnv(t, nil)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  url: http://elsewhere.invalid\n"), 0o600))

	cfg := NewConfig(path, url, "", false, "")
	cfg.Stderr = &bytes.Buffer{}
	a, err := NewApplication(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, url, a.Config().Panel.Server.URL)
	assert.Equal(t, url, a.Services().Client.BaseURL())
}

func TestNewApplication_InvalidConfig(t *testing.T) {
	withEnv(t, nil)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logs:\n  transport: pigeon\n"), 0o600))

	cfg := NewConfig(path, "", "", false, "")
	cfg.Stderr = &bytes.Buffer{}
	_, err := NewApplication(cfg, nil)
	assert.ErrorContains(t, err, "server.url")
	assert.ErrorContains(t, err, "logs.transport")
}

func TestRunOnce(t *testing.T) {
	srv, url := startServer(t)
	a := newApp(t, srv, url, nil)

	var outcome api.ActionOutcome
	err := RunOnce(context.Background(), a, func(ctx context.Context, g *session.Gateway) error {
		var err error
		outcome, err = g.Act(ctx, "nginx.service", api.ActionRestart)
		return err
	})
	require.NoError(t, err)
	assert.True(t, outcome.OK)
	assert.Equal(t, session.LoggedOut, a.Services().Gateway.State())
	assert.Equal(t, 1, srv.Logouts())
}

func TestRunOnce_FetchesListOnce(t *testing.T) {
	srv, url := startServer(t)
	a := newApp(t, srv, url, nil)

	var count int
	err := RunOnce(context.Background(), a, func(ctx context.Context, g *session.Gateway) error {
		status, err := g.Status()
		require.NoError(t, err)
		assert.Equal(t, services.StreamClosed, status.State())
		assert.Zero(t, srv.StatusStreams())

		list, err := g.Refresh(ctx)
		count = len(list)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 1, srv.ServiceListRequests())
}

func TestRunOnce_WrongSecret(t *testing.T) {
	srv, url := startServer(t)
	a := newApp(t, srv, url, nil)
	withEnv(t, map[string]string{SecretEnvVar: "wrong"})

	called := false
	err := RunOnce(context.Background(), a, func(context.Context, *session.Gateway) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, api.ErrCredentialRejected)
	assert.False(t, called)
}

func TestRunWatch(t *testing.T) {
	srv, url := startServer(t)
	rec := reporting.NewRecorder()
	a := newApp(t, srv, url, rec)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- RunWatch(ctx, a) }()

	assert.Eventually(t, func() bool { return srv.StatusStreams() == 1 }, 2*time.Second, 10*time.Millisecond)
	srv.PushStatus()
	assert.Eventually(t, func() bool { return rec.Snapshots() >= 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("RunWatch did not return after cancel")
	}
	assert.Equal(t, 1, srv.Logouts())
}

func TestRunWatch_SessionExpires(t *testing.T) {
	srv, url := startServer(t)
	a := newApp(t, srv, url, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- RunWatch(context.Background(), a) }()
	assert.Eventually(t, func() bool { return srv.StatusStreams() == 1 }, 2*time.Second, 10*time.Millisecond)

	srv.ExpireSessions()
	srv.DropStreams()

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, ErrSessionEnded), "got %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("RunWatch did not return after session expiry")
	}
}

func TestRunLogs(t *testing.T) {
	srv, url := startServer(t)
	rec := reporting.NewRecorder()
	a := newApp(t, srv, url, rec)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- RunLogs(ctx, a, "nginx.service", 1) }()

	assert.Eventually(t, func() bool { return srv.LogStreams("nginx.service") == 1 }, 2*time.Second, 10*time.Millisecond)
	srv.PushLog("nginx.service", "GET / 200")
	assert.Eventually(t, func() bool {
		texts := rec.LogTexts()
		return len(texts) == 2 && texts[1] == "GET / 200"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)
}

func TestRunLogs_UnknownUnit(t *testing.T) {
	srv, url := startServer(t)
	a := newApp(t, srv, url, nil)

	err := RunLogs(context.Background(), a, "ghost.service", 0)
	require.Error(t, err)
	assert.ErrorContains(t, err, "ghost.service")
}
