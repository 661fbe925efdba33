package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panelctl/internal/api"
	"panelctl/internal/reporting"
	"panelctl/internal/session"
	"panelctl/internal/stream"
	"panelctl/internal/testing/mockpanel"
)

const secret = "s3cr3t"

func setup(t *testing.T) (*mockpanel.Server, *PanelTools) {
	t.Helper()
	sc := mockpanel.DemoScenario(secret)
	sc.StatusInterval = 0
	srv, err := mockpanel.FromScenario(sc)
	require.NoError(t, err)
	url := srv.Start()
	t.Cleanup(srv.Close)

	c, err := api.NewClient(api.Options{BaseURL: url, Timeout: 2 * time.Second})
	require.NoError(t, err)
	g := session.NewGateway(c, reporting.NopReporter{}, session.Options{
		LoginTimeout: 2 * time.Second,
		Stream: stream.Options{
			InitialInterval: 10 * time.Millisecond,
			MaxInterval:     50 * time.Millisecond,
			MaxElapsedTime:  300 * time.Millisecond,
			Buffer:          16,
		},
	})
	require.NoError(t, g.Login(context.Background(), []byte(secret)))
	t.Cleanup(func() { g.Close(context.Background()) })

	pt := NewPanelTools(g)
	pt.LogSettle = 50 * time.Millisecond
	pt.LogMaxWait = 2 * time.Second
	return srv, pt
}

func call(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "want text content, got %T", res.Content[0])
	return tc.Text
}

func TestGetTools(t *testing.T) {
	pt := NewPanelTools(nil)

	names := make(map[string]bool)
	for _, tool := range pt.GetTools() {
		names[tool.Name] = true
	}
	for _, want := range []string{"service_list", "service_start", "service_stop", "service_restart", "service_logs"} {
		assert.True(t, names[want], want)
	}

	for _, st := range pt.ServerTools() {
		assert.NotNil(t, st.Handler, st.Tool.Name)
	}
}

func TestHandleServiceList(t *testing.T) {
	_, pt := setup(t)

	res, err := pt.HandleServiceList(context.Background(), call(nil))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var out struct {
		Services []api.ServiceRecord `json:"services"`
		Total    int                 `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	assert.Equal(t, 3, out.Total)
	assert.Equal(t, "nginx.service", out.Services[0].Unit)
}

func TestActionTools(t *testing.T) {
	tests := []struct {
		name    string
		action  api.Action
		unit    string
		wantErr bool
	}{
		{name: "start", action: api.ActionStart, unit: "nginx.service"},
		{name: "stop", action: api.ActionStop, unit: "postgresql.service"},
		{name: "restart failing unit", action: api.ActionRestart, unit: "worker.service", wantErr: true},
		{name: "unknown unit", action: api.ActionStart, unit: "ghost.service", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, pt := setup(t)

			res, err := pt.actionHandler(tt.action)(context.Background(), call(map[string]interface{}{"unit": tt.unit}))
			require.NoError(t, err)
			assert.Equal(t, tt.wantErr, res.IsError)

			calls := srv.Actions()
			require.Len(t, calls, 1)
			assert.Equal(t, tt.unit, calls[0].Unit)
			assert.Equal(t, string(tt.action), calls[0].Action)
		})
	}
}

func TestActionTools_MissingUnit(t *testing.T) {
	srv, pt := setup(t)

	res, err := pt.actionHandler(api.ActionStart)(context.Background(), call(map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Empty(t, srv.Actions())
}

func TestHandleServiceLogs(t *testing.T) {
	_, pt := setup(t)

	res, err := pt.HandleServiceLogs(context.Background(), call(map[string]interface{}{
		"unit":  "worker.service",
		"lines": 1,
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, text(t, res))

	var out struct {
		Unit  string   `json:"unit"`
		Lines []string `json:"lines"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	assert.Equal(t, "worker.service", out.Unit)
	assert.Equal(t, []string{"worker: fatal: queue unreachable"}, out.Lines)
}

func TestHandleServiceLogs_UnknownUnit(t *testing.T) {
	_, pt := setup(t)

	res, err := pt.HandleServiceLogs(context.Background(), call(map[string]interface{}{"unit": "ghost.service"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
