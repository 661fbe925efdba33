package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"panelctl/internal/api"
	"panelctl/internal/services"
	"panelctl/pkg/logging"
)

const (
	defaultLogLines = 100
	maxLogLines     = 2000
)

// Panel is the logged-in session the tools act through. *session.Gateway
// satisfies it.
type Panel interface {
	Refresh(ctx context.Context) ([]api.ServiceRecord, error)
	Act(ctx context.Context, unit string, action api.Action) (api.ActionOutcome, error)
	OpenLogs(unit string, tail int) error
	Logs() (*services.LogStream, error)
	CloseLogs()
}

// PanelTools provides MCP tools for the panel's services
type PanelTools struct {
	panel Panel

	// logMu serializes service_logs calls; the session follows one unit.
	logMu sync.Mutex
	// LogSettle is how long the log buffer must stay unchanged before
	// service_logs returns.
	LogSettle time.Duration
	// LogMaxWait bounds a single service_logs call.
	LogMaxWait time.Duration
}

// NewPanelTools creates the tool set around panel
func NewPanelTools(panel Panel) *PanelTools {
	return &PanelTools{
		panel:      panel,
		LogSettle:  300 * time.Millisecond,
		LogMaxWait: 5 * time.Second,
	}
}

// GetTools returns all tool definitions
func (pt *PanelTools) GetTools() []mcp.Tool {
	unitArg := func(verb string) mcp.ToolOption {
		return mcp.WithString("unit",
			mcp.Required(),
			mcp.Description(fmt.Sprintf("Unit name to %s, e.g. nginx.service", verb)),
		)
	}
	return []mcp.Tool{
		mcp.NewTool("service_list",
			mcp.WithDescription("List all units with their current state"),
		),
		mcp.NewTool("service_start",
			mcp.WithDescription("Start a unit"),
			unitArg("start"),
		),
		mcp.NewTool("service_stop",
			mcp.WithDescription("Stop a unit"),
			unitArg("stop"),
		),
		mcp.NewTool("service_restart",
			mcp.WithDescription("Restart a unit"),
			unitArg("restart"),
		),
		mcp.NewTool("service_logs",
			mcp.WithDescription("Return the most recent journal lines of a unit"),
			unitArg("read logs of"),
			mcp.WithNumber("lines",
				mcp.Description(fmt.Sprintf("Number of lines to return (default %d, max %d)", defaultLogLines, maxLogLines)),
			),
		),
	}
}

// ServerTools pairs every tool with its handler
func (pt *PanelTools) ServerTools() []server.ServerTool {
	handlers := map[string]server.ToolHandlerFunc{
		"service_list":    pt.HandleServiceList,
		"service_start":   pt.actionHandler(api.ActionStart),
		"service_stop":    pt.actionHandler(api.ActionStop),
		"service_restart": pt.actionHandler(api.ActionRestart),
		"service_logs":    pt.HandleServiceLogs,
	}

	var out []server.ServerTool
	for _, tool := range pt.GetTools() {
		out = append(out, server.ServerTool{Tool: tool, Handler: handlers[tool.Name]})
	}
	return out
}

// NewServer builds an MCP server exposing the panel tools
func NewServer(panel Panel, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"panelctl",
		version,
		server.WithToolCapabilities(false),
	)
	s.AddTools(NewPanelTools(panel).ServerTools()...)
	return s
}

// ServeStdio serves the panel tools over stdin/stdout until the client
// disconnects.
func ServeStdio(panel Panel, version string) error {
	logging.Info("MCP", "Serving panel tools over stdio")
	return server.ServeStdio(NewServer(panel, version))
}

// HandleServiceList handles the service_list tool call
func (pt *PanelTools) HandleServiceList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := pt.panel.Refresh(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list services: %v", err)), nil
	}

	result := map[string]interface{}{
		"services": list,
		"total":    len(list),
	}
	return jsonResult(result)
}

func (pt *PanelTools) actionHandler(action api.Action) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		unit, err := req.RequireString("unit")
		if err != nil || unit == "" {
			return mcp.NewToolResultError("unit is required"), nil
		}

		outcome, err := pt.panel.Act(ctx, unit, action)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to %s %s: %v", action, unit, err)), nil
		}
		logging.Info("MCP", "%s", outcome.Summary())

		res, err := jsonResult(outcome)
		if err != nil {
			return nil, err
		}
		res.IsError = !outcome.OK
		return res, nil
	}
}

// HandleServiceLogs handles the service_logs tool call
func (pt *PanelTools) HandleServiceLogs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	unit, err := req.RequireString("unit")
	if err != nil || unit == "" {
		return mcp.NewToolResultError("unit is required"), nil
	}
	n := req.GetInt("lines", defaultLogLines)
	if n <= 0 {
		n = defaultLogLines
	}
	if n > maxLogLines {
		n = maxLogLines
	}

	lines, err := pt.collectLogs(ctx, unit, n)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read logs of %s: %v", unit, err)), nil
	}

	return jsonResult(map[string]interface{}{
		"unit":  unit,
		"lines": lines,
		"total": len(lines),
	})
}

// collectLogs follows unit until its buffer stops growing, then returns the
// last n lines.
func (pt *PanelTools) collectLogs(ctx context.Context, unit string, n int) ([]string, error) {
	pt.logMu.Lock()
	defer pt.logMu.Unlock()

	if err := pt.panel.OpenLogs(unit, n); err != nil {
		return nil, err
	}
	defer pt.panel.CloseLogs()

	logs, err := pt.panel.Logs()
	if err != nil {
		return nil, err
	}

	tick := pt.LogSettle / 4
	if tick <= 0 {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	deadline := time.NewTimer(pt.LogMaxWait)
	defer deadline.Stop()

	last, stableSince := -1, time.Now()
wait:
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			break wait
		case <-logs.Done():
			if err := logs.Err(); err != nil && logs.Buffer().Len() == 0 {
				return nil, err
			}
			break wait
		case now := <-ticker.C:
			if l := logs.Buffer().Len(); l != last {
				last, stableSince = l, now
				continue
			}
			if now.Sub(stableSince) >= pt.LogSettle {
				break wait
			}
		}
	}

	lines := logs.Lines()
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
