// Package tools exposes the panel's service operations as MCP tools, so an
// MCP client can list units, run lifecycle actions and read journal lines
// through a logged-in panelctl session.
//
// Tools:
//
//   - service_list: every unit with its state
//   - service_start, service_stop, service_restart: lifecycle actions on "unit"
//   - service_logs: the last "lines" journal lines of "unit"
//
// All tools return JSON text content. Failures are reported as tool errors
// rather than protocol errors.
//
// Example call:
//
//	{
//	  "method": "tools/call",
//	  "params": {
//	    "name": "service_restart",
//	    "arguments": {"unit": "nginx.service"}
//	  }
//	}
//
// Response:
//
//	{
//	  "unit": "nginx.service",
//	  "action": "restart",
//	  "ok": true,
//	  "code": 0,
//	  "stdout": "",
//	  "stderr": ""
//	}
package tools
