// Package config provides configuration management for panelctl.
//
// Configuration is layered. Later sources override earlier ones field by
// field; a field left empty in a file keeps the value from below.
//
//  1. Default configuration (built in)
//  2. User configuration (~/.config/panelctl/config.yaml)
//  3. Project configuration (./.panelctl/config.yaml)
//  4. PANELCTL_SERVER, overriding server.url
//
// A file given with --config replaces layers 2 and 3.
//
// # Configuration Structure
//
//	server:
//	  url: https://panel.example.com
//	  timeout: 10s
//	  secretFile: ${HOME}/.panelctl-secret
//	endpoints:
//	  challenge: /api/auth/challenge
//	  statusStream: /api/status/stream
//	logs:
//	  transport: sse        # or websocket
//	  tailLines: 200
//	  bufferLines: 5000
//	stream:
//	  reconnectInitial: 500ms
//	  reconnectMax: 30s
//	  reconnectMaxElapsed: 5m  # log stream only; 0 retries until closed
//	logging:
//	  level: info
//	ui:
//	  colorMode: auto
//
// String values may reference the environment as ${VAR} or ${VAR:-default}.
//
// The secret itself is never read from configuration; only the path of a
// file holding it.
package config
