// Package mockpanel provides an in-process panel server for tests and local
// development.
//
// The server implements the whole protocol panelctl speaks: it issues
// single-use challenges that expire after two minutes, verifies login proofs
// in constant time, keeps cookie sessions, executes lifecycle actions against
// an in-memory unit list and streams status snapshots and journal lines over
// SSE and over the legacy WebSocket.
//
// Tests drive it through the Push*, Set* and Drop* methods and observe it
// through the counters (Challenges, Logins, StatusStreams, LogStreams...).
//
//	srv := mockpanel.New("s3cr3t")
//	url := srv.Start()
//	defer srv.Close()
//
// Scenarios can also be loaded from YAML, which is what
// `panelctl dev mock-server` serves:
//
//	secret: s3cr3t
//	statusInterval: 1500ms
//	services:
//	  - unit: nginx.service
//	    activeState: active
//	    subState: running
//	    logs: ["Started nginx."]
package mockpanel
