package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/net/publicsuffix"

	"panelctl/pkg/logging"
)

const (
	subsystem = "Transport"

	// DefaultTimeout bounds every one-shot request. Streams are bounded by
	// their context only.
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent is sent when Options.UserAgent is empty.
	DefaultUserAgent = "panelctl"

	maxBodyBytes = 4 << 20
)

// Options configures a Client.
type Options struct {
	// BaseURL is the panel server root, e.g. https://panel.example.org.
	BaseURL string
	// Endpoints overrides server paths; empty fields use DefaultEndpoints.
	Endpoints Endpoints
	// Timeout bounds each one-shot request. Zero means DefaultTimeout.
	Timeout time.Duration
	// UserAgent is sent on every request.
	UserAgent string
	// HTTPClient replaces the pooled client. Its Jar and Timeout are
	// overwritten.
	HTTPClient *http.Client
}

// Client performs requests against one panel server and owns the session
// cookie for it. It is safe for concurrent use.
type Client struct {
	base      *url.URL
	endpoints Endpoints
	timeout   time.Duration
	userAgent string
	http      *http.Client
	jar       *sessionJar
}

// NewClient validates opts and creates a Client with an empty session.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("api: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: parsing base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api: base URL %q must use http or https", opts.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("api: base URL %q has no host", opts.BaseURL)
	}

	jar, err := newSessionJar()
	if err != nil {
		return nil, err
	}

	var hc *http.Client
	if opts.HTTPClient != nil {
		copied := *opts.HTTPClient
		hc = &copied
	} else {
		hc = cleanhttp.DefaultPooledClient()
	}
	hc.Jar = jar
	// Streams are long-lived; one-shot calls get a context deadline instead.
	hc.Timeout = 0

	c := &Client{
		base:      base,
		endpoints: opts.Endpoints.WithDefaults(),
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
		http:      hc,
		jar:       jar,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	return c, nil
}

// BaseURL returns the server root the client talks to.
func (c *Client) BaseURL() string { return c.base.String() }

// Endpoints returns the resolved server paths.
func (c *Client) Endpoints() Endpoints { return c.endpoints }

// HasSession reports whether a session cookie is currently held.
func (c *Client) HasSession() bool {
	return len(c.jar.Cookies(c.base)) > 0
}

// ResetSession drops every cookie, including the session credential.
func (c *Client) ResetSession() {
	c.jar.reset()
}

// Challenge fetches a fresh single-use nonce.
func (c *Client) Challenge(ctx context.Context) (string, error) {
	var out challengeResponse
	if err := c.doJSON(ctx, http.MethodGet, c.endpoints.Challenge, nil, &out); err != nil {
		return "", err
	}
	if out.Nonce == "" {
		return "", &MalformedPayloadError{Source: "challenge", Err: errors.New("empty nonce")}
	}
	return out.Nonce, nil
}

// Login submits a nonce and its proof. A refused proof yields
// ErrCredentialRejected; any other failure is a *TransportError.
func (c *Client) Login(ctx context.Context, nonce, proof string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	body, err := json.Marshal(loginRequest{Nonce: nonce, HMAC: proof})
	if err != nil {
		return err
	}
	resp, err := c.send(ctx, http.MethodPost, c.endpoints.Login, nil, body)
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrCredentialRejected
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(http.MethodPost, resp)
	}
	var out okResponse
	if err := decode(resp.Body, "login", &out); err != nil {
		return err
	}
	if !out.OK {
		return ErrCredentialRejected
	}
	return nil
}

// Logout asks the server to revoke the current session. It does not touch
// the local cookie jar; callers use ResetSession for that.
func (c *Client) Logout(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.send(ctx, http.MethodPost, c.endpoints.Logout, nil, nil)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(http.MethodPost, resp)
	}
	return nil
}

// Services returns the current service list in server order.
func (c *Client) Services(ctx context.Context) ([]ServiceRecord, error) {
	var out StatusSnapshot
	if err := c.doJSON(ctx, http.MethodGet, c.endpoints.Services, nil, &out); err != nil {
		return nil, err
	}
	if out.Services == nil {
		out.Services = []ServiceRecord{}
	}
	return out.Services, nil
}

// ServiceAction asks the server to start, stop or restart unit. Refusals
// for a bad unit or action (400, 404) come back as a non-OK outcome; a 401,
// a 5xx or a network failure is a *TransportError.
func (c *Client) ServiceAction(ctx context.Context, unit string, action Action) (ActionOutcome, error) {
	outcome := ActionOutcome{Unit: unit, Action: action}
	if strings.TrimSpace(unit) == "" || strings.Contains(unit, "/") {
		return outcome, fmt.Errorf("%w: %q", ErrInvalidUnit, unit)
	}
	if _, err := ParseAction(string(action)); err != nil {
		return outcome, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.send(ctx, http.MethodPost, c.endpoints.Action, nil, nil, url.PathEscape(unit), string(action))
	if err != nil {
		return outcome, err
	}
	defer drain(resp)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		if err := decode(resp.Body, "action", &outcome); err != nil {
			return outcome, err
		}
		outcome.Unit, outcome.Action = unit, action
		return outcome, nil
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound:
		var refusal okResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&refusal)
		outcome.OK = false
		outcome.Error = firstNonEmpty(refusal.Error, http.StatusText(resp.StatusCode))
		return outcome, nil
	default:
		return outcome, statusError(http.MethodPost, resp)
	}
}

// OpenStream starts a long-lived GET against path and returns the response
// once the server has answered 2xx. The caller owns the body; cancelling ctx
// or closing the body ends the stream.
func (c *Client) OpenStream(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "GET", URL: req.URL.String(), Err: err}
	}
	logging.Debug(subsystem, "GET %s -> %d (stream)", req.URL.Path, resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer drain(resp)
		return nil, statusError(http.MethodGet, resp)
	}
	return resp, nil
}

// DialWebSocket opens a WebSocket to path, presenting the session cookie.
func (c *Client) DialWebSocket(ctx context.Context, elem ...string) (*websocket.Conn, error) {
	target := c.resolve(elem...)
	switch target.Scheme {
	case "https":
		target.Scheme = "wss"
	default:
		target.Scheme = "ws"
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.timeout,
		Jar:              c.jar,
	}
	header := http.Header{}
	header.Set("User-Agent", c.userAgent)
	header.Set(CorrelationHeader, correlationID(ctx))

	conn, resp, err := dialer.DialContext(ctx, target.String(), header)
	if err != nil {
		te := &TransportError{Op: "WS", URL: target.String(), Err: err}
		if resp != nil {
			te.StatusCode = resp.StatusCode
			drain(resp)
		}
		return nil, te
	}
	logging.Debug(subsystem, "WS %s connected", target.Path)
	return conn, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) resolve(elem ...string) *url.URL {
	return c.base.JoinPath(elem...)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body []byte, elem ...string) (*http.Request, error) {
	target := c.resolve(append([]string{path}, elem...)...)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("api: building %s request: %w", method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(CorrelationHeader, correlationID(ctx))
	return req, nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body []byte, elem ...string) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, path, query, body, elem...)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logging.Debug(subsystem, "%s %s failed after %s: %v", method, req.URL.Path, time.Since(start), err)
		return nil, &TransportError{Op: method, URL: req.URL.String(), Err: err}
	}
	logging.Debug(subsystem, "%s %s -> %d in %s", method, req.URL.Path, resp.StatusCode, time.Since(start).Round(time.Millisecond))
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, out interface{}) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.send(ctx, method, path, nil, body)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(method, resp)
	}
	return decode(resp.Body, strings.TrimPrefix(path, "/"), out)
}

func decode(r io.Reader, source string, out interface{}) error {
	if err := json.NewDecoder(io.LimitReader(r, maxBodyBytes)).Decode(out); err != nil {
		return &MalformedPayloadError{Source: source, Err: err}
	}
	return nil
}

// statusError builds a TransportError from a non-2xx response, carrying the
// server's "error" field when it sent one.
func statusError(method string, resp *http.Response) error {
	te := &TransportError{Op: method, URL: resp.Request.URL.String(), StatusCode: resp.StatusCode}
	var body okResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil && body.Error != "" {
		te.Err = errors.New(body.Error)
	}
	return te
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	_ = resp.Body.Close()
}

// sessionJar is an http.CookieJar whose contents can be dropped atomically.
type sessionJar struct {
	mu  sync.RWMutex
	jar *cookiejar.Jar
}

func newSessionJar() (*sessionJar, error) {
	j, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("api: creating cookie jar: %w", err)
	}
	return &sessionJar{jar: j}, nil
}

func (s *sessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.jar.SetCookies(u, cookies)
}

func (s *sessionJar) Cookies(u *url.URL) []*http.Cookie {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jar.Cookies(u)
}

func (s *sessionJar) reset() {
	j, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		// cookiejar.New never fails with a non-nil options value.
		return
	}
	s.mu.Lock()
	s.jar = j
	s.mu.Unlock()
}
