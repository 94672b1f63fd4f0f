package confluence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"pkt.systems/pslog"

	"pkt.systems/wikid/internal/clock"
	"pkt.systems/wikid/internal/oauth"
	"pkt.systems/wikid/internal/svcfields"
)

const (
	// DefaultRequestTimeout bounds ordinary REST calls.
	DefaultRequestTimeout = 30 * time.Second
	// DefaultAttachmentTimeout bounds attachment uploads and downloads.
	DefaultAttachmentTimeout = 120 * time.Second

	// representationADF is the only body representation this client speaks.
	representationADF = "atlas_doc_format"

	maxErrorBody = 1 << 16
)

// Client talks to one Confluence Cloud site. All methods are safe for
// concurrent use.
type Client struct {
	base   string
	mode   AuthMode
	email  string
	token  string
	tokens *oauth.Manager

	transport         http.RoundTripper
	requestTimeout    time.Duration
	attachmentTimeout time.Duration
	retries           int
	maxWait           time.Duration
	tracing           bool

	logger     pslog.Logger
	clk        clock.Clock
	onThrottle func()
	onConflict func()

	httpClient *http.Client
	longClient *http.Client
}

// Option customizes client construction.
type Option func(*Client)

// WithLogger attaches a structured logger. Nil keeps logging disabled.
func WithLogger(logger pslog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBasicAuth authenticates requests with an Atlassian account email
// and API token.
func WithBasicAuth(email, apiToken string) Option {
	return func(c *Client) {
		c.mode = AuthBasic
		c.email = email
		c.token = apiToken
	}
}

// WithTokenManager authenticates requests with bearer tokens from the
// given OAuth manager.
func WithTokenManager(m *oauth.Manager) Option {
	return func(c *Client) {
		c.mode = AuthOAuth
		c.tokens = m
	}
}

// WithTransport swaps the base RoundTripper under the auth and throttle
// layers. Nil keeps http.DefaultTransport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

// WithClock injects the time source used for throttle waits.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		if clk != nil {
			c.clk = clk
		}
	}
}

// WithThrottle tunes 429 retry behavior: how many retries, and the cap
// applied to server Retry-After hints.
func WithThrottle(retries int, maxWait time.Duration) Option {
	return func(c *Client) {
		if retries >= 0 {
			c.retries = retries
		}
		if maxWait > 0 {
			c.maxWait = maxWait
		}
	}
}

// WithThrottleObserver registers a callback invoked once per 429 retry.
func WithThrottleObserver(fn func()) Option {
	return func(c *Client) { c.onThrottle = fn }
}

// WithConflictObserver registers a callback invoked once per push that
// hits a version conflict.
func WithConflictObserver(fn func()) Option {
	return func(c *Client) { c.onConflict = fn }
}

// WithTimeouts overrides the request and attachment timeouts. Zero
// values keep the defaults.
func WithTimeouts(request, attachment time.Duration) Option {
	return func(c *Client) {
		if request > 0 {
			c.requestTimeout = request
		}
		if attachment > 0 {
			c.attachmentTimeout = attachment
		}
	}
}

// WithTracing wraps the base transport in otelhttp spans.
func WithTracing(enabled bool) Option {
	return func(c *Client) { c.tracing = enabled }
}

// New builds a client for the Confluence site at baseURL (for example
// https://example.atlassian.net/wiki). Exactly one of WithBasicAuth or
// WithTokenManager must be supplied.
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		base:              strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		logger:            pslog.NoopLogger(),
		clk:               clock.Real{},
		retries:           DefaultThrottleRetries,
		maxWait:           DefaultThrottleMaxWait,
		requestTimeout:    DefaultRequestTimeout,
		attachmentTimeout: DefaultAttachmentTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.base == "" {
		return nil, fmt.Errorf("confluence: base URL required")
	}
	switch c.mode {
	case AuthBasic:
		if c.email == "" || c.token == "" {
			return nil, fmt.Errorf("confluence: basic auth requires email and API token")
		}
	case AuthOAuth:
		if c.tokens == nil {
			return nil, fmt.Errorf("confluence: oauth requires a token manager")
		}
	default:
		return nil, fmt.Errorf("confluence: no authentication configured")
	}
	c.logger = svcfields.WithSubsystem(c.logger, "confluence.client")

	base := c.transport
	if base == nil {
		base = http.DefaultTransport
	}
	if c.tracing {
		base = otelhttp.NewTransport(base)
	}
	chain := &throttleTransport{
		base: &authTransport{
			base:   base,
			mode:   c.mode,
			email:  c.email,
			token:  c.token,
			tokens: c.tokens,
		},
		retries: c.retries,
		maxWait: c.maxWait,
		clk:     c.clk,
		logger:  c.logger,
		onRetry: c.onThrottle,
	}
	c.httpClient = &http.Client{Timeout: c.requestTimeout, Transport: chain}
	c.longClient = &http.Client{Timeout: c.attachmentTimeout, Transport: chain}
	return c, nil
}

// BaseURL returns the configured site URL without a trailing slash.
func (c *Client) BaseURL() string { return c.base }

// AuthMode returns how this client authenticates.
func (c *Client) AuthMode() AuthMode { return c.mode }

// newRequest builds a request against the site. path is either a
// site-relative path ("/api/v2/pages/1") or a full URL; a correlation
// identifier from ctx, or a fresh one, is stamped on every request.
func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target := path
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = c.base + target
	}
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	id := CorrelationIDFromContext(ctx)
	if id == "" {
		id = GenerateCorrelationID()
	}
	req.Header.Set(headerCorrelationID, id)
	return req, nil
}

// do sends req and converts non-2xx responses into *APIError. On
// success the caller owns the response body.
func (c *Client) do(hc *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := hc.Do(req)
	if err != nil {
		c.logger.Warn("client.http.error",
			"method", req.Method, "path", req.URL.Path, "error", err.Error())
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		return nil, c.decodeError(resp, req.URL.Path)
	}
	return resp, nil
}

func (c *Client) decodeError(resp *http.Response, path string) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	c.logger.Warn("client.http.status",
		"path", path, "status", resp.StatusCode)
	return &APIError{
		Status:     resp.StatusCode,
		Path:       path,
		Body:       data,
		RetryAfter: parseRetryAfterHeader(resp.Header.Get("Retry-After")),
	}
}

func decodeJSON(resp *http.Response, out any) error {
	defer func() { _ = resp.Body.Close() }()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// getJSON issues a GET and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(c.httpClient, req)
	if err != nil {
		return err
	}
	return decodeJSON(resp, out)
}

// sendJSON issues a POST/PUT/DELETE with an optional JSON payload and
// decodes the response into out when non-nil.
func (c *Client) sendJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("confluence: encode %s payload: %w", path, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, nil, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.do(c.httpClient, req)
	if err != nil {
		return err
	}
	return decodeJSON(resp, out)
}

// linksWire carries v2 pagination links.
type linksWire struct {
	Next string `json:"next"`
}

var cursorPattern = regexp.MustCompile(`cursor=([^&]+)`)

// nextCursor pulls the opaque cursor token out of a v2 _links.next URL.
func nextCursor(links linksWire) string {
	if links.Next == "" {
		return ""
	}
	if m := cursorPattern.FindStringSubmatch(links.Next); m != nil {
		return m[1]
	}
	return ""
}

var cqlOperators = []string{"=", "~", " AND ", " OR ", " IN "}

// WrapCQL passes query through when it already contains CQL operators,
// and otherwise wraps it as a page title/text search.
func WrapCQL(query string) string {
	for _, op := range cqlOperators {
		if strings.Contains(query, op) {
			return query
		}
	}
	return fmt.Sprintf(`type=page AND (title~"%s" OR text~"%s")`, query, query)
}
