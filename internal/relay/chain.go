package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/html/charset"
)

// Chain fetches pages by attempting each configured relay in priority
// order until one returns a readable 2xx body.
//
// Design decision: The retry budget is spent by moving to the next relay,
// never by repeating the same one. Public pass-through proxies fail in
// correlated ways (rate limits, blocked targets), so retrying the same
// relay mostly wastes time that a different relay could use.
type Chain struct {
	// relays are attempted in slice order.
	relays []Relay

	// client performs all HTTP requests.
	client *http.Client

	// userAgent is sent on every attempt.
	userAgent string

	// maxBodySize caps how much of a response body is read.
	maxBodySize int64

	// logger records per-relay failures at debug level.
	logger *slog.Logger
}

// Option configures a Chain.
type Option func(*Chain)

// WithRelays replaces the default relay list.
func WithRelays(relays []Relay) Option {
	return func(c *Chain) {
		c.relays = relays
	}
}

// WithHTTPClient sets a custom HTTP client, for example one created by
// NewSOCKS5Client or a test client pointed at a local server.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Chain) {
		c.client = client
	}
}

// WithUserAgent sets the User-Agent header for all attempts.
func WithUserAgent(ua string) Option {
	return func(c *Chain) {
		c.userAgent = ua
	}
}

// WithMaxBodySize caps the response body size in bytes.
func WithMaxBodySize(size int64) Option {
	return func(c *Chain) {
		c.maxBodySize = size
	}
}

// WithLogger sets the logger used for per-relay failure records.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chain) {
		c.logger = logger
	}
}

// NewChain creates a Chain with the default relay list and client.
func NewChain(opts ...Option) *Chain {
	c := &Chain{
		relays:      DefaultRelays(),
		userAgent:   "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0",
		maxBodySize: 5 * 1024 * 1024,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.client == nil {
		c.client = &http.Client{Timeout: 30 * time.Second}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}

// Relays returns the configured relay list in priority order.
func (c *Chain) Relays() []Relay {
	return c.relays
}

// FetchPage fetches the raw markup of the given absolute URL.
//
// Each relay is attempted once, in order. If the context is cancelled the
// cancellation propagates immediately without trying further relays.
// After every relay has failed, a single *Error is returned whose Reason
// classifies the last underlying failure.
func (c *Chain) FetchPage(ctx context.Context, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return "", ErrNotAbsolute
	}
	if len(c.relays) == 0 {
		return "", ErrNoRelays
	}

	var lastErr error
	for _, r := range c.relays {
		markup, err := c.attempt(ctx, r, pageURL)
		if err == nil {
			return markup, nil
		}

		// Caller-initiated abort: propagate without trying further relays.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		c.logger.Debug("relay attempt failed",
			"relay", r.Name,
			"kind", r.Kind.String(),
			"url", pageURL,
			"error", err,
		)
		lastErr = err
	}

	return "", classify(pageURL, lastErr)
}

// attempt performs a single fetch through one relay.
func (c *Chain) attempt(ctx context.Context, r Relay, pageURL string) (string, error) {
	switch r.Kind {
	case KindRender:
		return c.attemptRender(ctx, r, pageURL)
	case KindProxy:
		return c.attemptGet(ctx, r, r.Target(url.QueryEscape(pageURL)))
	default:
		return c.attemptGet(ctx, r, pageURL)
	}
}

// attemptGet performs a GET through a direct or pass-through relay.
func (c *Chain) attemptGet(ctx context.Context, r Relay, requestURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return "", fmt.Errorf("relay %s: build request: %w", r.Name, err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("relay %s: %w", r.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &statusError{relay: r.Name, status: resp.StatusCode}
	}

	return c.readBody(resp)
}

// renderRequest is the POST body for the rendering relay.
type renderRequest struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// renderResponse is the rendering relay's reply.
type renderResponse struct {
	Success bool   `json:"success"`
	HTML    string `json:"html"`
	Error   string `json:"error"`
}

// attemptRender invokes the server-side rendering relay.
func (c *Chain) attemptRender(ctx context.Context, r Relay, pageURL string) (string, error) {
	payload, err := json.Marshal(renderRequest{URL: pageURL, Type: "crawler"})
	if err != nil {
		return "", fmt.Errorf("relay %s: encode request: %w", r.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("relay %s: build request: %w", r.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("relay %s: %w", r.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &statusError{relay: r.Name, status: resp.StatusCode}
	}

	var rr renderResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, c.maxBodySize)).Decode(&rr); err != nil {
		return "", fmt.Errorf("relay %s: decode response: %w", r.Name, err)
	}
	if !rr.Success {
		if rr.Error == "" {
			rr.Error = "render failed"
		}
		return "", fmt.Errorf("relay %s: %s", r.Name, rr.Error)
	}

	return rr.HTML, nil
}

// readBody reads a capped response body and decodes it to UTF-8 using
// charset sniffing, so pages served in legacy encodings still parse.
func (c *Chain) readBody(resp *http.Response) (string, error) {
	limited := io.LimitReader(resp.Body, c.maxBodySize)

	reader, err := charset.NewReader(limited, resp.Header.Get("Content-Type"))
	if err != nil {
		// Sniffing failed; fall back to the raw bytes.
		reader = limited
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

// classify synthesizes the exhaustion error from the last relay failure.
//
// HTTP 403 means the site refuses automated access; transport failures
// mean the site is unreachable or silently dropping connections. Anything
// else passes the raw message through. Callers render different user
// guidance for "blocked" versus "unreachable".
func classify(pageURL string, lastErr error) *Error {
	e := &Error{URL: pageURL, Last: lastErr}

	var se *statusError
	var ne net.Error
	switch {
	case errors.As(lastErr, &se) && se.status == http.StatusForbidden:
		e.Reason = ReasonBlocked
		e.Message = fmt.Sprintf("%s: site is blocking automated access", pageURL)
	case errors.As(lastErr, &ne):
		e.Reason = ReasonNetwork
		e.Message = fmt.Sprintf("%s: network error or blocking access", pageURL)
	case lastErr != nil:
		e.Reason = ReasonUnknown
		e.Message = lastErr.Error()
	default:
		e.Reason = ReasonUnknown
		e.Message = fmt.Sprintf("%s: all relays failed", pageURL)
	}

	return e
}
