// Package apiclient is a thin client for the SeaSky platform REST API.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/seasky/seasky-web/pkg/logging"
	"github.com/seasky/seasky-web/pkg/retry"
)

const (
	// DefaultBaseURL is used when no base URL is configured.
	DefaultBaseURL = "http://localhost:8000"

	// Prefix is prepended to relative API paths.
	Prefix = "/api/v1"

	DefaultTimeout = 20 * time.Second
	UploadTimeout  = 60 * time.Second
)

// Config configures a Client.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	UploadTimeout time.Duration

	// HTTPClient defaults to a client without its own timeout; deadlines
	// come from the per-request context.
	HTTPClient *http.Client

	// Retry applies to idempotent GETs only.
	Retry *retry.Config

	Breaker retry.BreakerConfig
	Logger  logging.Logger
}

// Client calls the platform API. Copies made with WithTokens share the
// HTTP client and circuit breaker.
type Client struct {
	baseURL       string
	timeout       time.Duration
	uploadTimeout time.Duration
	http          *http.Client
	retry         *retry.Config
	breaker       *retry.Breaker
	tokens        TokenSource
	logger        logging.Logger
}

// New creates a client.
func New(config Config) *Client {
	c := &Client{
		baseURL:       NormalizeBaseURL(config.BaseURL),
		timeout:       config.Timeout,
		uploadTimeout: config.UploadTimeout,
		http:          config.HTTPClient,
		breaker:       retry.NewBreaker(config.Breaker),
		logger:        config.Logger,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.uploadTimeout <= 0 {
		c.uploadTimeout = UploadTimeout
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	rc := retry.DefaultConfig()
	if config.Retry != nil {
		*rc = *config.Retry
	}
	rc.RetryIf = retryable
	c.retry = rc
	if c.logger == nil {
		c.logger = logging.NopLogger{}
	}
	return c
}

// WithTokens returns a copy that authenticates with tokens.
func (c *Client) WithTokens(tokens TokenSource) *Client {
	cp := *c
	cp.tokens = tokens
	return &cp
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// BreakerState exposes the upstream circuit state for health checks.
func (c *Client) BreakerState() retry.State {
	return c.breaker.State()
}

var hostPort = regexp.MustCompile(`^[a-zA-Z0-9.-]+:\d+`)

// NormalizeBaseURL fills in a scheme and host where the configured value
// omits them and trims trailing slashes.
func NormalizeBaseURL(raw string) string {
	u := strings.TrimSpace(raw)
	switch {
	case u == "":
		u = DefaultBaseURL
	case strings.HasPrefix(u, ":"):
		u = "http://localhost" + u
	case strings.HasPrefix(u, "/"):
		u = DefaultBaseURL + u
	case !isAbsoluteURL(u) && hostPort.MatchString(u):
		u = "http://" + u
	}
	return strings.TrimRight(u, "/")
}

var slashRuns = regexp.MustCompile(`/{2,}`)

// NormalizePath maps an endpoint path onto the API. Absolute URLs pass
// through; paths under /api/, /media/ or /static/ are kept; anything else
// is placed under /api/v1.
func NormalizePath(path string) string {
	p := strings.TrimSpace(path)
	if p == "" || isAbsoluteURL(p) {
		return p
	}
	p = cleanPath(p)
	if strings.HasPrefix(p, "/api/") || strings.HasPrefix(p, "/media/") || strings.HasPrefix(p, "/static/") {
		return p
	}
	return cleanPath(Prefix + p)
}

func cleanPath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return slashRuns.ReplaceAllString(p, "/")
}

func isAbsoluteURL(u string) bool {
	l := strings.ToLower(u)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// URL joins the base URL and a normalized path. A base that already ends
// in /api/v1 does not get the prefix twice.
func (c *Client) URL(path string) string {
	p := NormalizePath(path)
	if isAbsoluteURL(p) {
		return p
	}
	base := c.baseURL
	if strings.HasSuffix(base, Prefix) && strings.HasPrefix(p, Prefix+"/") {
		base = strings.TrimSuffix(base, Prefix)
	}
	return base + p
}

// request is one API call.
type request struct {
	method string
	path   string
	body   *Payload
}

// get performs an idempotent GET, retried on transport errors and 5xx.
func (c *Client) get(ctx context.Context, path string, out any) error {
	_, err := retry.Do(ctx, c.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.do(ctx, request{method: http.MethodGet, path: path}, out)
	})
	return err
}

// post sends a mutation. Mutations are never retried.
func (c *Client) post(ctx context.Context, path string, body *Payload, out any) error {
	return c.do(ctx, request{method: http.MethodPost, path: path, body: body}, out)
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	if err := c.breaker.Allow(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}

	timeout := c.timeout
	var body io.Reader
	contentType := ""
	if req.body != nil {
		if req.body.Multipart() {
			timeout = c.uploadTimeout
		}
		var err error
		body, contentType, err = req.body.Encode()
		if err != nil {
			return err
		}
	}

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := c.URL(req.path)
	httpReq, err := http.NewRequestWithContext(ctx, req.method, url, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	log := c.logger
	if l := logging.LoggerFromContext(ctx); l != nil {
		log = l
	}
	start := time.Now()

	resp, err := c.http.Do(httpReq)
	if err != nil {
		// A caller that gave up says nothing about the API's health.
		if perr := parent.Err(); perr != nil {
			return perr
		}
		c.breaker.Failure()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Warn("api timeout", logging.String("method", req.method), logging.String("url", url), logging.Duration("timeout", timeout))
			return fmt.Errorf("%w: %s %s", ErrTimeout, req.method, url)
		}
		log.Warn("api unreachable", logging.String("method", req.method), logging.String("url", url), logging.Err(err))
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if perr := parent.Err(); perr != nil {
			return perr
		}
		c.breaker.Failure()
		return fmt.Errorf("%w: read body: %w", ErrUnreachable, err)
	}

	log.Debug("api call",
		logging.String("method", req.method),
		logging.String("url", url),
		logging.Int("status", resp.StatusCode),
		logging.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode >= 500 {
		c.breaker.Failure()
	} else {
		c.breaker.Success()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload map[string]any
		_ = json.Unmarshal(data, &payload)
		return newAPIError(resp.StatusCode, payload)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.path, err)
	}
	return nil
}

func retryable(err error) bool {
	if errors.Is(err, retry.ErrCircuitOpen) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}
	return errors.Is(err, ErrUnreachable) || errors.Is(err, ErrTimeout)
}
