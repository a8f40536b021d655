package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/semaphore"
)

const maxBodyBytes = 10 << 20

// Response is a fetched page. Non-2xx responses are returned, not errors.
type Response struct {
	StatusCode int
	Body       string
	URL        string
}

func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

type Options struct {
	Timeout               time.Duration
	MaxConcurrentRequests int
	UserAgent             string
	AcceptLanguage        string
	Logger                *slog.Logger
}

// Client is a cookie-keeping HTTP session with a bounded request pool.
type Client struct {
	http    *http.Client
	pool    *semaphore.Weighted
	headers http.Header
	logger  *slog.Logger
}

func NewClient(opts Options) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	if opts.MaxConcurrentRequests < 1 {
		opts.MaxConcurrentRequests = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	headers := http.Header{}
	if opts.UserAgent != "" {
		headers.Set("User-Agent", opts.UserAgent)
	}
	headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	if opts.AcceptLanguage != "" {
		headers.Set("Accept-Language", opts.AcceptLanguage)
	}

	return &Client{
		http: &http.Client{
			Jar:     jar,
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: opts.MaxConcurrentRequests,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		pool:    semaphore.NewWeighted(int64(opts.MaxConcurrentRequests)),
		headers: headers,
		logger:  logger.With("component", "fetch_client"),
	}, nil
}

// Fetch issues a GET request.
func (c *Client) Fetch(ctx context.Context, target string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", target, err)
	}
	return c.do(req)
}

// SubmitForm posts url-encoded fields.
func (c *Client) SubmitForm(ctx context.Context, target string, fields url.Values) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(fields.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", target, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

// Close drops pooled connections. The client must not be used afterwards.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) do(req *http.Request) (*Response, error) {
	ctx := req.Context()
	if err := c.pool.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.pool.Release(1)

	for k, v := range c.headers {
		if req.Header.Get(k) == "" {
			req.Header[k] = v
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", req.URL, err)
	}

	c.logger.Debug("fetched",
		"method", req.Method,
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(start))

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       string(body),
		URL:        resp.Request.URL.String(),
	}, nil
}
