package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

const maxResponseBodySize = 1 << 20 // 1MB

// connection pooling limits to prevent resource exhaustion when many panels share a host
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// DefaultUserAgent is sent when a request sets no User-Agent header.
const DefaultUserAgent = "liveboard/1.0"

// Response holds the result of an HTTP request made by [Client].
type Response struct {
	// Body contains the HTTP response body, limited to 1MB.
	Body []byte

	// StatusCode is the HTTP status code. Zero if the request failed before a
	// response arrived.
	StatusCode int

	// Latency is the total time taken for the request.
	Latency time.Duration

	// Error contains any transport or read error.
	Error error
}

// OK reports whether the request completed with a 2xx status.
func (r Response) OK() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Client is an HTTP client wrapper for polling panel upstreams.
//
// Client uses per-request timeouts via context rather than a global timeout,
// so panels with different timeout settings can share it.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a [Client] with pooled connections and HTTP/2 enabled.
func NewClient() *Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        defaultMaxIdleConns,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		MaxConnsPerHost:     defaultMaxConnsPerHost,
		IdleConnTimeout:     defaultIdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	// a customized transport does not negotiate h2 on its own
	_ = http2.ConfigureTransport(transport)

	return &Client{
		httpClient: &http.Client{Transport: transport},
	}
}

// Fetch performs an HTTP request and returns a structured [Response].
//
// If method is empty, GET is used. The timeout is applied via context
// cancellation. Fetch always returns a Response; errors are captured in the
// Error field rather than returned separately.
func (c *Client) Fetch(ctx context.Context, method, url string, headers map[string]string, timeout time.Duration) Response {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()

	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("failed to create request: %w", err),
		}
	}

	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "application/json, text/plain;q=0.9, */*;q=0.5")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("request failed: %w", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			Error:      fmt.Errorf("failed to read response body: %w", err),
		}
	}

	return Response{
		Body:       body,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
	}
}

// Close closes all idle connections in the client's pool.
// Safe to call multiple times and on a nil client; the client stays usable.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	c.httpClient.CloseIdleConnections()
}
