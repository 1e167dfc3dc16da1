package liveboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jpalmerr/liveboard/internal/source"
)

// ErrUnexpectedStatus is returned by [HTTPSource] for non-2xx responses.
var ErrUnexpectedStatus = errors.New("unexpected upstream status")

// Source fetches a panel's current payload from wherever it lives.
//
// FetchFresh should honour ctx; the board stops waiting when the panel's
// timeout passes either way. The returned value is encoded as JSON, except
// json.RawMessage and []byte values, which must already hold JSON and are
// used verbatim. Sources never touch the cache or notify viewers.
type Source interface {
	FetchFresh(ctx context.Context) (any, error)
}

// SourceFunc adapts a plain function to [Source].
type SourceFunc func(ctx context.Context) (any, error)

// FetchFresh calls f(ctx).
func (f SourceFunc) FetchFresh(ctx context.Context) (any, error) {
	return f(ctx)
}

// sharedClient is the pooled HTTP client every HTTPSource uses.
var sharedClient = sync.OnceValue(source.NewClient)

// HTTPSource is a generic [Source] that polls one URL and turns the
// response body into a payload with a [Transform].
type HTTPSource struct {
	url       string
	method    string
	headers   map[string]string
	transform Transform
	limiter   *rate.Limiter
	client    *source.Client
}

// HTTPOption configures an [HTTPSource] during construction.
type HTTPOption func(*HTTPSource) error

// NewHTTPSource creates an [HTTPSource] for rawURL.
//
// The URL must have a scheme (http:// or https://). Without [WithTransform]
// the body goes through [DefaultTransform].
//
// Example:
//
//	src, err := liveboard.NewHTTPSource("https://api.example.com/weather",
//	    liveboard.WithHeaders("Authorization", "Bearer "+token),
//	    liveboard.WithTransform(liveboard.JSONPath("current")),
//	    liveboard.WithRateLimit(30*time.Second),
//	)
func NewHTTPSource(rawURL string, opts ...HTTPOption) (*HTTPSource, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.New("invalid URL: " + err.Error())
	}
	if parsed.Scheme == "" {
		return nil, errors.New("URL must have a scheme (http:// or https://)")
	}

	s := &HTTPSource{
		url:       rawURL,
		method:    http.MethodGet,
		headers:   make(map[string]string),
		transform: DefaultTransform,
		client:    sharedClient(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// URL returns the polled URL.
func (s *HTTPSource) URL() string {
	return s.url
}

// FetchFresh requests the URL and transforms the body.
func (s *HTTPSource) FetchFresh(ctx context.Context) (any, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	resp := s.client.Fetch(ctx, s.method, s.url, s.headers, 0)
	if resp.Error != nil {
		return nil, resp.Error
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	v, err := s.transform(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("transform response: %w", err)
	}
	return v, nil
}

// WithMethod sets the HTTP method. Only GET, HEAD, and POST are allowed.
// Default is GET.
func WithMethod(method string) HTTPOption {
	return func(s *HTTPSource) error {
		switch method {
		case http.MethodGet, http.MethodHead, http.MethodPost:
			s.method = method
			return nil
		default:
			return fmt.Errorf("unsupported HTTP method: %s", method)
		}
	}
}

// WithHeaders adds request headers as key-value pairs.
// Returns an error if an odd number of arguments is given.
//
// Example:
//
//	liveboard.WithHeaders("Authorization", "Bearer token", "Accept", "application/json")
func WithHeaders(kv ...string) HTTPOption {
	return func(s *HTTPSource) error {
		if len(kv)%2 != 0 {
			return errors.New("WithHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(kv); i += 2 {
			s.headers[kv[i]] = kv[i+1]
		}
		return nil
	}
}

// WithTransform sets how the response body becomes a payload.
func WithTransform(t Transform) HTTPOption {
	return func(s *HTTPSource) error {
		if t == nil {
			return errors.New("transform cannot be nil")
		}
		s.transform = t
		return nil
	}
}

// WithRateLimit enforces a minimum gap between upstream requests, so
// read-triggered refreshes cannot hammer a rate-limited API.
func WithRateLimit(gap time.Duration) HTTPOption {
	return func(s *HTTPSource) error {
		if gap <= 0 {
			return errors.New("rate limit gap must be positive")
		}
		s.limiter = rate.NewLimiter(rate.Every(gap), 1)
		return nil
	}
}
