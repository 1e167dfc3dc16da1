package liveboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewHTTPSource_InvalidURL(t *testing.T) {
	tests := []string{"", "not-a-url", "://missing-scheme", "example.com/path"}
	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			if _, err := NewHTTPSource(raw); err == nil {
				t.Errorf("NewHTTPSource(%q) expected error", raw)
			}
		})
	}
}

func TestNewHTTPSource_OptionErrors(t *testing.T) {
	tests := []struct {
		name string
		opt  HTTPOption
	}{
		{"bad method", WithMethod(http.MethodDelete)},
		{"odd headers", WithHeaders("Authorization")},
		{"nil transform", WithTransform(nil)},
		{"zero rate limit", WithRateLimit(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewHTTPSource("http://localhost", tt.opt); err == nil {
				t.Error("NewHTTPSource() expected error")
			}
		})
	}
}

func TestHTTPSource_FetchFresh_JSON(t *testing.T) {
	var gotAuth, gotMethod string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotMethod = r.Method
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"current":{"temp_c":18}}`))
	}))
	defer upstream.Close()

	src, err := NewHTTPSource(upstream.URL,
		WithMethod(http.MethodPost),
		WithHeaders("Authorization", "Bearer abc"),
		WithTransform(JSONPath("current")),
	)
	if err != nil {
		t.Fatalf("NewHTTPSource() error = %v", err)
	}
	if src.URL() != upstream.URL {
		t.Errorf("URL() = %q, want %q", src.URL(), upstream.URL)
	}

	v, err := src.FetchFresh(context.Background())
	if err != nil {
		t.Fatalf("FetchFresh() error = %v", err)
	}
	b, _ := json.Marshal(v)
	if string(b) != `{"temp_c":18}` {
		t.Errorf("FetchFresh() = %s", b)
	}
	if gotAuth != "Bearer abc" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %q, want POST", gotMethod)
	}
}

func TestHTTPSource_FetchFresh_DefaultTransform(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"a":1}`))
	}))
	defer upstream.Close()

	src, err := NewHTTPSource(upstream.URL)
	if err != nil {
		t.Fatalf("NewHTTPSource() error = %v", err)
	}
	v, err := src.FetchFresh(context.Background())
	if err != nil {
		t.Fatalf("FetchFresh() error = %v", err)
	}
	raw, ok := v.(json.RawMessage)
	if !ok || string(raw) != `{"a":1}` {
		t.Errorf("FetchFresh() = %v (%T)", v, v)
	}
}

func TestHTTPSource_FetchFresh_UnexpectedStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	src, err := NewHTTPSource(upstream.URL)
	if err != nil {
		t.Fatalf("NewHTTPSource() error = %v", err)
	}
	_, err = src.FetchFresh(context.Background())
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("FetchFresh() error = %v, want ErrUnexpectedStatus", err)
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("error should name the status, got: %v", err)
	}
}

func TestHTTPSource_FetchFresh_TransformError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer upstream.Close()

	src, err := NewHTTPSource(upstream.URL, WithTransform(JSONPath("missing")))
	if err != nil {
		t.Fatalf("NewHTTPSource() error = %v", err)
	}
	if _, err := src.FetchFresh(context.Background()); !errors.Is(err, ErrNoMatch) {
		t.Errorf("FetchFresh() error = %v, want ErrNoMatch", err)
	}
}

func TestHTTPSource_FetchFresh_ConnectionError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := upstream.URL
	upstream.Close()

	src, err := NewHTTPSource(url)
	if err != nil {
		t.Fatalf("NewHTTPSource() error = %v", err)
	}
	if _, err := src.FetchFresh(context.Background()); err == nil {
		t.Error("FetchFresh() expected error for closed upstream")
	}
}

func TestHTTPSource_RateLimit(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer upstream.Close()

	src, err := NewHTTPSource(upstream.URL, WithRateLimit(200*time.Millisecond))
	if err != nil {
		t.Fatalf("NewHTTPSource() error = %v", err)
	}

	start := time.Now()
	for i := 0; i < 2; i++ {
		if _, err := src.FetchFresh(context.Background()); err != nil {
			t.Fatalf("FetchFresh() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("two rate-limited fetches took %v, want at least ~200ms", elapsed)
	}
}

func TestHTTPSource_RateLimit_ContextCancelled(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer upstream.Close()

	src, err := NewHTTPSource(upstream.URL, WithRateLimit(time.Hour))
	if err != nil {
		t.Fatalf("NewHTTPSource() error = %v", err)
	}
	if _, err := src.FetchFresh(context.Background()); err != nil {
		t.Fatalf("first FetchFresh() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := src.FetchFresh(ctx); err == nil {
		t.Error("second FetchFresh() should fail while rate limited")
	}
}
