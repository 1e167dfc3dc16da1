package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/http/httptrace"
	"strings"
	"testing"
	"time"
)

// TestClient_ConnectionReuse verifies sequential requests to the same host
// reuse pooled connections.
func TestClient_ConnectionReuse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient()

	var reusedCount int
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			if info.Reused {
				reusedCount++
			}
		},
	}

	const numRequests = 5
	for i := 0; i < numRequests; i++ {
		ctx := httptrace.WithClientTrace(context.Background(), trace)
		resp := client.Fetch(ctx, "", server.URL, nil, 5*time.Second)
		if resp.Error != nil {
			t.Fatalf("request %d failed: %v", i, resp.Error)
		}
	}

	if expectedMinReuse := numRequests - 2; reusedCount < expectedMinReuse {
		t.Errorf("expected at least %d reused connections, got %d out of %d requests",
			expectedMinReuse, reusedCount, numRequests)
	}
}

func TestClient_FetchSendsHeaders(t *testing.T) {
	var gotMethod, gotKey, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotKey = r.Header.Get("X-Api-Key")
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	resp := NewClient().Fetch(context.Background(), http.MethodPost, server.URL, map[string]string{"X-Api-Key": "k"}, time.Second)

	if !resp.OK() {
		t.Fatalf("Fetch() = %+v, want OK", resp)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %q, want POST", gotMethod)
	}
	if gotKey != "k" {
		t.Errorf("X-Api-Key = %q, want k", gotKey)
	}
	if gotUA != DefaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", gotUA, DefaultUserAgent)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Errorf("Body = %s", resp.Body)
	}
}

func TestClient_FetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	start := time.Now()
	resp := NewClient().Fetch(context.Background(), "", server.URL, nil, 50*time.Millisecond)

	if resp.Error == nil {
		t.Fatal("Fetch() error = nil, want timeout")
	}
	if time.Since(start) > time.Second {
		t.Errorf("Fetch() took %v, want bounded by timeout", time.Since(start))
	}
}

func TestClient_FetchBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", maxResponseBodySize+100)))
	}))
	defer server.Close()

	resp := NewClient().Fetch(context.Background(), "", server.URL, nil, 5*time.Second)
	if resp.Error != nil {
		t.Fatalf("Fetch() error = %v", resp.Error)
	}
	if len(resp.Body) != maxResponseBodySize {
		t.Errorf("len(Body) = %d, want %d", len(resp.Body), maxResponseBodySize)
	}
}

func TestResponse_OK(t *testing.T) {
	tests := []struct {
		resp Response
		want bool
	}{
		{Response{StatusCode: 200}, true},
		{Response{StatusCode: 204}, true},
		{Response{StatusCode: 304}, false},
		{Response{StatusCode: 503}, false},
		{Response{StatusCode: 200, Error: context.Canceled}, false},
	}
	for _, tt := range tests {
		if got := tt.resp.OK(); got != tt.want {
			t.Errorf("%+v.OK() = %v, want %v", tt.resp, got, tt.want)
		}
	}
}

// TestClient_Close verifies Close is idempotent and nil-safe.
func TestClient_Close(t *testing.T) {
	client := NewClient()
	client.Close()
	client.Close()

	var nilClient *Client
	nilClient.Close()
}
