package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func fastClient() *Client {
	c := NewClient("test-service", 2*time.Second)
	c.retryConfig.InitialBackoff = time.Millisecond
	c.retryConfig.MaxBackoff = 5 * time.Millisecond
	return c
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"deal_id":"deal_1"}`))
	}))
	defer server.Close()

	var out struct {
		DealID string `json:"deal_id"`
	}
	if err := fastClient().GetJSON(context.Background(), server.URL, &out); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if out.DealID != "deal_1" {
		t.Errorf("deal_id = %q", out.DealID)
	}
}

func TestRetryOnServiceUnavailable(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	var out map[string]any
	if err := fastClient().GetJSON(context.Background(), server.URL, &out); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestRetriesExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	var out map[string]any
	err := fastClient().GetJSON(context.Background(), server.URL, &out)
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
}

func TestNonRetryableStatusReturnsHTTPError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"unknown buyer"}`))
	}))
	defer server.Close()

	var out map[string]any
	err := fastClient().GetJSON(context.Background(), server.URL, &out)

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("error = %v, want *HTTPError", err)
	}
	if httpErr.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", httpErr.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("404 was retried: %d calls", got)
	}
}

func TestPostJSONRetriesWithBody(t *testing.T) {
	var calls int32
	var lastBody atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		lastBody.Store(string(buf))
		if atomic.AddInt32(&calls, 1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := fastClient().PostJSON(context.Background(), server.URL, map[string]string{"deal_id": "deal_1"}, nil)
	if err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
	// the body must survive the retry intact
	if got, _ := lastBody.Load().(string); got != `{"deal_id":"deal_1"}` {
		t.Errorf("retried body = %q", got)
	}
}

func TestContextCancellationStopsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient("test-service", time.Second)
	c.retryConfig.InitialBackoff = time.Hour // force the wait path

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var out map[string]any
	err := c.GetJSON(ctx, server.URL, &out)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context deadline", err)
	}
}
