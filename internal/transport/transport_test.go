package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"hlgo/pkg/hlerr"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(httptest.NewRecorder().Body, nil))
}

func newTestClient(t *testing.T, srv *httptest.Server, retry RetryPolicy) *Client {
	t.Helper()
	return New(Config{BaseURL: srv.URL, Retry: retry, Timeout: 2 * time.Second}, testLogger())
}

func TestPostInfoSuccess(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/info" {
			t.Errorf("path = %q, want /info", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, NoRetry)
	raw, err := c.PostInfo(context.Background(), map[string]any{"type": "meta"})
	if err != nil {
		t.Fatalf("PostInfo: %v", err)
	}
	var decoded map[string]bool
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded["ok"] {
		t.Error("expected ok:true in response")
	}
}

func Test4xxNoRetry(t *testing.T) {
	t.Parallel()
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"bad request"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, RetryPolicy{MaxRetries: 3, InitialBackoff: time.Millisecond, Multiplier: 2, MaxBackoff: time.Second})
	_, err := c.PostExchange(context.Background(), map[string]any{"type": "noop"})
	if err == nil {
		t.Fatal("expected error")
	}
	if hlerr.KindOf(err) != hlerr.HTTP4xx {
		t.Errorf("KindOf(err) = %v, want HTTP4xx", hlerr.KindOf(err))
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("attempts = %d, want exactly 1 (no retry on 4xx)", got)
	}
}

func Test5xxRetriesUpToMax(t *testing.T) {
	t.Parallel()
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"unavailable"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, RetryPolicy{MaxRetries: 2, InitialBackoff: time.Millisecond, Multiplier: 2, MaxBackoff: 10 * time.Millisecond})
	_, err := c.PostExchange(context.Background(), map[string]any{"type": "noop"})
	if err == nil {
		t.Fatal("expected error")
	}
	if hlerr.KindOf(err) != hlerr.HTTP5xx {
		t.Errorf("KindOf(err) = %v, want HTTP5xx", hlerr.KindOf(err))
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("attempts = %d, want 3 (1 initial + 2 retries)", got)
	}
}

func Test5xxSucceedsAfterRetry(t *testing.T) {
	t.Parallel()
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"transient"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, RetryPolicy{MaxRetries: 3, InitialBackoff: time.Millisecond, Multiplier: 2, MaxBackoff: 10 * time.Millisecond})
	raw, err := c.PostExchange(context.Background(), map[string]any{"type": "noop"})
	if err != nil {
		t.Fatalf("PostExchange: %v", err)
	}
	if string(raw) != `{"ok":true}` {
		t.Errorf("raw = %s", raw)
	}
}

func TestNextBackoffCapsAtMax(t *testing.T) {
	t.Parallel()
	got := nextBackoff(3*time.Second, 2.0, 5*time.Second)
	if got != 5*time.Second {
		t.Errorf("nextBackoff = %v, want capped at 5s", got)
	}
}

func TestNextBackoffMultiplies(t *testing.T) {
	t.Parallel()
	got := nextBackoff(time.Second, 2.0, 10*time.Second)
	if got != 2*time.Second {
		t.Errorf("nextBackoff = %v, want 2s", got)
	}
}
