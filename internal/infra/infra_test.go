package infra

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// ── Cache ──

func TestCacheExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache[int](time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	c.SetWithTTL("b", 2, time.Hour)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %v, %v", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to expire")
	}
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Errorf("Get(b) = %v, %v", v, ok)
	}

	c.Cleanup()
	if c.Len() != 1 {
		t.Errorf("Len after cleanup = %d, want 1", c.Len())
	}
	c.Invalidate("b")
	if c.Len() != 0 {
		t.Errorf("Len after invalidate = %d, want 0", c.Len())
	}
}

func TestCacheGetOrLoad(t *testing.T) {
	c := NewCache[string](time.Minute)
	calls := 0
	load := func(context.Context) (string, error) {
		calls++
		return "v", nil
	}
	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad(context.Background(), "k", load)
		if err != nil || v != "v" {
			t.Fatalf("GetOrLoad = %q, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("load called %d times, want 1", calls)
	}

	boom := errors.New("boom")
	if _, err := c.GetOrLoad(context.Background(), "bad", func(context.Context) (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if _, ok := c.Get("bad"); ok {
		t.Error("failed load must not be cached")
	}
}

// ── Rate limiter ──

func TestRateLimiterBurst(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	if !rl.Allow() || !rl.Allow() {
		t.Fatal("burst of 2 should be allowed")
	}
	if rl.Allow() {
		t.Error("third immediate request should be limited")
	}
}

func TestRateLimiterCancelled(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	rl.Allow()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rl.Wait(ctx); err == nil {
		t.Error("expected error on cancelled context")
	}
}

func TestRateLimiterUnlimited(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		if !rl.Allow() {
			t.Fatalf("request %d limited", i)
		}
	}
}

// ── HTTP ──

func testClient() *Client {
	return NewClient(HTTPConfig{Timeout: 5 * time.Second, Retries: 3, RetryDelay: time.Millisecond, UserAgent: "test-agent"}, zerolog.Nop())
}

func TestDoGetSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "test-agent" {
			t.Errorf("User-Agent = %q", got)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q", got)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	body, status, err := testClient().DoGet(context.Background(), srv.URL, map[string]string{"Accept": "application/json"})
	if err != nil {
		t.Fatalf("DoGet: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if status != 200 || string(data) != `{"ok":true}` {
		t.Errorf("got %d %q", status, data)
	}
}

func TestDoGetRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, _, err := testClient().DoGet(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("DoGet: %v", err)
	}
	body.Close()
	if hits.Load() != 3 {
		t.Errorf("hits = %d, want 3", hits.Load())
	}
}

func TestDoGetRetryBudget(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, status, err := testClient().DoGet(context.Background(), srv.URL, nil)
	var se *HTTPStatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("err = %v, want 429 status error", err)
	}
	if status != http.StatusTooManyRequests {
		t.Errorf("status = %d", status)
	}
	if hits.Load() != 4 {
		t.Errorf("hits = %d, want 1 attempt + 3 retries", hits.Load())
	}
}

func TestDoGetClientErrorIsPermanent(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, _, err := testClient().DoGet(context.Background(), srv.URL, nil)
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want 404", err)
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", hits.Load())
	}
}

func TestDoGetUsesDefaultClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Header.Get("User-Agent")))
	}))
	defer srv.Close()

	prev := DefaultClient()
	defer SetDefaultClient(prev)
	SetDefaultClient(testClient())

	body, _, err := DoGet(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("DoGet: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if string(data) != "test-agent" {
		t.Errorf("body = %q", data)
	}
}

// ── Logger ──

func TestNewLoggerLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "warn", "json")
	log.Info().Msg("hidden")
	log.Warn().Str("ticker", "AAPL").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, `"ticker":"AAPL"`) || !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("unexpected JSON output: %s", out)
	}

	buf.Reset()
	textLog := newLogger(&buf, "bogus", "text")
	textLog.Info().Msg("console line")
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("text format produced JSON: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "console line") {
		t.Errorf("missing message: %s", buf.String())
	}
}

func TestDoGetRequestRateLimit(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewClient(HTTPConfig{Timeout: time.Second, RequestsPerSecond: 0.01}, zerolog.Nop())
	body, _, err := c.DoGet(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("first DoGet: %v", err)
	}
	body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, _, err := c.DoGet(ctx, srv.URL, nil); err == nil {
		t.Fatal("second DoGet should hit the limiter")
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("hits = %d, want 1", got)
	}
}
