package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(perMinute int) (*Limiter, *fakeClock) {
	return newTestLimiterWith(Config{RequestsPerMinute: perMinute, CleanupInterval: time.Hour})
}

func newTestLimiterWith(cfg Config) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2023, 6, 15, 12, 0, 0, 0, time.UTC)}
	rl := NewLimiter(cfg)
	rl.now = clock.Now
	return rl, clock
}

func TestLimiter_Allow(t *testing.T) {
	rl, clock := newTestLimiter(3)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d rejected, want allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Error("fourth request allowed, want rejected")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("other client rejected, want allowed")
	}

	if got := rl.RetryAfter("10.0.0.1"); got != time.Minute {
		t.Errorf("RetryAfter() = %v, want 1m", got)
	}

	clock.Advance(time.Minute)
	if !rl.Allow("10.0.0.1") {
		t.Error("request after window reset rejected, want allowed")
	}

	if got := rl.GetMetrics(); got.TotalHits != 1 || got.ClientCount != 2 {
		t.Errorf("GetMetrics() = %+v, want 1 hit and 2 clients", got)
	}
}

func TestLimiter_RejectedRequestsDoNotExtendWindow(t *testing.T) {
	rl, clock := newTestLimiter(1)
	defer rl.Stop()

	rl.Allow("ip")
	clock.Advance(30 * time.Second)
	if rl.Allow("ip") {
		t.Fatal("second request allowed, want rejected")
	}
	clock.Advance(30 * time.Second)
	if !rl.Allow("ip") {
		t.Error("window should reset one minute after the first request")
	}
}

func TestLimiter_IdleClientsExpire(t *testing.T) {
	rl, clock := newTestLimiter(10)
	defer rl.Stop()

	rl.Allow("old")
	clock.Advance(11 * time.Minute)
	rl.Allow("new")

	if removed := rl.windows.CleanExpired(); removed != 1 {
		t.Errorf("CleanExpired() = %d, want 1", removed)
	}
	if got := rl.ActiveClients(); got != 1 {
		t.Errorf("ActiveClients() = %d, want 1", got)
	}
}

func TestLimiter_MaxClientsEvictsLeastRecent(t *testing.T) {
	rl, _ := newTestLimiterWith(Config{RequestsPerMinute: 1, CleanupInterval: time.Hour, MaxClients: 2})
	defer rl.Stop()

	rl.Allow("a")
	rl.Allow("b")
	rl.Allow("c")

	if got := rl.ActiveClients(); got != 2 {
		t.Errorf("ActiveClients() = %d, want 2", got)
	}
	if got := rl.GetMetrics().EvictedClients; got != 1 {
		t.Errorf("EvictedClients = %d, want 1", got)
	}
	// "a" was evicted, so it starts a fresh window.
	if !rl.Allow("a") {
		t.Error("evicted client rejected, want a new window")
	}
}

func TestLimiter_Middleware(t *testing.T) {
	rl, _ := newTestLimiter(1)
	defer rl.Stop()

	var limited int
	handler := rl.Middleware(
		func(*http.Request) string { return "10.0.0.1" },
		func(w http.ResponseWriter, r *http.Request) {
			limited++
			w.WriteHeader(http.StatusTooManyRequests)
		},
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTooManyRequests || limited != 1 {
		t.Errorf("second status = %d, limited = %d; want 429 and 1", rec.Code, limited)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", rec.Header().Get("Retry-After"))
	}
}

func TestLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewLimiter(Config{})
	rl.Stop()
	rl.Stop()
}
