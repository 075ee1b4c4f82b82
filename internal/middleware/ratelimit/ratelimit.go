package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"rewards/internal/cache"
)

const (
	window = time.Minute
	// Clients idle this long are forgotten.
	idleTTL = 10 * time.Minute
)

// Limiter allows a fixed number of requests per client IP in each one-minute
// window. Client windows live in an LRU cache, so a flood of distinct
// addresses evicts the least recently seen ones.
type Limiter struct {
	mu      sync.Mutex // serializes window updates
	windows *cache.LRUCache[*clientWindow]
	now     func() time.Time
	limit   int

	cleanupInterval time.Duration
	stop            chan struct{}
	stopOnce        sync.Once

	rejected atomic.Int64
}

type clientWindow struct {
	start    time.Time
	requests int
}

type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
	MaxClients        int
}

func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 120,
		CleanupInterval:   5 * time.Minute,
		MaxClients:        10000,
	}
}

// NewLimiter starts a limiter and its cleanup loop. Call Stop to end it.
func NewLimiter(config Config) *Limiter {
	defaults := DefaultConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = defaults.RequestsPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	if config.MaxClients <= 0 {
		config.MaxClients = defaults.MaxClients
	}

	rl := &Limiter{
		windows:         cache.NewLRUCache[*clientWindow](config.MaxClients, idleTTL),
		now:             time.Now,
		limit:           config.RequestsPerMinute,
		cleanupInterval: config.CleanupInterval,
		stop:            make(chan struct{}),
	}
	rl.windows.SetClock(func() time.Time { return rl.now() })

	go rl.cleanupLoop()
	return rl
}

// Allow records a request from clientIP and reports whether it is within
// the limit. Rejected requests still count against the current window.
func (rl *Limiter) Allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows.Get(clientIP)
	if !ok || now.Sub(w.start) >= window {
		w = &clientWindow{start: now}
	}
	w.requests++
	// Storing again refreshes the idle expiry.
	rl.windows.Set(clientIP, w)

	if w.requests > rl.limit {
		rl.rejected.Add(1)
		return false
	}
	return true
}

// RetryAfter returns how long clientIP must wait for its window to reset.
func (rl *Limiter) RetryAfter(clientIP string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows.Get(clientIP)
	if !ok {
		return 0
	}
	return max(w.start.Add(window).Sub(rl.now()), 0)
}

func (rl *Limiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.windows.CleanExpired()
		case <-rl.stop:
			return
		}
	}
}

// ActiveClients returns the number of tracked client windows.
func (rl *Limiter) ActiveClients() int {
	return rl.windows.Size()
}

func (rl *Limiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

type Metrics struct {
	// TotalHits counts rejected requests.
	TotalHits   int64
	ClientCount int64
	// EvictedClients counts windows dropped because MaxClients was reached.
	EvictedClients int64
}

func (rl *Limiter) GetMetrics() Metrics {
	return Metrics{
		TotalHits:      rl.rejected.Load(),
		ClientCount:    int64(rl.ActiveClients()),
		EvictedClients: int64(rl.windows.Stats().Evictions),
	}
}

// Middleware rejects requests over the limit. It sets Retry-After, in whole
// seconds and at least 1, then calls onLimit to write the body.
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := extractIP(r)
			if rl.Allow(clientIP) {
				next.ServeHTTP(w, r)
				return
			}

			seconds := max(int(rl.RetryAfter(clientIP).Round(time.Second)/time.Second), 1)
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			if onLimit == nil {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			onLimit(w, r)
		})
	}
}
