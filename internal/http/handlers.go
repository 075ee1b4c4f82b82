package http

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"rewards/internal/log"
)

type appMetrics struct {
	uptime               time.Time
	rewardLookups        int64
	validationErrors     int64
	ledgerErrors         int64
	transactionsAccepted int64
	transactionsQueued   int64
}

func newAppMetrics() *appMetrics {
	return &appMetrics{uptime: time.Now()}
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.metrics.uptime).Round(time.Second).String(),
	}).Write(w)
}

// handleReady pings the ledger backend.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.ReadyTimeout)
	defer cancel()

	checks := map[string]interface{}{
		"rate_limiter": map[string]interface{}{
			"active_clients": s.rateLimiter.ActiveClients(),
			"status":         "ok",
		},
	}

	status, httpStatus := "ready", http.StatusOK
	switch {
	case s.deps.Pinger == nil:
		checks["ledger"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	default:
		if err := s.deps.Pinger.Ping(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Ledger ping failed",
				log.FieldBackend, s.deps.Backend,
				log.FieldError, err)
			checks["ledger"] = fmt.Sprintf("failed: %v", err)
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["ledger"] = "ok"
		}
	}

	NewJSONResponse().Status(httpStatus).Body(map[string]interface{}{
		"status":    status,
		"backend":   s.deps.Backend,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	w.WriteHeader(http.StatusOK)

	writeMetric(w, "http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	writeMetric(w, "http_client_errors_total", "counter", "Responses with a 4xx status", traceMetrics.ClientErrors)
	writeMetric(w, "http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	writeMetric(w, "http_response_time_avg_microseconds", "gauge", "Average response time", traceMetrics.AverageResponseTime)

	writeMetric(w, "reward_lookups_total", "counter", "Reward point computations served", atomic.LoadInt64(&s.metrics.rewardLookups))
	writeMetric(w, "reward_validation_errors_total", "counter", "Requests rejected by validation", atomic.LoadInt64(&s.metrics.validationErrors))
	writeMetric(w, "ledger_errors_total", "counter", "Ledger failures returned as 500", atomic.LoadInt64(&s.metrics.ledgerErrors))
	writeMetric(w, "transactions_recorded_total", "counter", "Purchases written directly to the ledger", atomic.LoadInt64(&s.metrics.transactionsAccepted))
	writeMetric(w, "transactions_queued_total", "counter", "Purchases published for ingestion", atomic.LoadInt64(&s.metrics.transactionsQueued))

	if s.deps.CacheStats != nil {
		stats := s.deps.CacheStats()
		writeMetric(w, "ledger_cache_hits_total", "counter", "Ledger cache hits", int64(stats.Hits))
		writeMetric(w, "ledger_cache_misses_total", "counter", "Ledger cache misses", int64(stats.Misses))
		writeMetric(w, "ledger_cache_evictions_total", "counter", "Ledger cache evictions", int64(stats.Evictions))
	}

	writeMetric(w, "rate_limit_hits_total", "counter", "Total rate limit hits", rateLimitMetrics.TotalHits)
	writeMetric(w, "active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	writeMetric(w, "rate_limit_evicted_clients_total", "counter", "Client windows evicted at capacity", rateLimitMetrics.EvictedClients)
	writeMetric(w, "suspicious_requests_total", "counter", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n\n", time.Since(s.metrics.uptime).Seconds())
}

func writeMetric(w http.ResponseWriter, name, kind, help string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
	fmt.Fprintf(w, "%s %d\n\n", name, value)
}
