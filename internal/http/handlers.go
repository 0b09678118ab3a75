package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"bilancio/internal/cache"
)

// sizer is implemented by caches that report their entry count.
type sizer interface {
	Size() int
}

// statser is implemented by caches that expose lookup counters.
type statser interface {
	Stats() cache.Stats
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.ledger == nil {
		checks["storage"] = "not_configured"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else if err := s.ledger.Ready(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", "check", "storage", "error", err)
		checks["storage"] = "failed"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
	}

	if c, ok := s.summaries.(sizer); ok {
		checks["summary_cache"] = map[string]any{"entries": c.Size(), "status": "ok"}
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}
	if s.forecast == nil {
		checks["forecast"] = "not_configured"
	} else {
		checks["forecast"] = "ok"
	}

	NewJSONResponse().Status(httpStatus).Body(map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides request and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()
	uptime := s.now().Sub(s.started)

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_requests_client_errors_total Requests answered with a 4xx status\n")
	fmt.Fprintf(w, "# TYPE http_requests_client_errors_total counter\n")
	fmt.Fprintf(w, "http_requests_client_errors_total %d\n\n", traceMetrics.ClientErrors)

	fmt.Fprintf(w, "# HELP http_requests_server_errors_total Requests answered with a 5xx status\n")
	fmt.Fprintf(w, "# TYPE http_requests_server_errors_total counter\n")
	fmt.Fprintf(w, "http_requests_server_errors_total %d\n\n", traceMetrics.ServerErrors)

	fmt.Fprintf(w, "# HELP http_response_time_avg_microseconds Mean response time\n")
	fmt.Fprintf(w, "# TYPE http_response_time_avg_microseconds gauge\n")
	fmt.Fprintf(w, "http_response_time_avg_microseconds %d\n\n", traceMetrics.AverageResponseTime)

	if c, ok := s.summaries.(statser); ok {
		st := c.Stats()
		fmt.Fprintf(w, "# HELP summary_cache_entries Current summary cache entries\n")
		fmt.Fprintf(w, "# TYPE summary_cache_entries gauge\n")
		fmt.Fprintf(w, "summary_cache_entries %d\n\n", st.Entries)

		fmt.Fprintf(w, "# HELP summary_cache_hits_total Summary cache lookups served from memory\n")
		fmt.Fprintf(w, "# TYPE summary_cache_hits_total counter\n")
		fmt.Fprintf(w, "summary_cache_hits_total %d\n\n", st.Hits)

		fmt.Fprintf(w, "# HELP summary_cache_misses_total Summary cache lookups that recomputed\n")
		fmt.Fprintf(w, "# TYPE summary_cache_misses_total counter\n")
		fmt.Fprintf(w, "summary_cache_misses_total %d\n\n", st.Misses)

		fmt.Fprintf(w, "# HELP summary_cache_evictions_total Entries dropped to stay within size\n")
		fmt.Fprintf(w, "# TYPE summary_cache_evictions_total counter\n")
		fmt.Fprintf(w, "summary_cache_evictions_total %d\n\n", st.Evictions)
	}

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", rateLimitMetrics.ClientCount)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", uptime.Seconds())
}
