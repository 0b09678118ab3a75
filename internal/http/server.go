package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"bilancio/internal/cache"
	"bilancio/internal/ledger"
	"bilancio/internal/log"
	"bilancio/internal/middleware/ratelimit"
	"bilancio/internal/middleware/security"
	"bilancio/internal/middleware/trace"
)

// Forecaster forwards a net-profit series to the forecasting service.
type Forecaster interface {
	RetrainNetProfit(ctx context.Context, series []ledger.NetProfitPoint) (json.RawMessage, error)
}

// Deps are the collaborators of the HTTP server.
type Deps struct {
	Ledger    *ledger.Service
	Summaries cache.Summarizer
	Forecast  Forecaster
	Auth      *Authenticator
	Logger    *log.Logger
	RateLimit ratelimit.Config
	// TrustedProxies are CIDRs whose forwarding headers are honored.
	TrustedProxies []string
	Now            func() time.Time
}

type Server struct {
	http.Server
	ledger    *ledger.Service
	summaries cache.Summarizer
	forecast  Forecaster
	auth      *Authenticator
	logger    *log.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	headers          *security.HeadersMiddleware

	started      time.Time
	now          func() time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	auth := deps.Auth
	if auth == nil {
		auth = NewAuthenticator("")
	}

	detector := security.NewDetector()
	for _, cidr := range deps.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring invalid trusted proxy", "cidr", cidr, log.FieldError, err)
		}
	}

	s := &Server{
		ledger:           deps.Ledger,
		summaries:        deps.Summaries,
		forecast:         deps.Forecast,
		auth:             auth,
		logger:           logger.WithComponent(log.ComponentHTTP),
		rateLimiter:      ratelimit.NewLimiter(deps.RateLimit),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(logger, detector.ExtractClientIP),
		headers:          security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		started:          now(),
		now:              now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	s.route(mux, "POST /finances/transactions", s.handleCreateEntry)
	s.route(mux, "GET /finances/transactions", s.handleListEntries)
	s.route(mux, "GET /finances/transactions/{id}", s.handleGetEntry)
	s.route(mux, "PATCH /finances/transactions/{id}", s.handleUpdateEntry)
	s.route(mux, "DELETE /finances/transactions/{id}", s.handleDeleteEntry)
	s.route(mux, "POST /finances/transfers", s.handleTransfer)
	s.route(mux, "GET /finances/summary", s.handleSummary)

	s.route(mux, "GET /monitoring/summary-and-transactions/{year}/{month}", s.handleMonthData)
	s.route(mux, "GET /monitoring/monthly-summary", s.handleMonthlySummary)
	s.route(mux, "GET /monitoring/daily-summary", s.handleDailySummary)
	s.route(mux, "GET /monitoring/categories", s.handleListCategories)
	s.route(mux, "POST /monitoring/categories", s.handleCreateCategory)
	s.route(mux, "PATCH /monitoring/categories/{name}", s.handleRenameCategory)
	s.route(mux, "DELETE /monitoring/categories/{name}", s.handleDeleteCategory)
	s.route(mux, "GET /monitoring/payment-methods", s.handleListPaymentMethods)
	s.route(mux, "POST /monitoring/payment-methods", s.handleCreatePaymentMethod)
	s.route(mux, "PATCH /monitoring/payment-methods/{name}", s.handleUpdatePaymentMethod)
	s.route(mux, "DELETE /monitoring/payment-methods/{name}", s.handleDeletePaymentMethod)

	s.route(mux, "POST /forecast/net-profit/retrain", s.handleRetrainForecast)

	limited := s.rateLimiter.Middleware(detector.ExtractClientIP, isMutation, s.onRateLimited)(mux)
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.traceMiddleware.Middleware(s.headers.Middleware(detector.Middleware(limited))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// route registers an authenticated handler.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, s.auth.Middleware(h))
}

func isMutation(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldComponent, log.ComponentRateLimit,
		log.FieldErrorType, log.ErrorTypeRateLimit,
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequestsError().Write(w)
}

// Shutdown stops background goroutines and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
