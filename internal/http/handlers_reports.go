package http

import (
	"net/http"

	"bilancio/internal/core"
	"bilancio/internal/report"
)

// handleSummary answers /finances/summary?range&view&year&month&day.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if s.summaries == nil {
		writeError(w, r, core.Internal("summaries not configured", nil))
		return
	}
	q := r.URL.Query()
	req := report.Request{
		Range: sanitizeInput(q.Get("range")),
		View:  sanitizeInput(q.Get("view")),
		Year:  sanitizeInput(q.Get("year")),
		Month: sanitizeInput(q.Get("month")),
		Day:   sanitizeInput(q.Get("day")),
	}
	sum, err := s.summaries.Summarize(r.Context(), TenantFromContext(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(sum).Write(w)
}

// handleRetrainForecast sends the tenant's net-profit history to the
// forecasting service and relays its answer.
func (s *Server) handleRetrainForecast(w http.ResponseWriter, r *http.Request) {
	if s.forecast == nil {
		writeError(w, r, core.Internal("forecast service not configured", nil))
		return
	}
	series, err := s.ledger.NetProfitSeries(r.Context(), TenantFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	body, err := s.forecast.RetrainNetProfit(r.Context(), series)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(body).Write(w)
}
