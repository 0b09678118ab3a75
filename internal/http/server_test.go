package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"bilancio/internal/cache"
	"bilancio/internal/core"
	"bilancio/internal/ledger"
	"bilancio/internal/middleware/ratelimit"
	"bilancio/internal/report"
	"bilancio/internal/storage/memory"
)

const testSecret = "test-secret"

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeForecaster struct {
	got []ledger.NetProfitPoint
}

func (f *fakeForecaster) RetrainNetProfit(_ context.Context, series []ledger.NetProfitPoint) (json.RawMessage, error) {
	f.got = series
	return json.RawMessage(`{"status":"trained"}`), nil
}

type testEnv struct {
	srv      *Server
	svc      *ledger.Service
	forecast *fakeForecaster
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.New(
		[]core.Category{
			{Name: "Sales", Type: core.Income, Active: true},
			{Name: "Food", Type: core.Expense, Active: true},
		},
		[]core.PaymentMethod{
			{Name: "Bank", Type: core.Debit, Active: true},
			{Name: "Cash", Type: core.Cash, Active: true},
			{Name: "Visa", Type: core.Credit, Active: true},
		},
	)
	svc := ledger.NewService(store, nil, nil, ledger.Options{
		IncludeTransfersInDaily: true,
		Now:                     func() time.Time { return fixedNow },
	})
	summaries := cache.NewSummaryCache(report.New(svc, nil, func() time.Time { return fixedNow }), 16, time.Minute, nil)
	svc.Observe(summaries)

	fc := &fakeForecaster{}
	srv := NewServer(":0", Deps{
		Ledger:    svc,
		Summaries: summaries,
		Forecast:  fc,
		Auth:      NewAuthenticator(testSecret),
		RateLimit: ratelimit.Config{RequestsPerMinute: 6000, Burst: 1000},
		Now:       func() time.Time { return fixedNow },
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, svc: svc, forecast: fc}
}

func token(t *testing.T, tenant string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"company_id": tenant}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return e.doAs(t, "acme", method, path, body)
}

func (e *testEnv) doAs(t *testing.T, tenant, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token(t, tenant))
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := httptest.NewRecorder()
		env.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body.String())
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s: missing X-Request-ID", path)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s: missing security headers", path)
		}
	}
}

func TestRequiresToken(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage", "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/finances/transactions", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			env.srv.Handler.ServeHTTP(rr, req)
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("status=%d", rr.Code)
			}
			if body := decode[ErrorBody](t, rr); body.Code != "unauthorized" {
				t.Fatalf("body=%+v", body)
			}
		})
	}
}

func TestEntryLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/finances/transactions",
		`{"date":"2025-01-15","type":"income","category":"Sales","amount":100.50,"method":"Bank","concept":"invoice 1"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	created := decode[entryView](t, rr)
	if created.ID == "" || created.Amount.Cents != 10050 || created.Date != "2025-01-15" {
		t.Fatalf("created = %+v", created)
	}
	if loc := rr.Header().Get("Location"); loc != "/finances/transactions/"+created.ID {
		t.Fatalf("Location = %q", loc)
	}

	rr = env.do(t, http.MethodGet, "/finances/transactions/"+created.ID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}

	rr = env.do(t, http.MethodPatch, "/finances/transactions/"+created.ID, `{"amount":"80","date":"2025-02-01"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	updated := decode[entryView](t, rr)
	if updated.Amount.Cents != 8000 || updated.Date != "2025-02-01" || updated.Concept != "invoice 1" {
		t.Fatalf("updated = %+v", updated)
	}

	months := decode[[]monthlyView](t, env.do(t, http.MethodGet, "/monitoring/monthly-summary?year=2025", ""))
	if len(months) != 2 {
		t.Fatalf("months = %+v", months)
	}
	if months[0].ID != "2025-01" || months[0].Totals.TotalIncome.Cents != 0 {
		t.Fatalf("january after update = %+v", months[0])
	}
	if months[1].ID != "2025-02" || months[1].FinalBalance["Bank"].Cents != 8000 {
		t.Fatalf("february after update = %+v", months[1])
	}

	list := decode[[]entryView](t, env.do(t, http.MethodGet, "/finances/transactions?from=2025-02-01&to=2025-02-01", ""))
	if len(list) != 1 || list[0].ID != updated.ID {
		t.Fatalf("list = %+v", list)
	}

	rr = env.do(t, http.MethodDelete, "/finances/transactions/"+updated.ID, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/finances/transactions/"+updated.ID, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get deleted status=%d", rr.Code)
	}
	if body := decode[ErrorBody](t, rr); body.Code != "not_found" || body.RequestID == "" {
		t.Fatalf("error body = %+v", body)
	}
}

func TestCreateEntryValidation(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"malformed", `{"date":`},
		{"unknown field", `{"date":"2025-01-01","type":"income","category":"Sales","amount":1,"method":"Bank","concept":"x","extra":1}`},
		{"bad date", `{"date":"01/01/2025","type":"income","category":"Sales","amount":1,"method":"Bank","concept":"x"}`},
		{"bad amount", `{"date":"2025-01-01","type":"income","category":"Sales","amount":"abc","method":"Bank","concept":"x"}`},
		{"zero amount", `{"date":"2025-01-01","type":"income","category":"Sales","amount":0,"method":"Bank","concept":"x"}`},
		{"bad type", `{"date":"2025-01-01","type":"gift","category":"Sales","amount":1,"method":"Bank","concept":"x"}`},
		{"missing concept", `{"date":"2025-01-01","type":"income","category":"Sales","amount":1,"method":"Bank"}`},
		{"reserved category", `{"date":"2025-01-01","type":"expense","category":"free transfer","amount":1,"method":"Bank","concept":"x"}`},
		{"two objects", `{"date":"2025-01-01"} {}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/finances/transactions", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestTransferEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/finances/transactions",
		`{"date":"2025-01-05","type":"income","category":"Sales","amount":500,"method":"Bank","concept":"seed"}`)
	env.do(t, http.MethodPost, "/finances/transactions",
		`{"date":"2025-02-05","type":"expense","category":"Food","amount":20,"method":"Bank","concept":"lunch"}`)

	rr := env.do(t, http.MethodPost, "/finances/transfers",
		`{"date":"2025-01-20","type":"transfer","from":"Bank","to":"Cash","amount":100}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("transfer status=%d body=%s", rr.Code, rr.Body.String())
	}
	res := decode[transferResponse](t, rr)
	if res.MovementID == "" || strings.Join(res.UpdatedMonths, ",") != "2025-01,2025-02" {
		t.Fatalf("response = %+v", res)
	}

	// Visa carries no balance in January.
	rr = env.do(t, http.MethodPost, "/finances/transfers",
		`{"date":"2025-01-21","type":"pay","from":"Visa","to":"Bank","amount":10}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("precondition status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/finances/transfers",
		`{"date":"2025-01-21","type":"transfer","from":"Bank","to":"Nowhere","amount":10}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown method status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestMonthDataAndDailySummary(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/finances/transactions",
		`{"date":"2025-03-02","type":"income","category":"Sales","amount":40,"method":"Cash","concept":"a"}`)
	env.do(t, http.MethodPost, "/finances/transactions",
		`{"date":"2025-03-03","type":"expense","category":"Food","amount":15,"method":"Cash","concept":"b"}`)

	rr := env.do(t, http.MethodGet, "/monitoring/summary-and-transactions/2025/3", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	data := decode[monthDataResponse](t, rr)
	if len(data.Transactions) != 2 || data.Summary == nil || data.Summary.Totals.NetProfit.Cents != 2500 {
		t.Fatalf("month data = %+v", data)
	}
	if strings.Join(data.PaymentMethods, ",") != "Bank,Cash,Visa" {
		t.Fatalf("payment methods = %v", data.PaymentMethods)
	}

	empty := decode[monthDataResponse](t, env.do(t, http.MethodGet, "/monitoring/summary-and-transactions/2024/3", ""))
	if empty.Summary != nil || len(empty.Transactions) != 0 {
		t.Fatalf("empty month = %+v", empty)
	}
	if rr := env.do(t, http.MethodGet, "/monitoring/summary-and-transactions/2025/13", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("month 13 status=%d", rr.Code)
	}

	days := decode[[]dailyView](t, env.do(t, http.MethodGet, "/monitoring/daily-summary?from=2025-03-01&to=2025-03-03", ""))
	if len(days) != 2 || days[1].Date != "2025-03-03" || days[1].ExpenseTotal.Cents != 1500 {
		t.Fatalf("days = %+v", days)
	}
	if rr := env.do(t, http.MethodGet, "/monitoring/daily-summary?from=2025-03-05&to=2025-03-01", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("reversed range status=%d", rr.Code)
	}
}

func TestDailySummaryByDateAndMonth(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/finances/transactions",
		`{"date":"2025-03-02","type":"income","category":"Sales","amount":40,"method":"Cash","concept":"a"}`)
	env.do(t, http.MethodPost, "/finances/transactions",
		`{"date":"2025-03-31","type":"expense","category":"Food","amount":15,"method":"Cash","concept":"b"}`)
	env.do(t, http.MethodPost, "/finances/transactions",
		`{"date":"2025-04-01","type":"income","category":"Sales","amount":7,"method":"Cash","concept":"c"}`)

	one := decode[[]dailyView](t, env.do(t, http.MethodGet, "/monitoring/daily-summary?date=2025-03-31", ""))
	if len(one) != 1 || one[0].Date != "2025-03-31" || one[0].ExpenseTotal.Cents != 1500 {
		t.Fatalf("by date = %+v", one)
	}
	none := decode[[]dailyView](t, env.do(t, http.MethodGet, "/monitoring/daily-summary?date=2025-03-15", ""))
	if len(none) != 0 {
		t.Fatalf("day without entries = %+v", none)
	}

	march := decode[[]dailyView](t, env.do(t, http.MethodGet, "/monitoring/daily-summary?year=2025&month=3", ""))
	if len(march) != 2 || march[0].Date != "2025-03-02" || march[1].Date != "2025-03-31" {
		t.Fatalf("by month = %+v", march)
	}

	for _, target := range []string{
		"/monitoring/daily-summary?date=2025-02-30",
		"/monitoring/daily-summary?year=2025&month=13",
		"/monitoring/daily-summary?year=2025",
		"/monitoring/daily-summary?date=2025-03-02&year=2025&month=3",
		"/monitoring/daily-summary?from=2025-03-01&to=2025-03-03&date=2025-03-02",
	} {
		if rr := env.do(t, http.MethodGet, target, ""); rr.Code != http.StatusBadRequest {
			t.Errorf("%s status=%d, want 400", target, rr.Code)
		}
	}
}

func TestSummaryEndpointIsCachedAndInvalidated(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/finances/transactions",
		`{"date":"2025-03-10","type":"income","category":"Sales","amount":10,"method":"Bank","concept":"a"}`)

	first := decode[report.Summary](t, env.do(t, http.MethodGet, "/finances/summary?range=today", ""))
	if first.Totals.Income.Cents != 1000 {
		t.Fatalf("first = %+v", first.Totals)
	}

	env.do(t, http.MethodPost, "/finances/transactions",
		`{"date":"2025-03-10","type":"income","category":"Sales","amount":5,"method":"Bank","concept":"b"}`)
	second := decode[report.Summary](t, env.do(t, http.MethodGet, "/finances/summary?range=today", ""))
	if second.Totals.Income.Cents != 1500 {
		t.Fatalf("summary not invalidated: %+v", second.Totals)
	}

	other := decode[report.Summary](t, env.doAs(t, "other", http.MethodGet, "/finances/summary?range=today", ""))
	if other.Totals.Income.Cents != 0 {
		t.Fatalf("tenants leak: %+v", other.Totals)
	}

	if rr := env.do(t, http.MethodGet, "/finances/summary?range=forever", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad range status=%d", rr.Code)
	}
}

func TestDirectoryEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/monitoring/categories", `{"name":"Rent","type":"expense"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create category status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr := env.do(t, http.MethodPost, "/monitoring/categories", `{"name":"Rent","type":"expense"}`); rr.Code != http.StatusConflict {
		t.Fatalf("duplicate category status=%d", rr.Code)
	}

	env.do(t, http.MethodPost, "/finances/transactions",
		`{"date":"2025-03-01","type":"expense","category":"Rent","amount":700,"method":"Bank","concept":"march"}`)
	rr = env.do(t, http.MethodPatch, "/monitoring/categories/Rent", `{"newName":"Housing"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("rename status=%d body=%s", rr.Code, rr.Body.String())
	}
	list := decode[[]entryView](t, env.do(t, http.MethodGet, "/finances/transactions?category=Housing", ""))
	if len(list) != 1 {
		t.Fatalf("renamed entries = %+v", list)
	}

	if rr := env.do(t, http.MethodDelete, "/monitoring/categories/Food", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("deactivate status=%d", rr.Code)
	}
	active := decode[[]categoryView](t, env.do(t, http.MethodGet, "/monitoring/categories?active=true", ""))
	for _, c := range active {
		if c.Name == "Food" {
			t.Fatalf("inactive category listed: %+v", active)
		}
	}

	rr = env.do(t, http.MethodPatch, "/monitoring/payment-methods/Cash", `{"color":"#00AA00"}`)
	if rr.Code != http.StatusOK || decode[paymentMethodView](t, rr).Color != "#00AA00" {
		t.Fatalf("color update status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr := env.do(t, http.MethodPatch, "/monitoring/payment-methods/Cash", `{"color":"green"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad color status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodPatch, "/monitoring/payment-methods/Cash", `{}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("empty patch status=%d", rr.Code)
	}

	// Bank holds -700.00 in the latest month.
	if rr := env.do(t, http.MethodDelete, "/monitoring/payment-methods/Bank", ""); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("deactivate funded method status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr := env.do(t, http.MethodDelete, "/monitoring/payment-methods/Visa", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("deactivate empty method status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodPost, "/monitoring/payment-methods", `{"name":"Amex","type":"credit","color":"#123456"}`); rr.Code != http.StatusCreated {
		t.Fatalf("create method status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestRetrainForecast(t *testing.T) {
	env := newTestEnv(t)
	if rr := env.do(t, http.MethodPost, "/forecast/net-profit/retrain", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("short history status=%d body=%s", rr.Code, rr.Body.String())
	}

	for m := 1; m <= 12; m++ {
		_, err := env.svc.CreateEntry(context.Background(), "acme", core.EntryInput{
			Date: core.NewDate(2024, m, 1), Type: core.Income, Category: "Sales",
			Amount: core.Cents(int64(m) * 100), Method: "Bank", Note: "x",
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	rr := env.do(t, http.MethodPost, "/forecast/net-profit/retrain", "")
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != `{"status":"trained"}` {
		t.Fatalf("retrain status=%d body=%s", rr.Code, rr.Body.String())
	}
	if len(env.forecast.got) != 12 || env.forecast.got[11].Month != "2024-12" {
		t.Fatalf("series = %+v", env.forecast.got)
	}
}

func TestRateLimitAppliesToMutations(t *testing.T) {
	store := memory.New(nil, nil)
	svc := ledger.NewService(store, nil, nil, ledger.Options{})
	srv := NewServer(":0", Deps{
		Ledger:    svc,
		Auth:      NewAuthenticator(testSecret),
		RateLimit: ratelimit.Config{RequestsPerMinute: 1, Burst: 1},
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	env := &testEnv{srv: srv, svc: svc}

	body := `{"name":"Rent","type":"expense"}`
	if rr := env.do(t, http.MethodPost, "/monitoring/categories", body); rr.Code != http.StatusCreated {
		t.Fatalf("first status=%d", rr.Code)
	}
	rr := env.do(t, http.MethodPost, "/monitoring/categories", body)
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Fatalf("second status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/monitoring/categories", ""); rr.Code != http.StatusOK {
		t.Fatalf("reads are not limited, status=%d", rr.Code)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if err := env.srv.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	if err := env.srv.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
}
