package http

import (
	"net/http"
	"strconv"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
)

// maxDailyRangeDays bounds /monitoring/daily-summary queries.
const maxDailyRangeDays = 366

type monthDataResponse struct {
	Transactions      []entryView  `json:"transactions"`
	Summary           *monthlyView `json:"summary"`
	CategoriesIncome  []string     `json:"categories_income"`
	CategoriesExpense []string     `json:"categories_expense"`
	PaymentMethods    []string     `json:"payment_methods"`
}

func (s *Server) handleMonthData(w http.ResponseWriter, r *http.Request) {
	p, err := parsePeriodParams(r.PathValue("year"), r.PathValue("month"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := s.ledger.MonthData(r.Context(), TenantFromContext(r.Context()), p)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := monthDataResponse{
		Transactions:      newEntryViews(data.Entries),
		CategoriesIncome:  data.IncomeCategories,
		CategoriesExpense: data.ExpenseCategories,
		PaymentMethods:    data.PaymentMethods,
	}
	if data.Summary != nil {
		v := newMonthlyView(*data.Summary)
		resp.Summary = &v
	}
	NewJSONResponse().Body(resp).Write(w)
}

// handleMonthlySummary returns the stored months of ?year=, defaulting to
// the current year.
func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	year := s.now().UTC().Year()
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := parseIntParam("year", v, 1, 9999)
		if err != nil {
			writeError(w, r, err)
			return
		}
		year = y
	}
	months, err := s.ledger.MonthlyByYear(r.Context(), TenantFromContext(r.Context()), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newMonthlyViews(months)).Write(w)
}

// handleDailySummary returns existing day buckets for one of three
// selections: ?date= for a single day, ?year=&month= for a calendar month,
// or the inclusive ?from=&to= range.
func (s *Server) handleDailySummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tenant := TenantFromContext(r.Context())
	byDate := q.Has("date")
	byMonth := q.Has("year") || q.Has("month")
	byRange := q.Has("from") || q.Has("to")
	if (byDate && byMonth) || (byDate && byRange) || (byMonth && byRange) {
		writeError(w, r, core.InvalidArgument("use only one of date, year/month or from/to"))
		return
	}

	var (
		days []core.DailySummary
		err  error
	)
	switch {
	case byDate:
		days, err = s.dailyByDate(r, tenant, q.Get("date"))
	case byMonth:
		days, err = s.dailyByMonth(r, tenant, q.Get("year"), q.Get("month"))
	default:
		days, err = s.dailyByRange(r, tenant, q.Get("from"), q.Get("to"))
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newDailyViews(days)).Write(w)
}

func (s *Server) dailyByDate(r *http.Request, tenant, value string) ([]core.DailySummary, error) {
	d, err := parseDateField("date", value)
	if err != nil {
		return nil, err
	}
	day, ok, err := s.ledger.DailyByDate(r.Context(), tenant, d)
	if err != nil || !ok {
		return []core.DailySummary{}, err
	}
	return []core.DailySummary{day}, nil
}

func (s *Server) dailyByMonth(r *http.Request, tenant, year, month string) ([]core.DailySummary, error) {
	p, err := parsePeriodParams(year, month)
	if err != nil {
		return nil, err
	}
	return s.ledger.DailyByMonth(r.Context(), tenant, p)
}

func (s *Server) dailyByRange(r *http.Request, tenant, fromValue, toValue string) ([]core.DailySummary, error) {
	from, err := parseDateField("from", fromValue)
	if err != nil {
		return nil, err
	}
	to, err := parseDateField("to", toValue)
	if err != nil {
		return nil, err
	}
	if to.Before(from.Time) {
		return nil, core.InvalidArgument("to must not precede from")
	}
	if to.Sub(from.Time).Hours()/24 >= maxDailyRangeDays {
		return nil, core.InvalidArgument("range exceeds %d days", maxDailyRangeDays)
	}
	return s.ledger.DailyRange(r.Context(), tenant, from, dayAfter(to))
}

type createCategoryRequest struct {
	Name string         `json:"name"`
	Type core.EntryType `json:"type"`
}

type renameCategoryRequest struct {
	NewName string `json:"newName"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.ledger.Categories(r.Context(), TenantFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	onlyActive := r.URL.Query().Get("active") == "true"
	out := make([]categoryView, 0, len(cats))
	for _, c := range cats {
		if onlyActive && !c.Active {
			continue
		}
		out = append(out, newCategoryView(c))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.ledger.CreateCategory(r.Context(), TenantFromContext(r.Context()), core.Category{
		Name: sanitizeInput(req.Name),
		Type: req.Type,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(newCategoryView(c)).Write(w)
}

func (s *Server) handleRenameCategory(w http.ResponseWriter, r *http.Request) {
	name, err := pathName(r, "name")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req renameCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	newName := sanitizeInput(req.NewName)
	if err := s.ledger.RenameCategory(r.Context(), TenantFromContext(r.Context()), name, newName); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(messageResponse{
		Message: "Category " + strconv.Quote(name) + " renamed to " + strconv.Quote(newName),
	}).Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	name, err := pathName(r, "name")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.DeactivateCategory(r.Context(), TenantFromContext(r.Context()), name); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

type createPaymentMethodRequest struct {
	Name  string          `json:"name"`
	Type  core.MethodType `json:"type"`
	Color string          `json:"color,omitempty"`
}

type updatePaymentMethodRequest struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
}

func (s *Server) handleListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := s.ledger.PaymentMethods(r.Context(), TenantFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	onlyActive := r.URL.Query().Get("active") == "true"
	out := make([]paymentMethodView, 0, len(methods))
	for _, m := range methods {
		if onlyActive && !m.Active {
			continue
		}
		out = append(out, newPaymentMethodView(m))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleCreatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req createPaymentMethodRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.ledger.CreatePaymentMethod(r.Context(), TenantFromContext(r.Context()), core.PaymentMethod{
		Name:  sanitizeInput(req.Name),
		Type:  req.Type,
		Color: sanitizeInput(req.Color),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(newPaymentMethodView(m)).Write(w)
}

func (s *Server) handleUpdatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	name, err := pathName(r, "name")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updatePaymentMethodRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Name == nil && req.Color == nil {
		writeError(w, r, core.InvalidArgument("name or color is required"))
		return
	}
	m, err := s.ledger.UpdatePaymentMethod(r.Context(), TenantFromContext(r.Context()), name, ledger.MethodPatch{
		Name:  sanitizePtr(req.Name),
		Color: sanitizePtr(req.Color),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newPaymentMethodView(m)).Write(w)
}

func (s *Server) handleDeletePaymentMethod(w http.ResponseWriter, r *http.Request) {
	name, err := pathName(r, "name")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.DeactivatePaymentMethod(r.Context(), TenantFromContext(r.Context()), name); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
