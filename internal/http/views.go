package http

import (
	"time"

	"bilancio/internal/core"
)

// JSON representations of the ledger records.

type entryView struct {
	ID        string         `json:"id"`
	Date      string         `json:"date"`
	Type      core.EntryType `json:"type"`
	Category  string         `json:"category"`
	Amount    core.Money     `json:"amount"`
	Method    string         `json:"method"`
	Concept   string         `json:"concept"`
	To        string         `json:"to,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func newEntryView(e core.LedgerEntry) entryView {
	return entryView{
		ID:        e.ID,
		Date:      e.Date.Key(),
		Type:      e.Type,
		Category:  e.Category,
		Amount:    e.Amount,
		Method:    e.Method,
		Concept:   e.Note,
		To:        e.To,
		CreatedAt: e.CreatedAt.UTC(),
	}
}

func newEntryViews(es []core.LedgerEntry) []entryView {
	out := make([]entryView, 0, len(es))
	for _, e := range es {
		out = append(out, newEntryView(e))
	}
	return out
}

// moneyMap renders cents keyed by name as decimal amounts.
func moneyMap(a core.Amounts) map[string]core.Money {
	out := make(map[string]core.Money, len(a))
	for k, v := range a {
		out[k] = core.Cents(v)
	}
	return out
}

type totalsView struct {
	TotalIncome  core.Money `json:"total_income"`
	TotalExpense core.Money `json:"total_expense"`
	NetProfit    core.Money `json:"net_profit"`
	ProfitMargin float64    `json:"profit_margin"`
}

type monthlyView struct {
	ID                string                `json:"id"`
	Year              int                   `json:"year"`
	Month             int                   `json:"month"`
	InitialBalance    map[string]core.Money `json:"initial_balance"`
	Totals            totalsView            `json:"totals"`
	CategoriesIncome  map[string]core.Money `json:"categories_income"`
	CategoriesExpense map[string]core.Money `json:"categories_expense"`
	FinalBalance      map[string]core.Money `json:"final_balance"`
}

func newMonthlyView(m core.MonthlySummary) monthlyView {
	return monthlyView{
		ID:             m.Period.Key(),
		Year:           m.Period.Year,
		Month:          int(m.Period.Month),
		InitialBalance: moneyMap(m.InitialBalance),
		Totals: totalsView{
			TotalIncome:  core.Cents(m.Totals.TotalIncome),
			TotalExpense: core.Cents(m.Totals.TotalExpense),
			NetProfit:    core.Cents(m.Totals.NetProfit),
			ProfitMargin: m.Totals.ProfitMargin,
		},
		CategoriesIncome:  moneyMap(m.CategoriesIncome),
		CategoriesExpense: moneyMap(m.CategoriesExpense),
		FinalBalance:      moneyMap(m.FinalBalance),
	}
}

func newMonthlyViews(ms []core.MonthlySummary) []monthlyView {
	out := make([]monthlyView, 0, len(ms))
	for _, m := range ms {
		out = append(out, newMonthlyView(m))
	}
	return out
}

type dailyView struct {
	Date              string                `json:"date"`
	IncomeTotal       core.Money            `json:"income_total"`
	ExpenseTotal      core.Money            `json:"expense_total"`
	NetProfit         core.Money            `json:"net_profit"`
	CategoriesIncome  map[string]core.Money `json:"categories_income"`
	CategoriesExpense map[string]core.Money `json:"categories_expense"`
}

func newDailyViews(ds []core.DailySummary) []dailyView {
	out := make([]dailyView, 0, len(ds))
	for _, d := range ds {
		out = append(out, dailyView{
			Date:              d.Date.Key(),
			IncomeTotal:       core.Cents(d.IncomeTotal),
			ExpenseTotal:      core.Cents(d.ExpenseTotal),
			NetProfit:         core.Cents(d.NetProfit),
			CategoriesIncome:  moneyMap(d.CategoriesIncome),
			CategoriesExpense: moneyMap(d.CategoriesExpense),
		})
	}
	return out
}

type categoryView struct {
	Name     string         `json:"name"`
	Type     core.EntryType `json:"type"`
	IsActive bool           `json:"is_active"`
}

func newCategoryView(c core.Category) categoryView {
	return categoryView{Name: c.Name, Type: c.Type, IsActive: c.Active}
}

type paymentMethodView struct {
	Name     string          `json:"name"`
	Type     core.MethodType `json:"type"`
	Color    string          `json:"color,omitempty"`
	IsActive bool            `json:"is_active"`
}

func newPaymentMethodView(m core.PaymentMethod) paymentMethodView {
	return paymentMethodView{Name: m.Name, Type: m.Type, Color: m.Color, IsActive: m.Active}
}
