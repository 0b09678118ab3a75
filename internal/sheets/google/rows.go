package google

import (
	"fmt"
	"strconv"
	"strings"

	"bilancio/internal/core"
)

// Column layout of the export sheet.
var header = []any{
	"Tenant", "Period", "Initial balance", "Income", "Expense",
	"Net profit", "Profit margin", "Final balance",
	"Income by category", "Expense by category", "Balances",
}

const lastColumn = "K"

func rowKey(tenant, period string) string {
	return strings.TrimSpace(tenant) + "|" + strings.TrimSpace(period)
}

// summaryRow renders one monthly summary in header order. Amounts are plain
// decimal strings so USER_ENTERED input turns them into numbers.
func summaryRow(tenant string, m core.MonthlySummary) []any {
	return []any{
		tenant,
		m.Period.Key(),
		core.Cents(m.InitialBalance.Sum()).String(),
		core.Cents(m.Totals.TotalIncome).String(),
		core.Cents(m.Totals.TotalExpense).String(),
		core.Cents(m.Totals.NetProfit).String(),
		m.Totals.ProfitMargin,
		core.Cents(m.FinalBalance.Sum()).String(),
		formatAmounts(m.CategoriesIncome),
		formatAmounts(m.CategoriesExpense),
		formatAmounts(m.FinalBalance),
	}
}

// formatAmounts renders "Name: 1.00; Other: 2.50", largest first.
func formatAmounts(a core.Amounts) string {
	parts := make([]string, 0, len(a))
	for _, ca := range a.Sorted() {
		parts = append(parts, fmt.Sprintf("%s: %s", ca.Name, ca.Amount.String()))
	}
	return strings.Join(parts, "; ")
}

// indexRows maps tenant|period to the 1-based sheet row of every data row.
func indexRows(values [][]any) map[string]int {
	out := make(map[string]int, len(values))
	for i, row := range values {
		cols := toStrings(row)
		if len(cols) < 2 || cols[0] == "" || cols[1] == "" {
			continue
		}
		if _, err := core.ParsePeriod(cols[1]); err != nil {
			continue
		}
		out[rowKey(cols[0], cols[1])] = i + 1
	}
	return out
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
