package core

import (
	"maps"
	"sort"

	"github.com/shopspring/decimal"
)

// Amounts maps a category or payment method name to cents.
type Amounts map[string]int64

// Clone returns an independent copy; a nil map clones to an empty one.
func (a Amounts) Clone() Amounts {
	out := make(Amounts, len(a))
	maps.Copy(out, a)
	return out
}

// Sum adds every value.
func (a Amounts) Sum() int64 {
	var total int64
	for _, v := range a {
		total += v
	}
	return total
}

// add applies delta to key, dropping the key when it reaches zero and prune is set.
func (a Amounts) add(key string, delta int64, prune bool) {
	v := a[key] + delta
	if v == 0 && prune {
		delete(a, key)
		return
	}
	a[key] = v
}

// Rename moves the value under old to new, summing when new already exists.
// It reports whether old was present.
func (a Amounts) Rename(old, new string) bool {
	v, ok := a[old]
	if !ok {
		return false
	}
	delete(a, old)
	a[new] += v
	return true
}

// Sorted returns the entries ordered by amount descending, then name,
// skipping zero values.
func (a Amounts) Sorted() []CategoryAmount {
	out := make([]CategoryAmount, 0, len(a))
	for name, v := range a {
		if v == 0 {
			continue
		}
		out = append(out, CategoryAmount{Name: name, Amount: Money{Cents: v}})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// BalanceShift is the change an operation made to final balances, replayed
// on every later month by propagation. Reversal marks shifts that undo an
// earlier operation.
type BalanceShift struct {
	Deltas   Amounts
	Reversal bool
}

// EntryShift is the shift produced by an ordinary entry.
func EntryShift(t EntryType, method string, signed int64) BalanceShift {
	d := signed
	if t == Expense {
		d = -signed
	}
	return BalanceShift{Deltas: Amounts{method: d}, Reversal: signed < 0}
}

// TransferShift is the shift produced by a transfer of signed cents.
func TransferShift(from, to string, signed int64) BalanceShift {
	return BalanceShift{Deltas: Amounts{from: -signed, to: signed}, Reversal: signed < 0}
}

// ProfitMargin returns net/income*100 rounded to two decimals, or 0 when
// there is no income.
func ProfitMargin(net, income int64) float64 {
	if income <= 0 {
		return 0
	}
	return decimal.NewFromInt(net).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(income)).
		Round(2).
		InexactFloat64()
}

// DailySummary aggregates one tenant's entries for one UTC day.
type DailySummary struct {
	Date              Date
	IncomeTotal       int64
	ExpenseTotal      int64
	NetProfit         int64
	CategoriesIncome  Amounts
	CategoriesExpense Amounts
}

func NewDailySummary(d Date) DailySummary {
	return DailySummary{Date: d, CategoriesIncome: Amounts{}, CategoriesExpense: Amounts{}}
}

// Apply adds signed cents to the category and the matching total.
func (s *DailySummary) Apply(t EntryType, category string, signed int64) {
	if s.CategoriesIncome == nil {
		s.CategoriesIncome = Amounts{}
	}
	if s.CategoriesExpense == nil {
		s.CategoriesExpense = Amounts{}
	}
	if t == Income {
		s.IncomeTotal += signed
		s.CategoriesIncome.add(category, signed, true)
	} else {
		s.ExpenseTotal += signed
		s.CategoriesExpense.add(category, signed, true)
	}
	s.NetProfit = s.IncomeTotal - s.ExpenseTotal
}

func (s DailySummary) Clone() DailySummary {
	s.CategoriesIncome = s.CategoriesIncome.Clone()
	s.CategoriesExpense = s.CategoriesExpense.Clone()
	return s
}

// Totals are the non-transfer flows of a month.
type Totals struct {
	TotalIncome  int64
	TotalExpense int64
	NetProfit    int64
	ProfitMargin float64
}

// MonthlySummary is one link of a tenant's month chain. MethodUses counts
// the live entries of the month that name each account, as source or
// transfer destination.
type MonthlySummary struct {
	Period            Period
	InitialBalance    Amounts
	FinalBalance      Amounts
	Totals            Totals
	CategoriesIncome  Amounts
	CategoriesExpense Amounts
	MethodUses        Amounts
}

// NewMonthlySummary opens a month whose balances start from seed.
func NewMonthlySummary(p Period, seed Amounts) MonthlySummary {
	return MonthlySummary{
		Period:            p,
		InitialBalance:    seed.Clone(),
		FinalBalance:      seed.Clone(),
		CategoriesIncome:  Amounts{},
		CategoriesExpense: Amounts{},
		MethodUses:        Amounts{},
	}
}

func (m MonthlySummary) Clone() MonthlySummary {
	m.InitialBalance = m.InitialBalance.Clone()
	m.FinalBalance = m.FinalBalance.Clone()
	m.CategoriesIncome = m.CategoriesIncome.Clone()
	m.CategoriesExpense = m.CategoriesExpense.Clone()
	m.MethodUses = m.MethodUses.Clone()
	return m
}

// ApplyEntry records an ordinary entry of signed cents paid through method.
func (m *MonthlySummary) ApplyEntry(t EntryType, category, method string, signed int64) error {
	if IsReserved(category) {
		return InvalidArgument("category %q is reserved for transfers", category)
	}
	if !t.IsValid() {
		return Invalid(ErrInvalidType)
	}
	m.ensureMaps()
	if t == Income {
		m.Totals.TotalIncome += signed
		m.CategoriesIncome.add(category, signed, true)
	} else {
		m.Totals.TotalExpense += signed
		m.CategoriesExpense.add(category, signed, true)
	}
	m.recompute()
	m.countUse(method, signed)
	m.Shift(EntryShift(t, method, signed))
	return nil
}

// ApplyTransfer moves signed cents from one account to another. Forward
// transfers require from to already carry a balance in the month.
func (m *MonthlySummary) ApplyTransfer(from, to string, signed int64) error {
	m.ensureMaps()
	if signed > 0 {
		if _, ok := m.FinalBalance[from]; !ok {
			return FailedPrecondition("source payment method %q not found in summary %s", from, m.Period.Key())
		}
	}
	m.countUse(from, signed)
	m.countUse(to, signed)
	m.Shift(TransferShift(from, to, signed))
	return nil
}

// countUse records one more (signed > 0) or one fewer live entry naming
// account in this month.
func (m *MonthlySummary) countUse(account string, signed int64) {
	switch {
	case signed > 0:
		m.MethodUses.add(account, 1, true)
	case signed < 0:
		m.MethodUses.add(account, -1, true)
	}
}

// Shift applies a balance shift to FinalBalance. A reversal drops an account
// that returns to zero only when it was not carried into the month and no
// live entry of the month still names it, so the key set depends on the
// surviving entries alone.
func (m *MonthlySummary) Shift(s BalanceShift) {
	m.ensureMaps()
	for account, d := range s.Deltas {
		_, carried := m.InitialBalance[account]
		used := m.MethodUses[account] > 0
		m.FinalBalance.add(account, d, s.Reversal && !carried && !used)
	}
}

// Reseed replaces the opening balances with the predecessor's closing ones.
func (m *MonthlySummary) Reseed(prevFinal Amounts) {
	m.InitialBalance = prevFinal.Clone()
}

func (m *MonthlySummary) recompute() {
	m.Totals.NetProfit = m.Totals.TotalIncome - m.Totals.TotalExpense
	m.Totals.ProfitMargin = ProfitMargin(m.Totals.NetProfit, m.Totals.TotalIncome)
}

func (m *MonthlySummary) ensureMaps() {
	if m.InitialBalance == nil {
		m.InitialBalance = Amounts{}
	}
	if m.FinalBalance == nil {
		m.FinalBalance = Amounts{}
	}
	if m.CategoriesIncome == nil {
		m.CategoriesIncome = Amounts{}
	}
	if m.CategoriesExpense == nil {
		m.CategoriesExpense = Amounts{}
	}
	if m.MethodUses == nil {
		m.MethodUses = Amounts{}
	}
}
