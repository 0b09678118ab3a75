package core

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestDailySummaryApplyKeepsCategorySums(t *testing.T) {
	s := NewDailySummary(NewDate(2025, 3, 1))
	s.Apply(Income, "Sales", 1000)
	s.Apply(Expense, "Rent", 400)
	s.Apply(Expense, "Food", 150)
	s.Apply(Expense, "Food", -150)

	if s.IncomeTotal != s.CategoriesIncome.Sum() || s.ExpenseTotal != s.CategoriesExpense.Sum() {
		t.Fatalf("category sums drifted: %+v", s)
	}
	if s.NetProfit != 600 {
		t.Fatalf("net profit = %d", s.NetProfit)
	}
	if _, ok := s.CategoriesExpense["Food"]; ok {
		t.Fatal("zeroed category should be dropped")
	}
}

func TestMonthlyApplyEntry(t *testing.T) {
	m := NewMonthlySummary(Period{Year: 2025, Month: time.March}, Amounts{"Bank": 500})
	if err := m.ApplyEntry(Income, "Sales", "Cash", 1000); err != nil {
		t.Fatal(err)
	}
	if err := m.ApplyEntry(Expense, "Rent", "Bank", 250); err != nil {
		t.Fatal(err)
	}
	want := Amounts{"Bank": 250, "Cash": 1000}
	if !reflect.DeepEqual(m.FinalBalance, want) {
		t.Fatalf("final balance = %v, want %v", m.FinalBalance, want)
	}
	if m.Totals.NetProfit != 750 || m.Totals.ProfitMargin != 75 {
		t.Fatalf("totals = %+v", m.Totals)
	}
	if err := m.ApplyEntry(Expense, CategoryCardPayment, "Bank", 1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for reserved category, got %v", err)
	}
}

func TestMonthlyApplyEntryReversalRestoresState(t *testing.T) {
	m := NewMonthlySummary(Period{Year: 2025, Month: time.March}, Amounts{"Bank": 500})
	before := m.Clone()
	if err := m.ApplyEntry(Income, "Sales", "Cash", 1000); err != nil {
		t.Fatal(err)
	}
	if err := m.ApplyEntry(Income, "Sales", "Cash", -1000); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(m, before) {
		t.Fatalf("reversal did not restore:\n got %+v\nwant %+v", m, before)
	}
}

func TestMonthlyApplyTransfer(t *testing.T) {
	m := NewMonthlySummary(Period{Year: 2025, Month: time.May}, Amounts{"Bank": 1000})
	err := m.ApplyTransfer("Cash", "Bank", 100)
	if !errors.Is(err, ErrFailedPrecondition) {
		t.Fatalf("expected failed precondition, got %v", err)
	}
	if !reflect.DeepEqual(m.FinalBalance, Amounts{"Bank": 1000}) {
		t.Fatalf("failed transfer mutated balances: %v", m.FinalBalance)
	}

	before := m.Clone()
	if err := m.ApplyTransfer("Bank", "Visa", 300); err != nil {
		t.Fatal(err)
	}
	if m.FinalBalance["Bank"] != 700 || m.FinalBalance["Visa"] != 300 {
		t.Fatalf("balances = %v", m.FinalBalance)
	}
	if m.Totals != (Totals{}) {
		t.Fatalf("transfer touched totals: %+v", m.Totals)
	}
	if err := m.ApplyTransfer("Bank", "Visa", -300); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(m, before) {
		t.Fatalf("transfer reversal did not restore: %+v", m)
	}
}

func TestProfitMargin(t *testing.T) {
	cases := []struct {
		net, income int64
		want        float64
	}{
		{0, 0, 0},
		{-500, 0, 0},
		{1, 3, 33.33},
		{2, 3, 66.67},
		{-1500, 1000, -150},
	}
	for _, tc := range cases {
		if got := ProfitMargin(tc.net, tc.income); got != tc.want {
			t.Fatalf("ProfitMargin(%d, %d) = %v, want %v", tc.net, tc.income, got, tc.want)
		}
	}
}

func TestAmountsRenameMerges(t *testing.T) {
	a := Amounts{"Old": 300, "New": 200, "Other": 1}
	if !a.Rename("Old", "New") {
		t.Fatal("expected Old to be present")
	}
	if !reflect.DeepEqual(a, Amounts{"New": 500, "Other": 1}) {
		t.Fatalf("got %v", a)
	}
	if a.Rename("Missing", "New") {
		t.Fatal("expected Missing to be absent")
	}
}

func TestAmountsSorted(t *testing.T) {
	got := Amounts{"b": 100, "a": 100, "c": 300, "z": 0}.Sorted()
	names := []string{}
	for _, c := range got {
		names = append(names, c.Name)
	}
	if !reflect.DeepEqual(names, []string{"c", "a", "b"}) {
		t.Fatalf("order = %v", names)
	}
}

func TestMonthlyReversalKeepsAccountWithLiveEntries(t *testing.T) {
	m := NewMonthlySummary(Period{Year: 2025, Month: time.March}, nil)
	steps := []struct {
		typ    EntryType
		signed int64
	}{
		{Income, 100},
		{Expense, 100},
		{Income, 50},
		{Income, -50},
	}
	for _, st := range steps {
		if err := m.ApplyEntry(st.typ, "Misc", "Cash", st.signed); err != nil {
			t.Fatal(err)
		}
	}
	if v, ok := m.FinalBalance["Cash"]; !ok || v != 0 {
		t.Fatalf("Cash = %d (present=%v), want a zero balance that stays", v, ok)
	}
	if m.MethodUses["Cash"] != 2 {
		t.Fatalf("uses = %v", m.MethodUses)
	}

	for _, st := range steps[:2] {
		if err := m.ApplyEntry(st.typ, "Misc", "Cash", -st.signed); err != nil {
			t.Fatal(err)
		}
	}
	if _, ok := m.FinalBalance["Cash"]; ok || len(m.MethodUses) != 0 {
		t.Fatalf("unused zero balance kept: final %v uses %v", m.FinalBalance, m.MethodUses)
	}
}
