package ledger

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/storage"
	"bilancio/internal/storage/memory"
)

const tenant = "acme"

func seededStore() *memory.Store {
	return memory.New(
		[]core.Category{
			{Name: "Sales", Type: core.Income, Active: true},
			{Name: "Food", Type: core.Expense, Active: true},
			{Name: "Rent", Type: core.Expense, Active: true},
		},
		[]core.PaymentMethod{
			{Name: "Bank", Type: core.Debit, Active: true},
			{Name: "Cash", Type: core.Cash, Active: true},
			{Name: "Visa", Type: core.Credit, Active: true},
		},
	)
}

func newTestService(t *testing.T, store storage.Store, includeTransfers bool) *Service {
	t.Helper()
	n := 0
	return NewService(store, nil, nil, Options{
		IncludeTransfersInDaily: includeTransfers,
		Now:                     func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
		NewID: func() string {
			n++
			return fmt.Sprintf("e%d", n)
		},
	})
}

func date(y, m, d int) core.Date { return core.NewDate(y, m, d) }

func period(y, m int) core.Period { return core.Period{Year: y, Month: time.Month(m)} }

func mustCreate(t *testing.T, s *Service, d core.Date, typ core.EntryType, category, method string, cents int64) core.LedgerEntry {
	t.Helper()
	e, err := s.CreateEntry(context.Background(), tenant, core.EntryInput{
		Date: d, Type: typ, Category: category, Amount: core.Money{Cents: cents}, Method: method,
	})
	if err != nil {
		t.Fatalf("create %s %s %d: %v", typ, category, cents, err)
	}
	return e
}

type snapshot struct {
	Entries []core.LedgerEntry
	Daily   []core.DailySummary
	Monthly []core.MonthlySummary
}

func takeSnapshot(t *testing.T, store storage.Store) snapshot {
	t.Helper()
	ctx := context.Background()
	var s snapshot
	err := store.View(ctx, tenant, func(tx storage.Tx) error {
		var err error
		if s.Entries, err = tx.Entries(ctx, storage.EntryFilter{}); err != nil {
			return err
		}
		if s.Daily, err = tx.AllDaily(ctx); err != nil {
			return err
		}
		s.Monthly, err = tx.AllMonthly(ctx)
		return err
	})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return s
}

func monthly(t *testing.T, store storage.Store, p core.Period) (core.MonthlySummary, bool) {
	t.Helper()
	var (
		m  core.MonthlySummary
		ok bool
	)
	_ = store.View(context.Background(), tenant, func(tx storage.Tx) error {
		var err error
		m, ok, err = tx.Monthly(context.Background(), p)
		return err
	})
	return m, ok
}

func daily(t *testing.T, store storage.Store, d core.Date) (core.DailySummary, bool) {
	t.Helper()
	var (
		s  core.DailySummary
		ok bool
	)
	_ = store.View(context.Background(), tenant, func(tx storage.Tx) error {
		var err error
		s, ok, err = tx.Daily(context.Background(), d)
		return err
	})
	return s, ok
}

func assertBalances(t *testing.T, label string, got, want core.Amounts) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("%s: got %v, want %v", label, got, want)
	}
}

// assertInvariants checks the chain link between every pair of adjacent
// stored months and the category sums of every bucket.
func assertInvariants(t *testing.T, snap snapshot) {
	t.Helper()
	for i := 1; i < len(snap.Monthly); i++ {
		prev, cur := snap.Monthly[i-1], snap.Monthly[i]
		if prev.Period.Next() != cur.Period {
			continue
		}
		if !reflect.DeepEqual(cur.InitialBalance, prev.FinalBalance) {
			t.Fatalf("chain broken at %s: initial %v, previous final %v", cur.Period, cur.InitialBalance, prev.FinalBalance)
		}
	}
	for _, m := range snap.Monthly {
		if m.CategoriesIncome.Sum() != m.Totals.TotalIncome || m.CategoriesExpense.Sum() != m.Totals.TotalExpense {
			t.Fatalf("category sums drifted in %s: %+v", m.Period, m)
		}
		if m.Totals.NetProfit != m.Totals.TotalIncome-m.Totals.TotalExpense {
			t.Fatalf("net profit drifted in %s", m.Period)
		}
	}
	for _, d := range snap.Daily {
		if d.CategoriesIncome.Sum() != d.IncomeTotal || d.CategoriesExpense.Sum() != d.ExpenseTotal {
			t.Fatalf("category sums drifted on %s: %+v", d.Date.Key(), d)
		}
	}
}

// faultyStore fails PutMonthly for one period, after the callback has
// already written other records.
type faultyStore struct {
	storage.Store
	failOn core.Period
}

var errInjected = errors.New("injected write failure")

func (f *faultyStore) Update(ctx context.Context, tenant string, fn func(storage.Tx) error) error {
	return f.Store.Update(ctx, tenant, func(tx storage.Tx) error {
		return fn(&faultyTx{Tx: tx, failOn: f.failOn})
	})
}

type faultyTx struct {
	storage.Tx
	failOn core.Period
}

func (f *faultyTx) PutMonthly(ctx context.Context, m core.MonthlySummary) error {
	if m.Period == f.failOn {
		return errInjected
	}
	return f.Tx.PutMonthly(ctx, m)
}
