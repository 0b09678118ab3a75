package storage

import (
	"context"

	"bilancio/internal/core"
)

// Store gives transactional access to one tenant's ledger data. Update runs
// fn inside a unit of work that is committed only when fn returns nil; any
// error leaves the stored state untouched.
type Store interface {
	Update(ctx context.Context, tenant string, fn func(Tx) error) error
	View(ctx context.Context, tenant string, fn func(Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// EntryFilter narrows entry listings. Zero values match everything; To is
// exclusive.
type EntryFilter struct {
	From     core.Date
	To       core.Date
	Category string
	Method   string
}

// Tx is bound to a single tenant. Summary getters report whether the bucket
// exists; Entry returns a core.ErrNotFound error for unknown ids.
type Tx interface {
	EntryStore
	DailyStore
	MonthlyStore
	DirectoryStore
}

type (
	EntryStore interface {
		Entry(ctx context.Context, id string) (core.LedgerEntry, error)
		Entries(ctx context.Context, f EntryFilter) ([]core.LedgerEntry, error)
		PutEntry(ctx context.Context, e core.LedgerEntry) error
		DeleteEntry(ctx context.Context, id string) error
		// RenameEntryCategory rewrites the category of every matching entry.
		RenameEntryCategory(ctx context.Context, old, new string) (int64, error)
		// RenameEntryMethod rewrites both the method and the transfer
		// destination of every matching entry.
		RenameEntryMethod(ctx context.Context, old, new string) (int64, error)
	}

	DailyStore interface {
		Daily(ctx context.Context, d core.Date) (core.DailySummary, bool, error)
		// DailyRange returns buckets with from <= date < to, ascending.
		DailyRange(ctx context.Context, from, to core.Date) ([]core.DailySummary, error)
		AllDaily(ctx context.Context) ([]core.DailySummary, error)
		PutDaily(ctx context.Context, s core.DailySummary) error
	}

	MonthlyStore interface {
		Monthly(ctx context.Context, p core.Period) (core.MonthlySummary, bool, error)
		// MonthlyRange returns buckets with from <= period <= to, ascending.
		MonthlyRange(ctx context.Context, from, to core.Period) ([]core.MonthlySummary, error)
		AllMonthly(ctx context.Context) ([]core.MonthlySummary, error)
		PutMonthly(ctx context.Context, m core.MonthlySummary) error
	}

	DirectoryStore interface {
		Category(ctx context.Context, name string) (core.Category, bool, error)
		Categories(ctx context.Context) ([]core.Category, error)
		PutCategory(ctx context.Context, c core.Category) error
		DeleteCategory(ctx context.Context, name string) error

		PaymentMethod(ctx context.Context, name string) (core.PaymentMethod, bool, error)
		PaymentMethods(ctx context.Context) ([]core.PaymentMethod, error)
		PutPaymentMethod(ctx context.Context, m core.PaymentMethod) error
		DeletePaymentMethod(ctx context.Context, name string) error
	}
)

// Match reports whether e passes the filter.
func (f EntryFilter) Match(e core.LedgerEntry) bool {
	if !f.From.IsZero() && e.Date.Before(f.From.Time) {
		return false
	}
	if !f.To.IsZero() && !e.Date.Before(f.To.Time) {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.Method != "" && e.Method != f.Method && e.To != f.Method {
		return false
	}
	return true
}
