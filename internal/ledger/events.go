package ledger

import (
	"context"
	"sort"
	"time"

	"bilancio/internal/core"
)

// Operation names carried by change notifications.
const (
	OpCreateEntry  = "create_entry"
	OpUpdateEntry  = "update_entry"
	OpRemoveEntry  = "remove_entry"
	OpTransfer     = "transfer"
	OpRenameCat    = "rename_category"
	OpRenameMethod = "rename_payment_method"
	OpDirectory    = "directory"
)

// Change describes a committed mutation.
type Change struct {
	Tenant    string
	Operation string
	EntryID   string
	Periods   []core.Period
	At        time.Time
}

// PeriodKeys returns the touched periods as "YYYY-MM" keys.
func (c Change) PeriodKeys() []string {
	keys := make([]string, len(c.Periods))
	for i, p := range c.Periods {
		keys[i] = p.Key()
	}
	return keys
}

// Observer is told about every committed mutation. Observers run after the
// commit and cannot fail the operation.
type Observer interface {
	LedgerChanged(ctx context.Context, c Change)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, c Change)

func (f ObserverFunc) LedgerChanged(ctx context.Context, c Change) { f(ctx, c) }

// touched collects the periods rewritten by one unit of work.
type touched map[int]core.Period

func (t touched) add(ps ...core.Period) {
	for _, p := range ps {
		t[p.Index()] = p
	}
}

func (t touched) sorted() []core.Period {
	out := make([]core.Period, 0, len(t))
	for _, p := range t {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
