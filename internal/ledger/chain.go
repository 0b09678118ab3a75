package ledger

import (
	"context"
	"fmt"

	"bilancio/internal/core"
	"bilancio/internal/storage"
)

// Chain maintains the month-by-month summaries inside a storage transaction.
type Chain struct {
	tx storage.MonthlyStore
}

func NewChain(tx storage.MonthlyStore) Chain { return Chain{tx: tx} }

// EnsurePeriod returns the summary of p, opening it from the predecessor's
// closing balances when it does not exist yet. A new summary is not stored
// until the caller saves it.
func (c Chain) EnsurePeriod(ctx context.Context, p core.Period) (core.MonthlySummary, error) {
	m, ok, err := c.tx.Monthly(ctx, p)
	if err != nil {
		return m, fmt.Errorf("load monthly summary %s: %w", p.Key(), err)
	}
	if ok {
		return m, nil
	}
	prev, ok, err := c.tx.Monthly(ctx, p.Prev())
	if err != nil {
		return m, fmt.Errorf("load monthly summary %s: %w", p.Prev().Key(), err)
	}
	var seed core.Amounts
	if ok {
		seed = prev.FinalBalance
	}
	return core.NewMonthlySummary(p, seed), nil
}

// Save stores m.
func (c Chain) Save(ctx context.Context, m core.MonthlySummary) error {
	if err := c.tx.PutMonthly(ctx, m); err != nil {
		return fmt.Errorf("save monthly summary %s: %w", m.Period.Key(), err)
	}
	return nil
}

// PropagateForward replays shift on every stored month after base, walking
// forward until the first missing month. Each successor reopens from its
// predecessor's new closing balances. All successor states are computed
// before any is written. It returns the periods it rewrote.
func (c Chain) PropagateForward(ctx context.Context, base core.MonthlySummary, shift core.BalanceShift) ([]core.Period, error) {
	var updated []core.MonthlySummary
	prev := base
	for p := base.Period.Next(); ; p = p.Next() {
		next, ok, err := c.tx.Monthly(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("load monthly summary %s: %w", p.Key(), err)
		}
		if !ok {
			break
		}
		next.Reseed(prev.FinalBalance)
		next.Shift(shift)
		updated = append(updated, next)
		prev = next
	}

	periods := make([]core.Period, 0, len(updated))
	for _, m := range updated {
		if err := c.Save(ctx, m); err != nil {
			return nil, err
		}
		periods = append(periods, m.Period)
	}
	return periods, nil
}

// ByYear returns the stored months of year, ascending.
func (c Chain) ByYear(ctx context.Context, year int) ([]core.MonthlySummary, error) {
	return c.tx.MonthlyRange(ctx, core.Period{Year: year, Month: 1}, core.Period{Year: year, Month: 12})
}

// ByPeriods returns the stored months among periods, ascending. Missing
// periods are skipped.
func (c Chain) ByPeriods(ctx context.Context, periods []core.Period) ([]core.MonthlySummary, error) {
	if len(periods) == 0 {
		return []core.MonthlySummary{}, nil
	}
	lo, hi := periods[0], periods[0]
	want := make(map[int]bool, len(periods))
	for _, p := range periods {
		want[p.Index()] = true
		if p.Before(lo) {
			lo = p
		}
		if hi.Before(p) {
			hi = p
		}
	}
	all, err := c.tx.MonthlyRange(ctx, lo, hi)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, m := range all {
		if want[m.Period.Index()] {
			out = append(out, m)
		}
	}
	return out, nil
}

// Latest returns the most recent stored month, if any.
func (c Chain) Latest(ctx context.Context) (core.MonthlySummary, bool, error) {
	all, err := c.tx.AllMonthly(ctx)
	if err != nil || len(all) == 0 {
		return core.MonthlySummary{}, false, err
	}
	return all[len(all)-1], true, nil
}
