package ledger

import (
	"context"
	"fmt"

	"bilancio/internal/core"
	"bilancio/internal/storage"
)

// Daily maintains per-day buckets inside a storage transaction.
type Daily struct {
	tx storage.DailyStore
}

func NewDaily(tx storage.DailyStore) Daily { return Daily{tx: tx} }

// ApplyDelta adds signed cents to the bucket of date, creating it on first use.
func (d Daily) ApplyDelta(ctx context.Context, date core.Date, t core.EntryType, category string, signed int64) (core.DailySummary, error) {
	s, ok, err := d.tx.Daily(ctx, date)
	if err != nil {
		return s, fmt.Errorf("load daily summary %s: %w", date.Key(), err)
	}
	if !ok {
		s = core.NewDailySummary(date)
	}
	s.Apply(t, category, signed)
	if err := d.tx.PutDaily(ctx, s); err != nil {
		return s, fmt.Errorf("save daily summary %s: %w", date.Key(), err)
	}
	return s, nil
}

// ByDate returns the bucket of date, if any.
func (d Daily) ByDate(ctx context.Context, date core.Date) (core.DailySummary, bool, error) {
	return d.tx.Daily(ctx, date)
}

// ByRange returns the buckets with start <= date < end, ascending.
func (d Daily) ByRange(ctx context.Context, start, end core.Date) ([]core.DailySummary, error) {
	if !start.Before(end.Time) {
		return []core.DailySummary{}, nil
	}
	return d.tx.DailyRange(ctx, start, end)
}

// ByMonth returns every bucket of the month.
func (d Daily) ByMonth(ctx context.Context, p core.Period) ([]core.DailySummary, error) {
	return d.ByRange(ctx, p.Start(), p.Next().Start())
}
