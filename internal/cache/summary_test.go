package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
	"bilancio/internal/report"
)

type countingSummarizer struct {
	calls int
	err   error
}

func (c *countingSummarizer) Summarize(_ context.Context, tenant string, req report.Request) (report.Summary, error) {
	c.calls++
	if c.err != nil {
		return report.Summary{}, c.err
	}
	s := report.Empty()
	s.Totals.Income = core.Money{Cents: int64(c.calls)}
	return s, nil
}

func TestSummaryCacheHitsAndInvalidation(t *testing.T) {
	next := &countingSummarizer{}
	c := NewSummaryCache(next, 10, time.Hour, nil)
	ctx := context.Background()
	req := report.Request{Range: report.RangeLast7Days}

	first, _ := c.Summarize(ctx, "acme", req)
	second, _ := c.Summarize(ctx, "acme", req)
	if next.calls != 1 || first.Totals != second.Totals {
		t.Fatalf("second call should be served from cache, calls = %d", next.calls)
	}

	if _, err := c.Summarize(ctx, "globex", req); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Summarize(ctx, "acme", report.Request{Range: report.RangeToday}); err != nil {
		t.Fatal(err)
	}
	if next.calls != 3 {
		t.Fatalf("distinct tenant or range must miss, calls = %d", next.calls)
	}

	c.LedgerChanged(ctx, ledger.Change{Tenant: "acme", Operation: ledger.OpCreateEntry})
	if c.Size() != 1 {
		t.Fatalf("only globex should remain cached, size = %d", c.Size())
	}
	if _, err := c.Summarize(ctx, "acme", req); err != nil {
		t.Fatal(err)
	}
	if next.calls != 4 {
		t.Fatalf("invalidated entry must be recomputed, calls = %d", next.calls)
	}
}

func TestSummaryCacheDoesNotStoreErrors(t *testing.T) {
	next := &countingSummarizer{err: core.InvalidArgument("bad range")}
	c := NewSummaryCache(next, 10, time.Hour, nil)

	for i := 0; i < 2; i++ {
		if _, err := c.Summarize(context.Background(), "acme", report.Request{Range: "x"}); !errors.Is(err, core.ErrInvalidArgument) {
			t.Fatalf("unexpected error %v", err)
		}
	}
	if next.calls != 2 || c.Size() != 0 {
		t.Fatalf("errors must not be cached, calls = %d size = %d", next.calls, c.Size())
	}
}

func TestSummaryCacheInvalidateTenant(t *testing.T) {
	next := &countingSummarizer{}
	c := NewSummaryCache(next, 10, time.Hour, nil)
	ctx := context.Background()

	for _, tenant := range []string{"acme", "acme-eu", "globex"} {
		if _, err := c.Summarize(ctx, tenant, report.Request{Range: report.RangeToday}); err != nil {
			t.Fatal(err)
		}
	}
	if n := c.InvalidateTenant("acme"); n != 1 {
		t.Fatalf("InvalidateTenant removed %d entries, want 1", n)
	}
	if c.Size() != 2 {
		t.Fatalf("tenants sharing a name prefix must survive, size = %d", c.Size())
	}
	if n := c.InvalidateTenant("initech"); n != 0 {
		t.Fatalf("unknown tenant removed %d entries", n)
	}
}
