package worker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
)

type fakeSource struct {
	months map[string][]core.MonthlySummary
	err    error
}

func (f *fakeSource) MonthlyByPeriods(_ context.Context, tenant string, periods []core.Period) ([]core.MonthlySummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	want := map[core.Period]bool{}
	for _, p := range periods {
		want[p] = true
	}
	var out []core.MonthlySummary
	for _, m := range f.months[tenant] {
		if want[m.Period] {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeExporter struct {
	mu      sync.Mutex
	calls   map[string][]string
	failFor string
}

func (f *fakeExporter) ExportMonthly(_ context.Context, tenant string, months []core.MonthlySummary) error {
	if tenant == f.failFor {
		return errors.New("sheets unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string][]string{}
	}
	for _, m := range months {
		f.calls[tenant] = append(f.calls[tenant], m.Period.Key())
	}
	return nil
}

func period(t *testing.T, y, m int) core.Period {
	t.Helper()
	p, err := core.NewPeriod(y, m)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestHandleLedgerChanged(t *testing.T) {
	jan, feb := period(t, 2025, 1), period(t, 2025, 2)
	src := &fakeSource{months: map[string][]core.MonthlySummary{
		"acme": {{Period: jan}, {Period: feb}},
	}}

	tests := []struct {
		name    string
		msg     *amqp.LedgerChangedMessage
		want    []string
		wantErr bool
	}{
		{
			name: "exports named periods",
			msg:  &amqp.LedgerChangedMessage{Tenant: "acme", Periods: []string{"2025-02"}},
			want: []string{"2025-02"},
		},
		{
			name: "skips periods without summaries",
			msg:  &amqp.LedgerChangedMessage{Tenant: "acme", Periods: []string{"2024-12"}},
		},
		{
			name: "drops malformed periods",
			msg:  &amqp.LedgerChangedMessage{Tenant: "acme", Periods: []string{"2025-13"}},
		},
		{
			name:    "export failure asks for redelivery",
			msg:     &amqp.LedgerChangedMessage{Tenant: "broken", Periods: []string{"2025-01"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := &fakeExporter{failFor: "broken"}
			src.months["broken"] = []core.MonthlySummary{{Period: jan}}
			w := NewExportWorker(src, exp, 2, nil)

			err := w.HandleLedgerChanged(context.Background(), tt.msg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("HandleLedgerChanged() error = %v, wantErr %v", err, tt.wantErr)
			}
			got := exp.calls[tt.msg.Tenant]
			if len(got) != len(tt.want) {
				t.Fatalf("exported %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("exported %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestHandleLedgerChangedSourceError(t *testing.T) {
	w := NewExportWorker(&fakeSource{err: errors.New("db down")}, &fakeExporter{}, 1, nil)
	msg := &amqp.LedgerChangedMessage{Tenant: "acme", Periods: []string{"2025-01"}}
	if err := w.HandleLedgerChanged(context.Background(), msg); err == nil {
		t.Fatal("expected error")
	}
}

func TestBackfill(t *testing.T) {
	jan, feb := period(t, 2025, 1), period(t, 2025, 2)
	src := &fakeSource{months: map[string][]core.MonthlySummary{
		"a": {{Period: jan}, {Period: feb}},
		"b": {{Period: feb}},
	}}
	exp := &fakeExporter{}
	w := NewExportWorker(src, exp, 2, nil)

	if err := w.Backfill(context.Background(), []string{"a", "b", "c"}, []core.Period{jan, feb}); err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	got := exp.calls["a"]
	sort.Strings(got)
	if len(got) != 2 || got[0] != "2025-01" || got[1] != "2025-02" {
		t.Errorf("tenant a exported %v", got)
	}
	if len(exp.calls["b"]) != 1 || len(exp.calls["c"]) != 0 {
		t.Errorf("exports = %v", exp.calls)
	}
}

type fakeConsumer struct {
	msgs []*amqp.LedgerChangedMessage
	mu   sync.Mutex
	errs []error
}

// ConsumeLedgerChanged hands out queued messages then waits for cancellation.
func (f *fakeConsumer) ConsumeLedgerChanged(ctx context.Context, handler func(context.Context, *amqp.LedgerChangedMessage) error) error {
	for {
		f.mu.Lock()
		if len(f.msgs) == 0 {
			f.mu.Unlock()
			break
		}
		msg := f.msgs[0]
		f.msgs = f.msgs[1:]
		f.mu.Unlock()
		if err := handler(ctx, msg); err != nil {
			f.mu.Lock()
			f.errs = append(f.errs, err)
			f.mu.Unlock()
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRunConsumesUntilCancelled(t *testing.T) {
	jan := period(t, 2025, 1)
	src := &fakeSource{months: map[string][]core.MonthlySummary{"acme": {{Period: jan}}}}
	exp := &fakeExporter{}
	consumer := &fakeConsumer{msgs: []*amqp.LedgerChangedMessage{
		{Tenant: "acme", Periods: []string{"2025-01"}},
		{Tenant: "acme", Periods: []string{"2025-01"}},
		{Tenant: "acme", Periods: []string{"2025-01"}},
	}}
	w := NewExportWorker(src, exp, 3, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, consumer) }()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		consumer.mu.Lock()
		drained := len(consumer.msgs) == 0
		consumer.mu.Unlock()
		exp.mu.Lock()
		n := len(exp.calls["acme"])
		exp.mu.Unlock()
		if drained && n == 3 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run() = %v, want nil after cancel", err)
	}
	if n := len(exp.calls["acme"]); n != 3 {
		t.Errorf("exported %d times, want 3", n)
	}
	if len(consumer.errs) != 0 {
		t.Errorf("handler errors: %v", consumer.errs)
	}
}
