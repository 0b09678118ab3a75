package worker

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/lock"
	"bilancio/internal/log"
	"bilancio/internal/sheets"
)

// MonthlySource reads stored monthly summaries.
type MonthlySource interface {
	MonthlyByPeriods(ctx context.Context, tenant string, periods []core.Period) ([]core.MonthlySummary, error)
}

// Consumer delivers ledger change messages to a handler until ctx ends.
// A handler error asks for redelivery.
type Consumer interface {
	ConsumeLedgerChanged(ctx context.Context, handler func(context.Context, *amqp.LedgerChangedMessage) error) error
}

// ExportWorker mirrors monthly summaries into the spreadsheet whenever a
// ledger change names their periods.
type ExportWorker struct {
	source      MonthlySource
	exporter    sheets.MonthlyExporter
	locker      lock.Locker
	concurrency int
	logger      *log.Logger
}

func NewExportWorker(source MonthlySource, exporter sheets.MonthlyExporter, concurrency int, logger *log.Logger) *ExportWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ExportWorker{
		source:      source,
		exporter:    exporter,
		locker:      lock.NewLocal(),
		concurrency: concurrency,
		logger:      logger.WithComponent(log.ComponentWorker),
	}
}

// HandleLedgerChanged exports the summaries of the periods named by msg.
// Exports of one tenant never overlap, so row allocation in the sheet stays
// consistent.
func (w *ExportWorker) HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	periods, err := msg.ParsedPeriods()
	if err != nil {
		// Redelivery cannot fix a malformed message.
		w.logger.WarnContext(ctx, "Dropping ledger change with invalid periods",
			log.FieldTenant, msg.Tenant,
			log.FieldError, err)
		return nil
	}
	if len(periods) == 0 {
		return nil
	}

	unlock, err := w.locker.Lock(ctx, msg.Tenant)
	if err != nil {
		return err
	}
	defer unlock()

	months, err := w.source.MonthlyByPeriods(ctx, msg.Tenant, periods)
	if err != nil {
		return fmt.Errorf("load monthly summaries: %w", err)
	}
	if len(months) == 0 {
		w.logger.DebugContext(ctx, "No stored summaries for change",
			log.FieldTenant, msg.Tenant,
			log.FieldPeriods, msg.Periods)
		return nil
	}

	if err := w.exporter.ExportMonthly(ctx, msg.Tenant, months); err != nil {
		return fmt.Errorf("export monthly summaries: %w", err)
	}

	w.logger.InfoContext(ctx, "Ledger change exported",
		log.FieldTenant, msg.Tenant,
		log.FieldOperation, msg.Operation,
		log.FieldPeriods, msg.Periods,
		"months", len(months))
	return nil
}

// Run starts one consumer per concurrency slot and blocks until ctx ends or
// a consumer fails. Cancellation is not reported as an error.
func (w *ExportWorker) Run(ctx context.Context, consumer Consumer) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		g.Go(func() error {
			return consumer.ConsumeLedgerChanged(gctx, w.HandleLedgerChanged)
		})
	}

	w.logger.InfoContext(ctx, "Export worker running", "consumers", w.concurrency)
	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Backfill exports every stored summary of the given periods for each
// tenant, several tenants at a time.
func (w *ExportWorker) Backfill(ctx context.Context, tenants []string, periods []core.Period) error {
	if len(periods) == 0 {
		return nil
	}
	keys := make([]string, len(periods))
	for i, p := range periods {
		keys[i] = p.Key()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, tenant := range tenants {
		msg := &amqp.LedgerChangedMessage{Tenant: tenant, Operation: log.OpExport, Periods: keys}
		g.Go(func() error {
			if err := w.HandleLedgerChanged(gctx, msg); err != nil {
				return fmt.Errorf("backfill %s: %w", tenant, err)
			}
			return nil
		})
	}
	return g.Wait()
}
