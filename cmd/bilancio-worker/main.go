package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/cli"
	"bilancio/internal/config"
	"bilancio/internal/core"
	"bilancio/internal/ledger"
	"bilancio/internal/log"
	gsheet "bilancio/internal/sheets/google"
	"bilancio/internal/worker"
)

func main() {
	backfillTenants := flag.String("backfill-tenants", "", "comma-separated tenants to export in full before consuming")
	backfillYear := flag.Int("backfill-year", 0, "year exported by -backfill-tenants (default current year)")
	flag.Parse()

	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger()
	logger.Info("Starting bilancio-worker")

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	ctx := context.Background()
	store := cli.InitStore(ctx, logger, cfg)
	defer store.Cleanup()

	// Read-only use: the worker never mutates the ledger.
	svc := ledger.NewService(store.Store, nil, logger, ledger.Options{})

	sheetsClient, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetBase:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	exportWorker := worker.NewExportWorker(svc, sheetsClient, cfg.WorkerConcurrency, logger)

	runCtx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)

	if tenants := splitList(*backfillTenants); len(tenants) > 0 {
		if err := backfill(runCtx, exportWorker, tenants, *backfillYear); err != nil {
			logger.Error("Backfill failed", log.FieldError, err)
		}
	}

	if err := exportWorker.Run(runCtx, amqpClient); err != nil {
		logger.Error("Message consumption failed", log.FieldError, err)
		amqpClient.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(runCtx, done)
	logger.Info("Worker shutdown complete")
}

func backfill(ctx context.Context, w *worker.ExportWorker, tenants []string, year int) error {
	if year == 0 {
		year = time.Now().Year()
	}
	periods := make([]core.Period, 0, 12)
	for m := 1; m <= 12; m++ {
		p, err := core.NewPeriod(year, m)
		if err != nil {
			return err
		}
		periods = append(periods, p)
	}
	return w.Backfill(ctx, tenants, periods)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
