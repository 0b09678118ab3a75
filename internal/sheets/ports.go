package sheets

import (
	"context"

	"bilancio/internal/core"
)

// MonthlyExporter writes monthly summaries of one tenant to an external
// spreadsheet, one row per period.
type MonthlyExporter interface {
	ExportMonthly(ctx context.Context, tenant string, months []core.MonthlySummary) error
}
