//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"bilancio/internal/core"
)

// Integration tests require real Google Sheets credentials
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_ExportMonthly(t *testing.T) {
	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}

	ctx := context.Background()
	client, err := New(ctx, Options{
		SpreadsheetID:   spreadsheetID,
		SheetBase:       os.Getenv("GOOGLE_SHEET_NAME"),
		CredentialsJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		CredentialsFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	m := core.NewMonthlySummary(core.Period{Year: time.Now().Year(), Month: time.January}, nil)
	if err := m.ApplyEntry(core.Income, "Integration", "Bank", 12345); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := client.ExportMonthly(ctx, "integration-test", []core.MonthlySummary{m}); err != nil {
			t.Fatalf("export %d: %v", i, err)
		}
	}
}
