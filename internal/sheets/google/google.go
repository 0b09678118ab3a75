package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"bilancio/internal/core"
	"bilancio/internal/log"
	ports "bilancio/internal/sheets"
)

// valuesAPI is the part of the Sheets values service the exporter uses.
type valuesAPI interface {
	get(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
	batchUpdate(ctx context.Context, spreadsheetID string, data []*gsheet.ValueRange) error
}

type serviceValues struct{ svc *gsheet.Service }

func (s serviceValues) get(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s serviceValues) batchUpdate(ctx context.Context, spreadsheetID string, data []*gsheet.ValueRange) error {
	req := &gsheet.BatchUpdateValuesRequest{ValueInputOption: "USER_ENTERED", Data: data}
	_, err := s.svc.Spreadsheets.Values.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	return err
}

// Client exports monthly summaries to one sheet per year ("2025 Bilancio").
type Client struct {
	values        valuesAPI
	spreadsheetID string
	sheetBase     string
}

var _ ports.MonthlyExporter = (*Client)(nil)

// Options configure the Sheets client. Credentials come from CredentialsJSON,
// CredentialsFile or GOOGLE_APPLICATION_CREDENTIALS, in that order.
type Options struct {
	SpreadsheetID   string
	SheetBase       string
	CredentialsJSON string
	CredentialsFile string
}

func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	base := strings.TrimSpace(opts.SheetBase)
	if base == "" {
		base = "Bilancio"
	}

	svc, err := newSheetsService(ctx, opts.CredentialsJSON, opts.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{values: serviceValues{svc: svc}, spreadsheetID: spreadsheetID, sheetBase: base}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, credentialsJSON, credentialsFile string) (*gsheet.Service, error) {
	credentialsJSON = strings.TrimSpace(credentialsJSON)
	credentialsFile = strings.TrimSpace(credentialsFile)
	if credentialsJSON == "" && credentialsFile == "" {
		credentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var creds []byte
	switch {
	case credentialsJSON != "":
		creds = []byte(credentialsJSON)
	case credentialsFile != "":
		b, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		creds = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		log.FieldComponent, log.ComponentSheets,
		"credentials_size", len(creds),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (c *Client) sheetName(year int) string {
	return yearPrefixedName(c.sheetBase, year)
}

// ExportMonthly upserts one row per summary, keyed by tenant and period.
// Rows already present are overwritten in place; new ones are appended.
func (c *Client) ExportMonthly(ctx context.Context, tenant string, months []core.MonthlySummary) error {
	if c.values == nil {
		return errors.New("sheets service not initialized")
	}
	if len(months) == 0 {
		return nil
	}

	byYear := map[int][]core.MonthlySummary{}
	for _, m := range months {
		byYear[m.Period.Year] = append(byYear[m.Period.Year], m)
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	for _, y := range years {
		data, err := c.plan(ctx, tenant, c.sheetName(y), byYear[y])
		if err != nil {
			return err
		}
		if err := c.values.batchUpdate(ctx, c.spreadsheetID, data); err != nil {
			return fmt.Errorf("update sheet %s: %w", c.sheetName(y), err)
		}
		slog.InfoContext(ctx, "Monthly summaries exported",
			log.FieldComponent, log.ComponentSheets,
			log.FieldTenant, tenant,
			log.FieldYear, y,
			"rows", len(byYear[y]))
	}
	return nil
}

// plan reads the sheet's key columns and returns the value ranges to write.
func (c *Client) plan(ctx context.Context, tenant, sheet string, months []core.MonthlySummary) ([]*gsheet.ValueRange, error) {
	rng := fmt.Sprintf("%s!A:B", sheet)
	existing, err := c.values.get(ctx, c.spreadsheetID, rng)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return planRows(sheet, tenant, existing, months), nil
}

func planRows(sheet, tenant string, existing [][]any, months []core.MonthlySummary) []*gsheet.ValueRange {
	var data []*gsheet.ValueRange
	next := len(existing) + 1
	if len(existing) == 0 {
		data = append(data, &gsheet.ValueRange{
			Range:  fmt.Sprintf("%s!A1:%s1", sheet, lastColumn),
			Values: [][]any{header},
		})
		next = 2
	}

	rows := indexRows(existing)
	for _, m := range months {
		row, ok := rows[rowKey(tenant, m.Period.Key())]
		if !ok {
			row = next
			next++
			rows[rowKey(tenant, m.Period.Key())] = row
		}
		data = append(data, &gsheet.ValueRange{
			Range:  fmt.Sprintf("%s!A%d:%s%d", sheet, row, lastColumn, row),
			Values: [][]any{summaryRow(tenant, m)},
		})
	}
	return data
}
