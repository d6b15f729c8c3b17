// Package google adapts the Google Sheets API to the export port.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"masareef/internal/core"
	ports "masareef/internal/sheets"
)

// Config selects the spreadsheet and the credentials. Exactly one of
// CredentialsJSON or CredentialsFile must be set.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var _ ports.ExpenseRowAppender = (*Client)(nil)

// NewClient builds a Sheets client from service account credentials.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = "Expenses"
	}

	var credentials []byte
	switch {
	case cfg.CredentialsJSON != "":
		credentials = []byte(cfg.CredentialsJSON)
	case cfg.CredentialsFile != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		credentials = b
	default:
		return nil, errors.New("missing service account credentials")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentials),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// AppendEntries appends one spreadsheet row per ledger entry below the
// sheet's existing data. Amounts go out as 2-decimal strings with
// USER_ENTERED so the sheet parses them as numbers.
func (c *Client) AppendEntries(ctx context.Context, entries []core.LedgerEntry) (int, error) {
	if c.svc == nil {
		return 0, errors.New("sheets service not initialized")
	}
	if len(entries) == 0 {
		return 0, nil
	}

	values := make([][]any, len(entries))
	for i, e := range entries {
		values[i] = []any{
			strconv.FormatInt(e.ID, 10),
			e.Date.String(),
			e.Category,
			e.Subcategory,
			e.SubSubcategory,
			e.SubSubSubcategory,
			e.Description,
			e.AmountBeforeVAT.StringFixed(2),
			e.VATAmount.StringFixed(2),
			e.TotalAmount.StringFixed(2),
			e.EnteredBy,
		}
	}

	rng := fmt.Sprintf("%s!A:K", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.
		Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}

	appended := len(values)
	if resp.Updates != nil && resp.Updates.UpdatedRows > 0 {
		appended = int(resp.Updates.UpdatedRows)
	}
	slog.InfoContext(ctx, "Exported entries to spreadsheet",
		"sheet", c.sheetName, "rows", appended)
	return appended, nil
}
