// Package report renders ledger entries and category summaries as CSV.
// Amounts display with 2 decimals; the stored precision stays in the
// ledger.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"masareef/internal/core"
)

// LedgerHeader is the CSV header for a ledger export.
const LedgerHeader = "id,date,category,subcategory,subsubcategory,subsubsubcategory,description,amount_before_vat,vat_amount,total_amount,entered_by"

// SummaryHeader is the CSV header for a category summary export.
const SummaryHeader = "category,subcategory,total_amount"

const (
	ledgerFields = 11
	colID        = 0
	colDate      = 1
	colCat       = 2
	colSub       = 3
	colSubSub    = 4
	colSubSubSub = 5
	colDesc      = 6
	colAmount    = 7
	colVAT       = 8
	colTotal     = 9
	colEnteredBy = 10
)

// WriteLedger writes entries as CSV with a header and a trailing TOTAL
// row. The footer sums are recomputed from the rows being written, not
// taken from any upstream aggregation.
func WriteLedger(w io.Writer, entries []core.LedgerEntry) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(LedgerHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	var amount, vat, total decimal.Decimal
	for i, e := range entries {
		if err := cw.Write(marshalEntry(e)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
		amount = amount.Add(e.AmountBeforeVAT)
		vat = vat.Add(e.VATAmount)
		total = total.Add(e.TotalAmount)
	}

	if len(entries) > 0 {
		footer := make([]string, ledgerFields)
		footer[colCat] = core.TotalLabel
		footer[colAmount] = amount.StringFixed(2)
		footer[colVAT] = vat.StringFixed(2)
		footer[colTotal] = total.StringFixed(2)
		if err := cw.Write(footer); err != nil {
			return fmt.Errorf("writing total row: %w", err)
		}
	}
	return cw.Error()
}

// WriteSummary writes summary rows as CSV with a header. Rows pass
// through as given, the aggregation engine already appends its TOTAL.
func WriteSummary(w io.Writer, rows []core.SummaryRow) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(SummaryHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, r := range rows {
		rec := []string{r.Category, r.Subcategory, r.TotalAmount.StringFixed(2)}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// marshalEntry converts one entry to a CSV row. Missing category
// levels render as empty cells.
func marshalEntry(e core.LedgerEntry) []string {
	row := make([]string, ledgerFields)
	row[colID] = strconv.FormatInt(e.ID, 10)
	row[colDate] = e.Date.String()
	row[colCat] = e.Category
	row[colSub] = e.Subcategory
	row[colSubSub] = e.SubSubcategory
	row[colSubSubSub] = e.SubSubSubcategory
	row[colDesc] = e.Description
	row[colAmount] = e.AmountBeforeVAT.StringFixed(2)
	row[colVAT] = e.VATAmount.StringFixed(2)
	row[colTotal] = e.TotalAmount.StringFixed(2)
	row[colEnteredBy] = e.EnteredBy
	return row
}
