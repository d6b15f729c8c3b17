package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"masareef/internal/core"
)

func TestWriteLedgerPDF(t *testing.T) {
	var buf bytes.Buffer
	entries := []core.LedgerEntry{
		entry(1, "Diesel", "100", "15", "115"),
		entry(2, "", "50", "0", "50"),
	}
	if err := WriteLedgerPDF(&buf, "Expenses 2024-06", entries); err != nil {
		t.Fatalf("write ledger pdf: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "%PDF-") {
		t.Fatalf("output is not a pdf document")
	}
	if buf.Len() < 1000 {
		t.Fatalf("suspiciously small pdf: %d bytes", buf.Len())
	}
}

func TestWriteLedgerPDFEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteLedgerPDF(&buf, "Expenses", nil); err != nil {
		t.Fatalf("write empty ledger pdf: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "%PDF-") {
		t.Fatalf("output is not a pdf document")
	}
}

func TestWriteSummaryPDF(t *testing.T) {
	var buf bytes.Buffer
	rows := []core.SummaryRow{
		{Category: "Fuel", Subcategory: "Diesel", TotalAmount: decimal.RequireFromString("200")},
		{Category: core.TotalLabel, TotalAmount: decimal.RequireFromString("200")},
	}
	if err := WriteSummaryPDF(&buf, "Summary 2024-06", rows); err != nil {
		t.Fatalf("write summary pdf: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "%PDF-") {
		t.Fatalf("output is not a pdf document")
	}
}
