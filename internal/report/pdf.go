package report

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"masareef/internal/core"
)

var ledgerPDFColumns = []struct {
	header string
	width  float64
}{
	{"Date", 25},
	{"Category", 35},
	{"Subcategory", 35},
	{"Description", 35},
	{"Before VAT", 20},
	{"VAT", 20},
	{"Total", 20},
}

// WriteLedgerPDF renders entries as a paginated table under a centered
// title. Like the CSV export, the TOTAL footer is recomputed from the
// rows being written.
func WriteLedgerPDF(w io.Writer, title string, entries []core.LedgerEntry) error {
	pdf := newReportPDF(title)

	pdf.SetFont("Arial", "B", 10)
	for _, col := range ledgerPDFColumns {
		pdf.CellFormat(col.width, 10, col.header, "1", 0, "", false, 0, "")
	}
	pdf.Ln(-1)

	var total decimal.Decimal
	pdf.SetFont("Arial", "", 8)
	for _, e := range entries {
		pdf.CellFormat(ledgerPDFColumns[0].width, 10, e.Date.String(), "1", 0, "", false, 0, "")
		pdf.CellFormat(ledgerPDFColumns[1].width, 10, e.Category, "1", 0, "", false, 0, "")
		pdf.CellFormat(ledgerPDFColumns[2].width, 10, e.Subcategory, "1", 0, "", false, 0, "")
		pdf.CellFormat(ledgerPDFColumns[3].width, 10, e.Description, "1", 0, "", false, 0, "")
		pdf.CellFormat(ledgerPDFColumns[4].width, 10, e.AmountBeforeVAT.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(ledgerPDFColumns[5].width, 10, e.VATAmount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(ledgerPDFColumns[6].width, 10, e.TotalAmount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
		total = total.Add(e.TotalAmount)
	}

	if len(entries) > 0 {
		writePDFTotal(pdf, ledgerPDFColumns[6].width, sumLedgerLabelWidth(), total)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("writing ledger pdf: %w", err)
	}
	return nil
}

func sumLedgerLabelWidth() float64 {
	var w float64
	for _, col := range ledgerPDFColumns[:len(ledgerPDFColumns)-1] {
		w += col.width
	}
	return w
}

// WriteSummaryPDF renders summary rows as a three-column table. Rows
// pass through as given, the aggregation engine already appends its
// TOTAL.
func WriteSummaryPDF(w io.Writer, title string, rows []core.SummaryRow) error {
	pdf := newReportPDF(title)

	const colWidth = 60.0
	pdf.SetFont("Arial", "B", 10)
	for _, header := range []string{"Category", "Subcategory", "Total Amount"} {
		pdf.CellFormat(colWidth, 10, header, "1", 0, "", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for _, row := range rows {
		pdf.CellFormat(colWidth, 10, row.Category, "1", 0, "", false, 0, "")
		pdf.CellFormat(colWidth, 10, row.Subcategory, "1", 0, "", false, 0, "")
		pdf.CellFormat(colWidth, 10, row.TotalAmount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("writing summary pdf: %w", err)
	}
	return nil
}

func newReportPDF(title string) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
	pdf.Ln(10)
	return pdf
}

func writePDFTotal(pdf *fpdf.Fpdf, cellWidth, labelWidth float64, total decimal.Decimal) {
	pdf.Ln(5)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(labelWidth, 10, core.TotalLabel+":", "", 0, "R", false, 0, "")
	pdf.CellFormat(cellWidth, 10, total.StringFixed(2), "1", 0, "R", false, 0, "")
}
