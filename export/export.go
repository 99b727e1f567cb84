/*
export.go - Summary exports

PURPOSE:
  Flattens an aggregated forest into department-level rows and writes them
  as XLSX, CSV or PDF. Values are rounded for presentation here and nowhere
  earlier.

COLUMNS:
  Period, Client, Department, Head Count, Shift A, Shift B, Shift C,
  Shift PRIME, Total Allowance

  A zero-filled client with no departments produces a single row with an
  empty department.
*/
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/warp/shift-allowance/allowance"
	"github.com/xuri/excelize/v2"
)

// Format is the output file type.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
)

// ParseFormat accepts xlsx, csv or pdf in any case. Empty means xlsx.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatXLSX, nil
	case FormatXLSX, FormatCSV, FormatPDF:
		return f, nil
	}
	return "", fmt.Errorf("%w: unsupported export format %q", allowance.ErrInvalidParameter, s)
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatPDF:
		return "application/pdf"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Header is the column row shared by every writer.
var Header = []string{
	"Period", "Client", "Department", "Head Count",
	"Shift A", "Shift B", "Shift C", "Shift PRIME", "Total Allowance",
}

// SummaryRow is one department line. Money is rounded to two places.
type SummaryRow struct {
	Period     string
	Client     string
	Department string
	HeadCount  int
	Allowance  allowance.ShiftAmounts
	Total      decimal.Decimal
}

// SummaryRows flattens f in period, client, department order.
func SummaryRows(f allowance.Forest) []SummaryRow {
	var rows []SummaryRow
	for _, p := range f.Periods {
		for _, c := range p.Clients {
			if len(c.Departments) == 0 {
				rows = append(rows, newRow(p.Key, c.Name, "", c.Totals))
				continue
			}
			for _, d := range c.Departments {
				rows = append(rows, newRow(p.Key, c.Name, d.Name, d.Totals))
			}
		}
	}
	return rows
}

func newRow(period, client, dept string, t allowance.Totals) SummaryRow {
	rounded := allowance.ShiftAmounts{
		A:     allowance.Round(t.Allowance.A),
		B:     allowance.Round(t.Allowance.B),
		C:     allowance.Round(t.Allowance.C),
		Prime: allowance.Round(t.Allowance.Prime),
	}
	return SummaryRow{
		Period:     period,
		Client:     client,
		Department: dept,
		HeadCount:  t.HeadCount,
		Allowance:  rounded,
		// Total is the sum of the printed columns.
		Total: rounded.A.Add(rounded.B).Add(rounded.C).Add(rounded.Prime),
	}
}

// Strings renders the row in Header order.
func (r SummaryRow) Strings() []string {
	return []string{
		r.Period,
		r.Client,
		r.Department,
		strconv.Itoa(r.HeadCount),
		r.Allowance.A.StringFixed(2),
		r.Allowance.B.StringFixed(2),
		r.Allowance.C.StringFixed(2),
		r.Allowance.Prime.StringFixed(2),
		r.Total.StringFixed(2),
	}
}

// Write dispatches to the writer for format.
func Write(w io.Writer, format Format, title string, rows []SummaryRow) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, rows)
	case FormatPDF:
		return WritePDF(w, title, rows)
	}
	return WriteXLSX(w, rows)
}

// =============================================================================
// XLSX
// =============================================================================

const sheetName = "Summary"

func WriteXLSX(w io.Writer, rows []SummaryRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{
			r.Period, r.Client, r.Department, r.HeadCount,
			r.Allowance.A.InexactFloat64(),
			r.Allowance.B.InexactFloat64(),
			r.Allowance.C.InexactFloat64(),
			r.Allowance.Prime.InexactFloat64(),
			r.Total.InexactFloat64(),
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// =============================================================================
// CSV
// =============================================================================

func WriteCSV(w io.Writer, rows []SummaryRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.Strings()); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// =============================================================================
// PDF
// =============================================================================

var (
	headerFill = [3]int{20, 33, 61}
	stripeFill = [3]int{240, 240, 240}
	colWidths  = []float64{22, 38, 32, 14, 16, 16, 16, 18, 25}
)

// WritePDF renders rows as an A4 table under a title line.
func WritePDF(w io.Writer, title string, rows []SummaryRow) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(5, 10, 5)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 10, tr(title))
	pdf.Ln(12)

	writeHeader := func() {
		pdf.SetFont("Arial", "B", 7)
		pdf.SetFillColor(headerFill[0], headerFill[1], headerFill[2])
		pdf.SetTextColor(255, 255, 255)
		for i, h := range Header {
			pdf.CellFormat(colWidths[i], 7, h, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 7)
		pdf.SetTextColor(0, 0, 0)
	}
	writeHeader()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for i, r := range rows {
		if pdf.GetY()+6 > pageHeight-bottom-10 {
			pdf.AddPage()
			writeHeader()
		}
		fill := i%2 == 1
		pdf.SetFillColor(stripeFill[0], stripeFill[1], stripeFill[2])
		for j, v := range r.Strings() {
			align := "L"
			if j >= 3 {
				align = "R"
			}
			pdf.CellFormat(colWidths[j], 6, tr(v), "1", 0, align, fill, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(rows) == 0 {
		pdf.Ln(4)
		pdf.Cell(0, 6, "No data")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	return nil
}
