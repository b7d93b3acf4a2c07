/*
report.go - XLSX export of client month summaries

PURPOSE:
  Finance exports a month of summaries to a spreadsheet. One sheet named after
  the period (e.g. "2025-03"), a bold header row, one row per client.

  Credit and price values are written as numbers so the sheet can sum them.

SEE ALSO:
  - credits/summary.go: GetClientMonthSummaries
  - api/handlers.go: ExportSummaries endpoint
  - cmd/server: summary --xlsx
*/
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/warp/creative-boost/credits"
)

// ContentType is the MIME type of the workbook written by WriteSummaries.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var headers = []string{
	"Client",
	"Brand",
	"Status",
	"Min credits",
	"Max credits",
	"Used credits",
	"Normal credits",
	"Express credits",
	"Remaining credits",
	"Items",
	"Price per credit",
	"Estimated invoice",
}

// Filename is the suggested attachment name for a period.
func Filename(p credits.Period) string {
	return fmt.Sprintf("creative-boost-%s.xlsx", p)
}

// WriteSummaries writes summaries as a workbook to w.
func WriteSummaries(w io.Writer, p credits.Period, summaries []credits.ClientMonthSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := p.String()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheet, "A1", lastHeader, bold); err != nil {
		return err
	}

	for i, s := range summaries {
		row := []any{
			s.ClientName,
			s.BrandName,
			string(s.Status),
			s.MinCredits.InexactFloat64(),
			s.MaxCredits.InexactFloat64(),
			s.UsedCredits.InexactFloat64(),
			s.NormalCredits.InexactFloat64(),
			s.ExpressCredits.InexactFloat64(),
			s.RemainingCredits.InexactFloat64(),
			s.ItemCount,
			s.PricePerCredit.InexactFloat64(),
			s.EstimatedInvoice.InexactFloat64(),
		}
		start, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, start, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(sheet, "A", "B", 24); err != nil {
		return err
	}
	return f.Write(w)
}
