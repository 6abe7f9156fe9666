package stats

import (
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
)

var pdfColumnWidths = []float64{34, 20, 22, 18, 18, 22, 22, 20}

// WritePDF exports the report summary and session table to path.
func WritePDF(path string, report Report, now time.Time) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("endure session history", true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Session History")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated %s", now.Local().Format("2006-01-02 15:04")))
	pdf.Ln(10)

	sum := report.Summary
	if sum.Sessions == 0 {
		pdf.SetFont("Arial", "", 12)
		pdf.Cell(0, 8, "No sessions found.")
		return pdf.OutputFileAndClose(path)
	}

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 11)
	for _, line := range []string{
		fmt.Sprintf("Sessions: %d", sum.Sessions),
		fmt.Sprintf("Time played: %s", FormatDuration(sum.TotalDuration)),
		fmt.Sprintf("Best repeats: %d (avg %.2f)", sum.BestRepeats, sum.AvgRepeats),
		fmt.Sprintf("Highest ceiling: %d", sum.HighestCeiling),
		fmt.Sprintf("Timer 2 sequences: %d (avg wait %.1fs)", sum.Timer2Sequences, sum.AvgSequenceWait),
	} {
		pdf.Cell(0, 6, line)
		pdf.Ln(6)
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range SessionHeaders {
		pdf.CellFormat(pdfColumnWidths[i], 7, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, s := range report.Sessions {
		row := SessionRow(s, now)
		row[0] = s.EndedAt.Local().Format("2006-01-02 15:04")
		for i, cell := range row {
			align := "R"
			if i == 0 || i == 2 || i == 5 {
				align = "L"
			}
			pdf.CellFormat(pdfColumnWidths[i], 6, cell, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}
