package reports

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"ztbus-analyser/internal/observability/metrics"
)

const (
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

// Build renders report in format.
func Build(report RunReport, format string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatXLSX:
		data, err = BuildRunReportXLSX(report)
	case FormatPDF:
		data, err = BuildRunReportPDF(report)
	default:
		err = fmt.Errorf("reports: unsupported format %q", format)
	}
	metrics.IncReportExport(format, err)
	return data, err
}

// BuildRunReportPDF renders a brake run report as PDF.
func BuildRunReportPDF(report RunReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Brake Run Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("From: %s", report.From.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("To: %s", report.To.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Runs: %d", len(report.Runs)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "Type", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Count", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Mean (s)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Max (s)", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, summary := range report.Summaries() {
		pdf.CellFormat(50, 6, summary.Type, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%d", summary.Count), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.0f", summary.Mean().Seconds()), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.0f", summary.Max.Seconds()), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(38, 6, "Type", "1", 0, "C", false, 0, "")
	pdf.CellFormat(18, 6, "Trip", "1", 0, "C", false, 0, "")
	pdf.CellFormat(15, 6, "Bus", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "From", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "To", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Secs", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, run := range report.Runs {
		pdf.CellFormat(38, 6, run.Type, "1", 0, "L", false, 0, "")
		pdf.CellFormat(18, 6, fmt.Sprintf("%d", run.TripID), "1", 0, "R", false, 0, "")
		pdf.CellFormat(15, 6, fmt.Sprintf("%d", run.BusID), "1", 0, "R", false, 0, "")
		pdf.CellFormat(45, 6, run.TimeFrom.Format(time.RFC3339), "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, run.TimeTo.Format(time.RFC3339), "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%.0f", run.Duration().Seconds()), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildRunReportXLSX renders a brake run report as XLSX.
func BuildRunReportXLSX(report RunReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	runsSheet := "runs"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(runsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Brake Run Report")
	_ = f.SetCellValue(summarySheet, "A3", "From")
	_ = f.SetCellValue(summarySheet, "B3", report.From.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A4", "To")
	_ = f.SetCellValue(summarySheet, "B4", report.To.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A6", "Type")
	_ = f.SetCellValue(summarySheet, "B6", "Count")
	_ = f.SetCellValue(summarySheet, "C6", "Mean (s)")
	_ = f.SetCellValue(summarySheet, "D6", "Max (s)")
	for i, summary := range report.Summaries() {
		row := i + 7
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), summary.Type)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), summary.Count)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("C%d", row), summary.Mean().Seconds())
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("D%d", row), summary.Max.Seconds())
	}

	headers := []string{"Key", "Type", "Trip", "Bus", "Route", "From", "To", "Duration (s)"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(runsSheet, cell, header)
	}
	for i, run := range report.Runs {
		row := i + 2
		_ = f.SetCellValue(runsSheet, fmt.Sprintf("A%d", row), run.Key)
		_ = f.SetCellValue(runsSheet, fmt.Sprintf("B%d", row), run.Type)
		_ = f.SetCellValue(runsSheet, fmt.Sprintf("C%d", row), run.TripID)
		_ = f.SetCellValue(runsSheet, fmt.Sprintf("D%d", row), run.BusID)
		_ = f.SetCellValue(runsSheet, fmt.Sprintf("E%d", row), run.RouteID)
		_ = f.SetCellValue(runsSheet, fmt.Sprintf("F%d", row), run.TimeFrom.Format(time.RFC3339))
		_ = f.SetCellValue(runsSheet, fmt.Sprintf("G%d", row), run.TimeTo.Format(time.RFC3339))
		_ = f.SetCellValue(runsSheet, fmt.Sprintf("H%d", row), run.Duration().Seconds())
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
