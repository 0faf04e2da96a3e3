package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"

	"credcal/domain/coverage"
	"credcal/internal"

	"github.com/xuri/excelize/v2"
)

// DataWriter exports sweep reports as Excel workbooks or CSV files
type DataWriter struct {
	format Format // empty infers from the path extension
	logger *internal.Logger
}

// NewDataWriter creates a writer. An empty format infers from the extension.
func NewDataWriter(format Format, logger *internal.Logger) *DataWriter {
	if logger == nil {
		logger = internal.NopLogger()
	}
	return &DataWriter{format: format, logger: logger}
}

// Export implements ports.ReportExporter
func (w *DataWriter) Export(ctx context.Context, path string, report *coverage.SweepReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return w.WriteReport(path, report)
}

// WriteReport writes report to path in the configured or inferred format
func (w *DataWriter) WriteReport(path string, report *coverage.SweepReport) error {
	if report == nil {
		return fmt.Errorf("nil report")
	}
	format := w.format
	if format == "" {
		format = FormatFromPath(path)
	}

	var err error
	switch format {
	case FormatXLSX:
		err = writeXLSX(path, report)
	case FormatCSV:
		err = writeCSV(path, report)
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
	if err != nil {
		return err
	}
	w.logger.Debug("[DataWriter] wrote %s report with %d points to %s", format, len(report.Points), path)
	return nil
}

func coverageRow(p coverage.SweepPoint) []interface{} {
	return []interface{}{
		p.TrueQ, p.N, p.TargetMass, string(p.Method), p.Realizations, p.Contained, p.Excluded,
		p.Coverage, p.StdErr, p.WilsonLower, p.WilsonUpper, p.ExactCoverage, p.Gap(),
	}
}

func summaryRow(s coverage.SeriesSummary) []interface{} {
	return []interface{}{s.TrueQ, s.Points, s.MeanAbsGap, s.MaxAbsGap, s.FinalGap, s.CoverageStdDev}
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]interface{}) error {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeXLSX(path string, report *coverage.SweepReport) error {
	f := excelize.NewFile()
	defer f.Close()

	// The default sheet becomes the coverage table.
	if err := f.SetSheetName("Sheet1", SheetCoverage); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return err
	}

	points := make([][]interface{}, len(report.Points))
	for i, p := range report.Points {
		points[i] = coverageRow(p)
	}
	if err := writeSheet(f, SheetCoverage, CoverageHeaders, points); err != nil {
		return err
	}

	summaries := make([][]interface{}, len(report.Summaries))
	for i, s := range report.Summaries {
		summaries[i] = summaryRow(s)
	}
	if err := writeSheet(f, SheetSummary, SummaryHeaders, summaries); err != nil {
		return err
	}

	idx, err := f.GetSheetIndex(SheetCoverage)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)
	return f.SaveAs(path)
}

func writeCSV(path string, report *coverage.SweepReport) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	if err := cw.Write(CoverageHeaders); err != nil {
		return err
	}
	for _, p := range report.Points {
		row := coverageRow(p)
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = cellText(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return file.Close()
}

func cellText(v interface{}) string {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) {
			return ""
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int:
		return strconv.Itoa(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
