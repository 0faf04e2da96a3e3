package excel

import (
	"path/filepath"
	"strings"
)

// RawRowData represents a row of a report table as header to cell text
type RawRowData map[string]string

// ReportData is a report table read back from disk
type ReportData struct {
	Headers []string
	Rows    []RawRowData
}

// Format selects the on-disk report layout
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// Sheet names used in workbook reports
const (
	SheetCoverage = "Coverage"
	SheetSummary  = "Summary"
)

// CoverageHeaders are the columns of the per-point coverage table
var CoverageHeaders = []string{
	"q_true", "n", "target_mass", "method", "realizations", "contained", "excluded",
	"coverage", "std_err", "wilson_lower", "wilson_upper", "exact_coverage", "gap",
}

// SummaryHeaders are the columns of the per-q summary table
var SummaryHeaders = []string{
	"q_true", "points", "mean_abs_gap", "max_abs_gap", "final_gap", "coverage_std_dev",
}

// FormatFromPath infers the layout from a file extension, defaulting to xlsx
func FormatFromPath(path string) Format {
	if strings.ToLower(filepath.Ext(path)) == ".csv" {
		return FormatCSV
	}
	return FormatXLSX
}

// ParseFormat normalizes a user-supplied format name. Empty means "infer".
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", true
	case "xlsx", "excel":
		return FormatXLSX, true
	case "csv":
		return FormatCSV, true
	default:
		return "", false
	}
}
