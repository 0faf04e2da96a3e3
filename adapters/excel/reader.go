package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// DataReader reads report tables back from Excel and CSV files
type DataReader struct {
	filePath string
	fileType Format
}

// NewDataReader creates a reader for either layout, chosen by extension
func NewDataReader(filePath string) *DataReader {
	return &DataReader{filePath: filePath, fileType: FormatFromPath(filePath)}
}

// ReadCoverage reads the per-point coverage table
func (r *DataReader) ReadCoverage() (*ReportData, error) {
	return r.ReadSheet(SheetCoverage)
}

// ReadSheet reads a named sheet. CSV files hold a single table, so sheet
// must be SheetCoverage for them.
func (r *DataReader) ReadSheet(sheet string) (*ReportData, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(string(r.fileType)), r.filePath)
	}

	switch r.fileType {
	case FormatCSV:
		if sheet != SheetCoverage {
			return nil, fmt.Errorf("CSV reports have no %s table", sheet)
		}
		return r.readCSVData()
	case FormatXLSX:
		return r.readExcelData(sheet)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
}

func (r *DataReader) readExcelData(sheet string) (*ReportData, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sheet, err)
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("sheet %s has no header row", sheet)
	}
	return processRows(rows), nil
}

func (r *DataReader) readCSVData() (*ReportData, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("CSV file has no header row")
	}
	return processRows(rows), nil
}

// processRows converts raw string rows into ReportData
func processRows(rows [][]string) *ReportData {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(header)
	}

	dataRows := make([]RawRowData, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rowData := make(RawRowData, len(headers))
		for j, cell := range row {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}
		dataRows = append(dataRows, rowData)
	}

	return &ReportData{Headers: headers, Rows: dataRows}
}

// Float parses a numeric cell
func (row RawRowData) Float(column string) (float64, error) {
	v, ok := row[column]
	if !ok {
		return 0, fmt.Errorf("missing column %q", column)
	}
	return strconv.ParseFloat(v, 64)
}
