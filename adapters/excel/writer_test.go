package excel

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"credcal/domain/core"
	"credcal/domain/coverage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleReport() *coverage.SweepReport {
	points := []coverage.SweepPoint{
		{Estimate: coverage.NewEstimate(10, 0.4, 0.95, coverage.MethodHDI, 1000, 931, 0), ExactCoverage: 0.9334},
		{Estimate: coverage.NewEstimate(100, 0.4, 0.95, coverage.MethodHDI, 1000, 948, 0), ExactCoverage: 0.9462},
	}
	return &coverage.SweepReport{
		RunID:        core.NewRunID(),
		Seed:         42,
		TargetMass:   0.95,
		Method:       coverage.MethodHDI,
		Realizations: 1000,
		NValues:      []int{10, 100},
		QValues:      []float64{0.4},
		Points:       points,
		Summaries: []coverage.SeriesSummary{
			{TrueQ: 0.4, Points: 2, MeanAbsGap: 0.0105, MaxAbsGap: 0.019, FinalGap: -0.002, CoverageStdDev: 0.0085},
		},
		CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestWriteReport_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.xlsx")
	w := NewDataWriter("", nil)
	require.NoError(t, w.Export(context.Background(), path, sampleReport()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{SheetCoverage, SheetSummary}, f.GetSheetList())

	rows, err := f.GetRows(SheetCoverage)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, CoverageHeaders, rows[0])
	assert.Equal(t, "10", rows[1][1])
	assert.Equal(t, "hdi", rows[1][3])

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, SummaryHeaders, summary[0])
}

func TestWriteReport_CSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.csv")
	report := sampleReport()
	require.NoError(t, NewDataWriter("", nil).WriteReport(path, report))

	data, err := NewDataReader(path).ReadCoverage()
	require.NoError(t, err)
	assert.Equal(t, CoverageHeaders, data.Headers)
	require.Len(t, data.Rows, 2)

	cov, err := data.Rows[0].Float("coverage")
	require.NoError(t, err)
	assert.InDelta(t, report.Points[0].Coverage, cov, 1e-12)

	exact, err := data.Rows[1].Float("exact_coverage")
	require.NoError(t, err)
	assert.InDelta(t, 0.9462, exact, 1e-12)

	_, err = NewDataReader(path).ReadSheet(SheetSummary)
	assert.Error(t, err)
}

func TestWriteReport_ExplicitFormatOverridesExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.out")
	require.NoError(t, NewDataWriter(FormatCSV, nil).WriteReport(path, sampleReport()))

	data, err := (&DataReader{filePath: path, fileType: FormatCSV}).ReadCoverage()
	require.NoError(t, err)
	assert.Len(t, data.Rows, 2)
}

func TestDataReader_XLSXSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.xlsx")
	require.NoError(t, NewDataWriter(FormatXLSX, nil).WriteReport(path, sampleReport()))

	data, err := NewDataReader(path).ReadSheet(SheetSummary)
	require.NoError(t, err)
	require.Len(t, data.Rows, 1)
	maxGap, err := data.Rows[0].Float("max_abs_gap")
	require.NoError(t, err)
	assert.InDelta(t, 0.019, maxGap, 1e-12)
}

func TestWriteReport_Errors(t *testing.T) {
	w := NewDataWriter("", nil)
	assert.Error(t, w.WriteReport(filepath.Join(t.TempDir(), "x.csv"), nil))
	assert.Error(t, NewDataWriter(Format("pdf"), nil).WriteReport(filepath.Join(t.TempDir(), "x.pdf"), sampleReport()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Export(ctx, filepath.Join(t.TempDir(), "x.csv"), sampleReport()), context.Canceled)

	_, err := NewDataReader(filepath.Join(t.TempDir(), "missing.xlsx")).ReadCoverage()
	assert.Error(t, err)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, FormatCSV, FormatFromPath("a/B.CSV"))
	assert.Equal(t, FormatXLSX, FormatFromPath("report.xlsx"))
	assert.Equal(t, FormatXLSX, FormatFromPath("report"))

	f, ok := ParseFormat("Excel")
	assert.True(t, ok)
	assert.Equal(t, FormatXLSX, f)
	f, ok = ParseFormat("")
	assert.True(t, ok)
	assert.Equal(t, Format(""), f)
	_, ok = ParseFormat("pdf")
	assert.False(t, ok)
}
