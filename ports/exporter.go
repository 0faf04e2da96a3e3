package ports

import (
	"context"

	"credcal/domain/coverage"
)

// ReportExporter persists a finished calibration sweep
type ReportExporter interface {
	Export(ctx context.Context, path string, report *coverage.SweepReport) error
}
