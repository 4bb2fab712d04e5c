// Package report builds downloadable progress reports.
package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/lumen-edu/progress-engine/internal/catalog"
	"github.com/lumen-edu/progress-engine/internal/progress"
)

const sheetName = "Progress"

// ProgressSource is what the exporter needs from the scoring engine.
type ProgressSource interface {
	GetAllModulesProgress(ctx context.Context, userID string) (map[string]*progress.ProgressRecord, error)
}

// Exporter renders one learner's progress across all catalog modules as an
// Excel workbook.
type Exporter struct {
	source  ProgressSource
	catalog *catalog.Catalog
}

// NewExporter creates a report exporter.
func NewExporter(source ProgressSource, cat *catalog.Catalog) *Exporter {
	return &Exporter{source: source, catalog: cat}
}

// WriteXLSX writes the workbook for one user to w. Modules the learner has
// not opened yet appear with empty progress columns.
func (e *Exporter) WriteXLSX(ctx context.Context, userID string, w io.Writer) error {
	records, err := e.source.GetAllModulesProgress(ctx, userID)
	if err != nil {
		return fmt.Errorf("collect progress: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", sheetName)

	headers := []string{"Module", "Title", "Score", "Total Exercises", "Percentage", "Completed", "Started", "Completed At", "Last Updated"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, h)
	}

	row := 2
	for _, moduleID := range e.catalog.ModuleIDs() {
		mod, _ := e.catalog.GetModule(moduleID)

		setCell := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			f.SetCellValue(sheetName, cell, v)
		}

		setCell(1, moduleID)
		setCell(2, mod.Title)

		if rec, ok := records[moduleID]; ok {
			setCell(3, rec.Score)
			setCell(4, rec.TotalExercises)
			setCell(5, rec.Percentage)
			setCell(6, rec.Completed)
			setCell(7, formatTime(rec.StartedAt))
			if rec.CompletedAt != nil {
				setCell(8, formatTime(*rec.CompletedAt))
			}
			setCell(9, formatTime(rec.LastUpdated))
		}
		row++
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}
