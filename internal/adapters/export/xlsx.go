package export

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/model"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/stats"
)

const (
	reportsSheet = "Reports"
	summarySheet = "Summary"
)

var summaryHeader = []string{"Breakdown", "Value", "Count"}

// WriteXLSX writes a workbook with a Reports sheet holding the CSV columns
// and a Summary sheet holding the breakdowns of view.
func WriteXLSX(w io.Writer, reports []model.Report, view stats.View) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", reportsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := writeReportsSheet(f, reports, headerStyle); err != nil {
		return err
	}
	if err := writeSummarySheet(f, view, headerStyle); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeReportsSheet(f *excelize.File, reports []model.Report, style int) error {
	if err := writeRow(f, reportsSheet, 1, toCells(CSVHeader)); err != nil {
		return err
	}
	if err := styleHeader(f, reportsSheet, len(CSVHeader), style); err != nil {
		return err
	}
	for i, r := range reports {
		if err := writeRow(f, reportsSheet, i+2, toCells(csvRow(r))); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(reportsSheet, "A", "L", 18); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	return nil
}

func writeSummarySheet(f *excelize.File, view stats.View, style int) error {
	if err := writeRow(f, summarySheet, 1, toCells(summaryHeader)); err != nil {
		return err
	}
	if err := styleHeader(f, summarySheet, len(summaryHeader), style); err != nil {
		return err
	}

	row := 2
	sections := []struct {
		name   string
		counts map[string]int
	}{
		{"Facility", view.Facility},
		{"Unit", view.Unit},
		{"Outcome", view.Outcome},
		{"Staff Category", view.StaffCategory},
		{"Clinic Errors", view.ClinicErrors},
		{"Pharmacy Errors", view.PharmacyErrors},
	}
	for _, s := range sections {
		for _, key := range sortedKeys(s.counts) {
			if err := writeRow(f, summarySheet, row, []any{s.name, key, s.counts[key]}); err != nil {
				return err
			}
			row++
		}
	}

	row++
	if err := writeRow(f, summarySheet, row, []any{"Facility", "Unit", "Outcome", "Count"}); err != nil {
		return err
	}
	row++
	for _, fr := range view.FrequencyData {
		if err := writeRow(f, summarySheet, row, []any{fr.Facility, fr.Unit, fr.Category, fr.Count}); err != nil {
			return err
		}
		row++
	}

	if err := f.SetColWidth(summarySheet, "A", "D", 22); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("convert coordinates: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func styleHeader(f *excelize.File, sheet string, cols, style int) error {
	last, err := excelize.CoordinatesToCellName(cols, 1)
	if err != nil {
		return fmt.Errorf("convert coordinates: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("set header style: %w", err)
	}
	return nil
}

func toCells(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
