package reports

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// XLSX writes the table as a single-sheet workbook. Numeric columns are stored as numbers.
func (t Table) XLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := t.Title
	if sheet == "" {
		sheet = defaultSheet
	}
	if sheet != defaultSheet {
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			return fmt.Errorf("failed to name sheet: %w", err)
		}
	}

	if err := writeSheetRow(f, sheet, 1, stringsToCells(t.Header, nil)); err != nil {
		return err
	}
	for i, row := range t.Rows {
		if err := writeSheetRow(f, sheet, i+2, stringsToCells(row, t.Numeric)); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSheetRow(f *excelize.File, sheet string, rowNum int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("failed to address row %d: %w", rowNum, err)
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write row %d: %w", rowNum, err)
	}
	return nil
}

func stringsToCells(row []string, numeric []bool) []interface{} {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = v
		if i < len(numeric) && numeric[i] {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				cells[i] = f
			}
		}
	}
	return cells
}
