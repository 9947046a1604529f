package input

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/derickschaefer/composite/internal/model"
)

// ReadXLSX reads the first sheet of the workbook at path.
func ReadXLSX(path string) ([]model.Observation, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return parseRows(rows)
}

// WriteXLSX writes obs to a new workbook at path with a date,value header.
// Missing values are left as empty cells.
func WriteXLSX(path string, obs []model.Observation) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &[]interface{}{"date", "value"}); err != nil {
		return err
	}
	for i, o := range obs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{o.Date.Format("2006-01-02"), nil}
		if v, ok := o.Value.Float(); ok {
			row[1] = v
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}
