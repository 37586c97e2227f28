package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is a named result table ready for export.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// WriteWorkbook renders the tables into a styled xlsx workbook, one sheet
// per table, using the given flavor's packaged layout.
func WriteWorkbook(path string, tables []Table, flavor Flavor) error {
	if len(tables) == 0 {
		return fmt.Errorf("no tables to export")
	}

	style, err := loadStyle(flavor)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: hexColor(style.HeaderFont)},
		Fill: excelize.Fill{Type: "pattern", Color: []string{hexColor(style.HeaderFill)}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	bandStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{hexColor(style.BandFill)}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("band style: %w", err)
	}

	for _, table := range tables {
		if _, err := f.NewSheet(table.Name); err != nil {
			return fmt.Errorf("sheet %s: %w", table.Name, err)
		}
		if err := writeSheet(f, table, style, headerStyle, bandStyle); err != nil {
			return fmt.Errorf("sheet %s: %w", table.Name, err)
		}
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, table Table, style sheetStyle, headerStyle, bandStyle int) error {
	header := make([]any, len(table.Columns))
	for i, col := range table.Columns {
		header[i] = col
	}
	if err := f.SetSheetRow(table.Name, "A1", &header); err != nil {
		return err
	}

	for i, row := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := append([]any{}, row...)
		if err := f.SetSheetRow(table.Name, cell, &values); err != nil {
			return err
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(table.Columns))
	if err != nil {
		return err
	}

	// Header banding.
	if err := f.SetCellStyle(table.Name, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}
	// Row banding on every other data row.
	for i := range table.Rows {
		if i%2 != 0 {
			continue
		}
		row := i + 2
		top, _ := excelize.CoordinatesToCellName(1, row)
		bottom, _ := excelize.CoordinatesToCellName(len(table.Columns), row)
		if err := f.SetCellStyle(table.Name, top, bottom, bandStyle); err != nil {
			return err
		}
	}

	// Column widths: per-column from the flavor, default for the rest.
	for i := range table.Columns {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		width := style.DefaultWidth
		if i < len(style.ColumnWidths) {
			width = style.ColumnWidths[i]
		}
		if err := f.SetColWidth(table.Name, col, col, width); err != nil {
			return err
		}
	}

	if style.FreezeHeader {
		if err := f.SetPanes(table.Name, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return err
		}
	}

	return nil
}

func hexColor(c string) string {
	return strings.TrimPrefix(c, "#")
}
