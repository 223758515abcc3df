// Package export writes read-only views of the unified dataset for curators.
package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/addis-analytics/fi-dataset-cli/internal/dataset"
)

// WriteXLSX writes the table to an xlsx workbook with a single sheet: the
// header row followed by every data row verbatim.
func WriteXLSX(tbl *dataset.Table, path, sheetName string) error {
	if sheetName == "" {
		sheetName = "unified_data"
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %q", sheetName)
	}

	headerRow := sheet.AddRow()
	for _, col := range tbl.Header {
		headerRow.AddCell().SetString(col)
	}
	for _, row := range tbl.Rows {
		out := sheet.AddRow()
		for _, cell := range row {
			out.AddCell().SetString(cell)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}
