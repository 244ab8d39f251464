// Package export writes priced estimates to files for sharing with clients
// and contractors.
package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/cassidypignatello/bangun/internal/model"
)

var bomHeader = []string{
	"Material", "English Name", "Qty", "Unit",
	"Unit Price (IDR)", "Total (IDR)", "Source", "Confidence", "Marketplace URL",
}

// WriteBOM writes the project's priced bill of materials to an XLSX
// workbook: a header row, one row per line item and a totals footer.
func WriteBOM(path string, p *model.Project) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Estimate")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range bomHeader {
		header.AddCell().SetString(h)
	}

	for _, d := range p.BOM {
		row := sheet.AddRow()
		row.AddCell().SetString(d.MaterialName)
		row.AddCell().SetString(d.EnglishName)
		row.AddCell().SetFloat(d.Quantity)
		row.AddCell().SetString(d.Unit)
		row.AddCell().SetInt64(d.UnitPriceIDR)
		row.AddCell().SetInt64(d.TotalPriceIDR)
		row.AddCell().SetString(string(d.Source))
		row.AddCell().SetFloat(d.Confidence)
		row.AddCell().SetString(d.MarketplaceURL)
	}

	sheet.AddRow() // spacer
	addTotal(sheet, "Material Total", p.MaterialTotal)
	addTotal(sheet, "Labor Total", p.LaborTotal)
	addTotal(sheet, "Grand Total", p.GrandTotal)

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "export: save workbook")
	}
	return nil
}

func addTotal(sheet *xlsx.Sheet, label string, amount int64) {
	row := sheet.AddRow()
	row.AddCell().SetString(label)
	row.AddCell() // pad to align amounts under the totals column
	row.AddCell()
	row.AddCell()
	row.AddCell()
	row.AddCell().SetInt64(amount)
}
