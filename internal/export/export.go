package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"snapspend/internal/receipt"
)

const sheet = "Receipts"

var headers = []string{
	"File Name",
	"Date",
	"Category",
	"Item",
	"Quantity",
	"Price",
	"Receipt Total",
}

// ReceiptsXLSX renders the receipt ledger as an XLSX workbook, one row per
// line item. Receipts without line items still get a single row so the
// total is not lost.
func ReceiptsXLSX(records []*receipt.Record) ([]byte, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("writing header: %w", err)
		}
	}

	row := 2
	for _, r := range records {
		date := r.Date.Format("2006-01-02")
		if len(r.Items) == 0 {
			writeRow(f, row, r.FileName, date, "", "", "", nil, float64(r.Total))
			row++
			continue
		}
		for _, it := range r.Items {
			price := float64(it.Price)
			writeRow(f, row, r.FileName, date, it.Category, it.Name, it.Quantity, &price, float64(r.Total))
			row++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, row int, fileName, date, category, item, quantity string, price *float64, total float64) {
	values := []any{fileName, date, category, item, quantity, nil, total}
	if price != nil {
		values[5] = *price
	}
	for i, v := range values {
		if v == nil {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}
