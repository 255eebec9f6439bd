// Package exporter builds spreadsheet exports of the code inventory
// for the admin surface.
package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"promogate/internal/promo"
)

const codesSheet = "Codes"

// WriteCodesXLSX writes the code inventory as an Excel workbook. Codes
// are written in the order given; the caller decides sorting.
func WriteCodesXLSX(w io.Writer, codes []promo.PromoCode) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(codesSheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to remove default sheet: %w", err)
	}

	headers := []string{"Code", "Type", "Created At"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("failed to compute header cell: %w", err)
		}
		if err := f.SetCellValue(codesSheet, cell, h); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err == nil {
		f.SetCellStyle(codesSheet, "A1", "C1", headerStyle)
	}

	for i, code := range codes {
		row := i + 2
		values := []interface{}{
			code.Code,
			string(code.Type),
			code.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return fmt.Errorf("failed to compute cell: %w", err)
			}
			if err := f.SetCellValue(codesSheet, cell, v); err != nil {
				return fmt.Errorf("failed to write row %d: %w", row, err)
			}
		}
	}

	f.SetColWidth(codesSheet, "A", "A", 16)
	f.SetColWidth(codesSheet, "B", "B", 12)
	f.SetColWidth(codesSheet, "C", "C", 22)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
