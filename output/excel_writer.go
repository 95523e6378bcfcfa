package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"timeledger/relation"
)

type ExcelWriter struct{}

func (w *ExcelWriter) Write(out io.Writer, rows []relation.Row, hourlyRate float64) error {
	file := excelize.NewFile()
	defer file.Close()

	sheet := file.GetSheetName(0)

	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := file.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("set excel header %s: %w", cell, err)
		}
	}

	for i, row := range rows {
		budget := relation.ComputeCapacity(row, hourlyRate)
		values := []any{
			row.Name,
			row.VATNumber,
			row.Technician,
			row.MonthlyFee,
			row.AverageLabel,
			budget.MaxLabel,
			budget.CutLabel,
			row.LedgerCompany,
			strings.Join(row.Quality, ", "),
		}

		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := file.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("set excel value %s: %w", cell, err)
			}
		}
	}

	totals := relation.ComputeTotals(rows, hourlyRate)
	totalRow := len(rows) + 2
	totalValues := map[int]any{
		1: "Total",
		5: totals.AverageLabel,
		6: totals.MaxLabel,
		7: totals.CutLabel,
	}
	for col, value := range totalValues {
		cell, _ := excelize.CoordinatesToCellName(col, totalRow)
		if err := file.SetCellValue(sheet, cell, value); err != nil {
			return fmt.Errorf("set excel total %s: %w", cell, err)
		}
	}

	if err := file.Write(out); err != nil {
		return fmt.Errorf("write excel output: %w", err)
	}

	return nil
}
