package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"timeledger/relation"
)

type CSVWriter struct{}

func (w *CSVWriter) Write(out io.Writer, rows []relation.Row, hourlyRate float64) error {
	writer := csv.NewWriter(out)
	defer writer.Flush()

	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("write csv headers: %w", err)
	}

	for _, row := range rows {
		budget := relation.ComputeCapacity(row, hourlyRate)
		record := []string{
			row.Name,
			row.VATNumber,
			row.Technician,
			strconv.FormatFloat(row.MonthlyFee, 'f', 2, 64),
			row.AverageLabel,
			budget.MaxLabel,
			budget.CutLabel,
			row.LedgerCompany,
			strings.Join(row.Quality, ", "),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	totals := relation.ComputeTotals(rows, hourlyRate)
	if err := writer.Write([]string{"Total", "", "", "", totals.AverageLabel, totals.MaxLabel, totals.CutLabel, "", ""}); err != nil {
		return fmt.Errorf("write csv totals: %w", err)
	}

	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv output: %w", err)
	}

	return nil
}
