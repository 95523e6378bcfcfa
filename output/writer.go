// Package output renders the relation report to downloadable files.
package output

import (
	"fmt"
	"io"
	"strings"

	"timeledger/relation"
)

// Writer renders relation rows at a given hourly rate.
type Writer interface {
	Write(w io.Writer, rows []relation.Row, hourlyRate float64) error
}

func WriterForFormat(format string) (Writer, error) {
	switch normalizeFormat(format) {
	case "csv":
		return &CSVWriter{}, nil
	case "excel", "xlsx":
		return &ExcelWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

func normalizeFormat(value string) string {
	return strings.TrimSpace(strings.ToLower(value))
}

var headers = []string{
	"Client",
	"VAT Number",
	"Technician",
	"Monthly Fee",
	"Avg Time/Month",
	"Max Time/Month",
	"Time To Cut",
	"Ledger Entry",
	"Quality",
}
