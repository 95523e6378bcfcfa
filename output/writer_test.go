package output

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/xuri/excelize/v2"

	"timeledger/match"
	"timeledger/relation"
)

func testRows() []relation.Row {
	return []relation.Row{
		{
			Name:           "Acme, Lda",
			VATNumber:      "501234567",
			Technician:     "Pedro Almeida",
			MonthlyFee:     100,
			MatchTier:      match.TierExact,
			LedgerCompany:  "Acme, Lda",
			AverageMinutes: 200,
			AverageLabel:   "3h20m",
			Quality:        nil,
		},
		{
			Name:         "Orphan Client",
			MatchTier:    match.TierNone,
			AverageLabel: "0h00m",
			Quality:      []string{relation.FlagNoTechnician, relation.FlagNoLedger},
		},
	}
}

func TestWriterForFormat(t *testing.T) {
	t.Parallel()

	if _, err := WriterForFormat("csv"); err != nil {
		t.Fatalf("csv writer: %v", err)
	}
	if _, err := WriterForFormat(" Excel "); err != nil {
		t.Fatalf("excel writer: %v", err)
	}
	if _, err := WriterForFormat("pdf"); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestCSVWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := (&CSVWriter{}).Write(&buf, testRows(), 40); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv back: %v", err)
	}
	// Header, two rows, totals line.
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}
	if records[1][0] != "Acme, Lda" {
		t.Fatalf("unexpected first row: %v", records[1])
	}
	// 100 EUR at 40 EUR/h funds 150 minutes; 200 used means 50 to cut.
	if records[1][5] != "2h30m" || records[1][6] != "0h50m" {
		t.Fatalf("unexpected capacity columns: %v", records[1])
	}
	if records[3][0] != "Total" {
		t.Fatalf("expected totals line, got %v", records[3])
	}
}

func TestExcelWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := (&ExcelWriter{}).Write(&buf, testRows(), 40); err != nil {
		t.Fatalf("write excel: %v", err)
	}

	file, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open written workbook: %v", err)
	}
	defer file.Close()

	sheet := file.GetSheetName(0)
	rows, err := file.GetRows(sheet)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if rows[1][0] != "Acme, Lda" {
		t.Fatalf("unexpected first data row: %v", rows[1])
	}
	if rows[3][0] != "Total" {
		t.Fatalf("expected totals row, got %v", rows[3])
	}
}
