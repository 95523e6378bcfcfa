package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"timeledger/config"
	"timeledger/ledger"
	"timeledger/output"
	"timeledger/registry"
	"timeledger/relation"
	"timeledger/technician"
)

var (
	exportYear   int
	exportOutput string
	exportFormat string
	exportRate   float64
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the relation report to Excel or CSV",
	Long: `Join the client registry against the ledger for one year and write the
relation report (average time, fee-funded time budget, time to cut, data
quality flags) to a file. The format is inferred from the output extension
unless --format is given.`,
	Example: `
  # Export 2026 as Excel
  timeledger export --year 2026 --output ./relation.xlsx

  # Export as CSV with a custom hourly rate
  timeledger export --year 2026 --output ./relation.csv --rate 45
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAndValidate()
		if err != nil {
			return err
		}
		if exportYear == 0 {
			exportYear = time.Now().Year()
		}
		if exportRate == 0 {
			exportRate = cfg.Billing.HourlyRate
		}

		format := exportFormat
		if format == "" {
			format = strings.TrimPrefix(filepath.Ext(exportOutput), ".")
		}
		writer, err := output.WriterForFormat(format)
		if err != nil {
			return err
		}

		log := newLogger()
		defer func() { _ = log.Sync() }()

		store, err := ledger.Open(cfg.Ledger.File, technician.NewResolver(), log)
		if err != nil {
			return err
		}
		reg, err := registry.Open(cfg.Registry.Database)
		if err != nil {
			return err
		}
		defer reg.Close()

		clients, err := reg.ListClients()
		if err != nil {
			return err
		}
		rows := relation.BuildRows(clients, store.Year(exportYear))

		file, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("create export file %s: %w", exportOutput, err)
		}
		defer file.Close()

		if err := writer.Write(file, rows, exportRate); err != nil {
			return err
		}

		fmt.Printf("Exported %d row(s) to %s\n", len(rows), exportOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().IntVar(&exportYear, "year", 0, "Ledger year to export (default: current year)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "./relation.xlsx", "Output file path")
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "Output format: excel or csv (default: from extension)")
	exportCmd.Flags().Float64Var(&exportRate, "rate", 0, "Hourly rate in euros (default: from config)")
}
