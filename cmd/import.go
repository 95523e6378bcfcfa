package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"timeledger/config"
	"timeledger/importer"
	"timeledger/ledger"
	"timeledger/registry"
	"timeledger/technician"
)

var (
	importInputs []string
	importYear   int
	importMonth  int
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import monthly timesheet workbooks into the ledger",
	Long: `Parse one or more Excel timesheet workbooks, deduplicate the facts across
all files, and merge them into the ledger as the authoritative data for the
given year and month. Re-importing the same files is safe: the month is
replaced, not added to.

A diagnostics report with unknown technicians, ignored summary rows and
suppressed duplicates is written beside the ledger.`,
	Example: `
  # Import two workbooks for March 2026
  timeledger import --year 2026 --month 3 -i timings_marco.xlsx -i extra_marco.xlsx
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAndValidate()
		if err != nil {
			return err
		}
		if len(importInputs) == 0 {
			return fmt.Errorf("at least one input file is required (-i)")
		}
		if importYear == 0 {
			importYear = time.Now().Year()
		}

		log := newLogger()
		defer func() { _ = log.Sync() }()

		resolver := technician.NewResolver()
		store, err := ledger.Open(cfg.Ledger.File, resolver, log)
		if err != nil {
			return err
		}

		var infer importer.InferTechnician
		if reg, err := registry.Open(cfg.Registry.Database); err == nil {
			defer reg.Close()
			if clients, err := reg.ListClients(); err == nil {
				infer = func(companyKey string) string {
					return registry.PrimaryTechnician(clients, resolver, companyKey)
				}
			}
		}

		result, err := importer.Run(importInputs, importYear, importMonth, resolver, store, infer)
		if err != nil {
			return err
		}

		if err := result.Report.Write(cfg.Ledger.ReportFile); err != nil {
			fmt.Printf("Warning: write import report: %v\n", err)
		}

		fmt.Printf("Imported %d file(s), %d fact(s) applied to %d-%02d\n",
			result.FilesProcessed, result.FactsApplied, importYear, importMonth)
		if result.Report.HasFindings() {
			fmt.Printf("Findings written to %s\n", cfg.Ledger.ReportFile)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringArrayVarP(&importInputs, "input", "i", nil, "Input workbook (.xlsx); repeatable")
	importCmd.Flags().IntVar(&importYear, "year", 0, "Target ledger year (default: current year)")
	importCmd.Flags().IntVar(&importMonth, "month", 0, "Target month 1..12 (required)")
	_ = importCmd.MarkFlagRequired("month")
}
