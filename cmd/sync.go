package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"timeledger/config"
	"timeledger/ledger"
	"timeledger/registry"
	"timeledger/technician"
)

var syncYear int

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Add missing registry companies to the ledger",
	Long: `Ensure every client in the registry has a ledger record for the given year.
Companies already present (by normalized name) are left untouched; the rest
get zero-valued placeholders so they show up in the grid and the relation
report.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAndValidate()
		if err != nil {
			return err
		}
		if syncYear == 0 {
			syncYear = time.Now().Year()
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
		names := make([]string, 0, len(clients))
		for _, c := range clients {
			names = append(names, c.Name)
		}

		added, err := store.SyncCompanies(syncYear, names)
		if err != nil {
			return err
		}

		fmt.Printf("Added %d company record(s) to %d\n", added, syncYear)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().IntVar(&syncYear, "year", 0, "Target ledger year (default: current year)")
}
