package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"timeledger/config"
	"timeledger/ledger"
	"timeledger/technician"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Rewrite the ledger file in the current format",
	Long: `Load the ledger (converting any legacy format), then force a backup and a
full rewrite in the current schema. Normally migration happens automatically
on first load; this command exists to run it explicitly and see the totals.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAndValidate()
		if err != nil {
			return err
		}

		log := newLogger()
		defer func() { _ = log.Sync() }()

		store, err := ledger.Open(cfg.Ledger.File, technician.NewResolver(), log)
		if err != nil {
			return err
		}

		oldTotal, newTotal, err := store.Rewrite()
		if err != nil {
			return err
		}

		fmt.Printf("Ledger rewritten: %d minutes on disk before, %d after\n", oldTotal, newTotal)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
