package cmd

import "github.com/spf13/cobra"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage timeledger configuration file values.",
	Long: `Create and display the timeledger configuration file.

The configuration stores:
- ledger.file / ledger.report_file
- registry.database
- web.port
- billing.hourly_rate`,
	Example: `
  # Create default config in $HOME/.timeledger.yaml
  timeledger config create

  # Show active config and source file
  timeledger config show
`,
}

func init() {
	rootCmd.AddCommand(configCmd)
}
