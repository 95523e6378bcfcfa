package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"timeledger/config"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "timeledger",
	Short: "Import, reconcile, and report technician time against the client ledger.",
	Long: `timeledger keeps the firm's yearly time ledger: it imports monthly timesheet
workbooks, deduplicates and attributes the minutes per company and technician,
and reports each client's workload against its monthly fee.

The ledger is a single JSON file; the client registry is a local SQLite
database. Older ledger formats are migrated automatically on first load,
with a timestamped backup written beside the file.`,
	Example: `
  # Create configuration file
  timeledger config create

  # Import the March timesheets into 2026
  timeledger import --year 2026 --month 3 -i timings_marco.xlsx -i extra_marco.xlsx

  # Start the local web UI
  timeledger serve

  # Re-save the ledger in the current format (with backup)
  timeledger migrate

  # Add missing registry companies to the 2026 ledger
  timeledger sync --year 2026

  # Export the relation report
  timeledger export --year 2026 --output ./relation.xlsx
`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	config.SetDefaults()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "configFile", "", "Config file override (default discovery: $HOME/.timeledger.yaml, then ./.timeledger.yaml)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".timeledger" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".timeledger")
	}

	viper.AutomaticEnv() // read in environment variables that match

	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintln(os.Stderr, "No config file found. Create one first with: timeledger config create")
	}
}

func newLogger() *zap.Logger {
	log, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return log
}
