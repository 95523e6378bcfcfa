package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"timeledger/config"
)

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active configuration values and their source file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAndValidate()
		if err != nil {
			return err
		}

		source := viper.ConfigFileUsed()
		if source == "" {
			source = "(defaults, no config file)"
		}

		fmt.Printf("Config source: %s\n", source)
		fmt.Printf("ledger.file:          %s\n", cfg.Ledger.File)
		fmt.Printf("ledger.report_file:   %s\n", cfg.Ledger.ReportFile)
		fmt.Printf("registry.database:    %s\n", cfg.Registry.Database)
		fmt.Printf("web.port:             %d\n", cfg.Web.Port)
		fmt.Printf("billing.hourly_rate:  %.2f\n", cfg.Billing.HourlyRate)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
