package config

import (
	"bytes"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	KeyLedgerFile       = "ledger.file"
	KeyLedgerReportFile = "ledger.report_file"
	KeyRegistryDatabase = "registry.database"
	KeyWebPort          = "web.port"
	KeyBillingRate      = "billing.hourly_rate"
)

type Config struct {
	Ledger   LedgerConfig   `mapstructure:"ledger" validate:"required"`
	Registry RegistryConfig `mapstructure:"registry" validate:"required"`
	Web      WebConfig      `mapstructure:"web"`
	Billing  BillingConfig  `mapstructure:"billing"`
}

type LedgerConfig struct {
	File       string `mapstructure:"file" validate:"required"`
	ReportFile string `mapstructure:"report_file" validate:"required"`
}

type RegistryConfig struct {
	Database string `mapstructure:"database" validate:"required"`
}

type WebConfig struct {
	Port int `mapstructure:"port" validate:"gte=1,lte=65535"`
}

type BillingConfig struct {
	// Hourly rate in euros used to convert a client's monthly fee into a
	// time budget.
	HourlyRate float64 `mapstructure:"hourly_rate" validate:"gte=0"`
}

// SetDefaults sets default values if not provided
func SetDefaults() {
	setDefaults(viper.GetViper())
}

// LoadAndValidate loads config from Viper and validates it
func LoadAndValidate() (*Config, error) {
	return loadAndValidateFromViper(viper.GetViper())
}

// ValidateYAMLContent validates configuration from raw YAML content.
func ValidateYAMLContent(content []byte) (*Config, error) {
	local := viper.New()
	setDefaults(local)
	local.SetConfigType("yaml")
	if err := local.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("read config content: %w", err)
	}
	return loadAndValidateFromViper(local)
}

// ExampleYAML returns the default configuration template.
func ExampleYAML() string {
	return `# timeledger configuration
ledger:
  file: "./timings.json"
  report_file: "./timings_import_report.json"

registry:
  database: "./clients.db"

web:
  port: 8080

billing:
  hourly_rate: 40
`
}

func loadAndValidateFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyLedgerFile, "./timings.json")
	v.SetDefault(KeyLedgerReportFile, "./timings_import_report.json")
	v.SetDefault(KeyRegistryDatabase, "./clients.db")
	v.SetDefault(KeyWebPort, 8080)
	v.SetDefault(KeyBillingRate, 40.0)
}
