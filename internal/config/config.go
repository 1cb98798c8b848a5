// =============================================================================
// Invoice Normalizer - Configuration Module
// =============================================================================
//
// This module loads the application configuration, the account store and
// batch manifests.
//
// CONFIGURATION SOURCES (later sources win):
//   1. Main config file (config.yaml), optional
//   2. A .env file in the working directory, optional
//   3. Environment variables prefixed with NORMALIZER_
//      (e.g. NORMALIZER_OUTPUT_DIR, NORMALIZER_KELLER_TAX_RATE)
//   4. Built-in defaults for anything still unset
//
// The result is validated before it is returned.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "NORMALIZER"

// DefaultConfigFile is loaded when no path is given and the file exists.
const DefaultConfigFile = "config.yaml"

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputDir is where the spreadsheet (and optional CSV) are written.
	// Default: "./output"
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`

	// OutputNameFormat defines the output file name.
	// Placeholders:
	//   {uuid}      - A random UUID
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	//   {date}      - Current date (YYYYMMDD)
	//   {providers} - Provider tags in the batch, joined with "-"
	// Default: "normalizado_{timestamp}.xlsx"
	OutputNameFormat string `yaml:"output_name_format" envconfig:"OUTPUT_NAME_FORMAT" validate:"required,endswith=.xlsx"`

	// SheetName is the label of the single output sheet.
	// Default: "Datos Normalizados"
	SheetName string `yaml:"sheet_name" envconfig:"SHEET_NAME" validate:"required,max=31"`

	// WriteCSV also writes the merged table as CSV next to the spreadsheet.
	WriteCSV bool `yaml:"write_csv" envconfig:"WRITE_CSV"`

	// CSVDelimiter separates fields in the CSV output.
	// Default: ";"
	CSVDelimiter string `yaml:"csv_delimiter" envconfig:"CSV_DELIMITER" validate:"required,len=1"`

	// WriteSummary writes a plain-text run summary next to the spreadsheet.
	WriteSummary bool `yaml:"write_summary" envconfig:"WRITE_SUMMARY"`

	// =========================================================================
	// INPUT SETTINGS
	// =========================================================================

	// AccountsFile is the JSON or YAML account store.
	// Default: "./cuentas.json"
	AccountsFile string `yaml:"accounts_file" envconfig:"ACCOUNTS_FILE" validate:"required"`

	// FolderPatterns select the files queued from a folder.
	// Default: ["*.csv"]
	FolderPatterns []string `yaml:"folder_patterns" envconfig:"FOLDER_PATTERNS" validate:"required,min=1,dive,required"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// StrictRowCount turns a row-count mismatch after merging from a warning
	// into an error.
	StrictRowCount bool `yaml:"strict_row_count" envconfig:"STRICT_ROW_COUNT"`

	// Timeout bounds a whole batch run. Zero means no limit.
	Timeout time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gte=0"`

	// Keller holds the keller-specific settings.
	Keller KellerConfig `yaml:"keller" envconfig:"KELLER"`

	// =========================================================================
	// LOGGING AND METRICS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL" validate:"oneof=debug info warn error"`

	// LogFormat is "text" or "json".
	// Default: "text"
	LogFormat string `yaml:"log_format" envconfig:"LOG_FORMAT" validate:"oneof=text json"`

	// LogFile receives a copy of every log line when set.
	LogFile string `yaml:"log_file" envconfig:"LOG_FILE"`

	// MetricsFile receives the batch metrics in Prometheus text format when set.
	MetricsFile string `yaml:"metrics_file" envconfig:"METRICS_FILE"`
}

// KellerConfig holds the settings of the keller provider.
type KellerConfig struct {
	// AccountLabel is the account store key used for every keller file.
	// Default: "depo"
	AccountLabel string `yaml:"account_label" envconfig:"ACCOUNT_LABEL" validate:"required"`

	// TaxRate is written to the IVA column of keller rows.
	// Default: "0"
	TaxRate string `yaml:"tax_rate" envconfig:"TAX_RATE" validate:"required,numeric"`
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads, merges, defaults and validates the main configuration.
//
// PARAMETERS:
//   - configPath: The YAML file to read. Empty means DefaultConfigFile if it
//     exists, otherwise defaults only.
//
// RETURNS:
//   - The loaded configuration.
//   - An error if a file cannot be parsed or the result is invalid.
func Load(configPath string) (*MainConfig, error) {
	var cfg MainConfig

	path := configPath
	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing is configured.
func Default() *MainConfig {
	var cfg MainConfig
	applyDefaults(&cfg)
	return &cfg
}

// applyDefaults fills in unset values.
func applyDefaults(cfg *MainConfig) {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "./output"
	}
	if cfg.OutputNameFormat == "" {
		cfg.OutputNameFormat = "normalizado_{timestamp}.xlsx"
	}
	if cfg.SheetName == "" {
		cfg.SheetName = "Datos Normalizados"
	}
	if cfg.CSVDelimiter == "" {
		cfg.CSVDelimiter = ";"
	}
	if cfg.AccountsFile == "" {
		cfg.AccountsFile = "./cuentas.json"
	}
	if len(cfg.FolderPatterns) == 0 {
		cfg.FolderPatterns = []string{"*.csv"}
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.Keller.AccountLabel == "" {
		cfg.Keller.AccountLabel = "depo"
	}
	if cfg.Keller.TaxRate == "" {
		cfg.Keller.TaxRate = "0"
	}
}

// Validate checks the configuration values.
func (c *MainConfig) Validate() error {
	return validateStruct(c)
}

// CSVComma returns the CSV delimiter as a rune.
func (c *MainConfig) CSVComma() rune {
	for _, r := range c.CSVDelimiter {
		return r
	}
	return ';'
}
