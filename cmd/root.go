// =============================================================================
// Invoice Normalizer - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every subcommand
// shares the configuration and logger prepared here.
//
// COBRA CLI STRUCTURE:
//   rootCmd (normalizer)
//   ├── processCmd  (normalizer process)
//   ├── validateCmd (normalizer validate)
//   ├── accountsCmd (normalizer accounts)
//   └── versionCmd  (normalizer version)
//
// =============================================================================

package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/invoice-normalizer/internal/config"
	"github.com/ginjaninja78/invoice-normalizer/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file. Empty means
// config.yaml in the working directory when present.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// logFormat overrides the configured log format when set.
var logFormat string

// cfg and logger are prepared before any subcommand runs.
var (
	cfg      *config.MainConfig
	logger   *slog.Logger
	closeLog = func() error { return nil }
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "normalizer",
	Short: "Invoice Normalizer - merge supplier invoice exports into one spreadsheet",
	Long: `Invoice Normalizer reads the invoice line-item exports of the supported
pharmaceutical wholesalers (monroe, suizo, cofarsur, keller), maps each one
onto a common set of columns and writes the result as a single spreadsheet.

Example Usage:
  normalizer process --provider monroe --account "sucursal centro" feb.csv
  normalizer process --provider keller --folder ./keller/febrero
  normalizer process --batch febrero.yaml --csv
  normalizer accounts
  normalizer validate`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded

		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		format := cfg.LogFormat
		if logFormat != "" {
			format = logFormat
		}

		l, closeFn, err := logging.Setup(level, format, cfg.LogFile)
		if err != nil {
			return err
		}
		logger, closeLog = l, closeFn
		return nil
	},

	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the CLI. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"Path to the main configuration file (default is config.yaml if present)",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)

	rootCmd.PersistentFlags().StringVar(
		&logFormat,
		"log-format",
		"",
		"Log format: text or json (overrides log_format)",
	)
}
