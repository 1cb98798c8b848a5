// =============================================================================
// Invoice Normalizer - Validate Command
// =============================================================================
//
// This file defines the 'validate' command, which checks the configuration,
// the account store and optionally a batch manifest without reading any
// supplier file.
//
// COMMAND USAGE:
//   normalizer validate [--batch manifest.yaml]
//
// =============================================================================

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/invoice-normalizer/internal/builder"
	"github.com/ginjaninja78/invoice-normalizer/internal/config"
	"github.com/ginjaninja78/invoice-normalizer/internal/normalizer"
)

var validateBatch string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration, account store and batch manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, "Configuration: OK")
		fmt.Fprintf(out, "  output_dir:    %s\n", cfg.OutputDir)
		fmt.Fprintf(out, "  accounts_file: %s\n", cfg.AccountsFile)
		fmt.Fprintf(out, "  providers:     %s\n", strings.Join(normalizer.Providers(), ", "))

		store, err := config.LoadAccounts(cfg.AccountsFile)
		if err != nil {
			return err
		}
		if _, err := store.Lookup(normalizer.Keller, cfg.Keller.AccountLabel); err != nil {
			fmt.Fprintf(out, "Warning: keller files cannot be processed: %v\n", err)
		}
		fmt.Fprintf(out, "Account store: OK (%d providers)\n", len(store.Providers()))

		if validateBatch == "" {
			return nil
		}
		m, err := config.LoadManifest(validateBatch)
		if err != nil {
			return err
		}
		known := normalizer.Providers()
		for i, item := range m.Items {
			tag := strings.ToLower(strings.TrimSpace(item.Provider))
			if !contains(known, tag) {
				msg := fmt.Sprintf("item %d: %v %q", i+1, builder.ErrUnknownProvider, item.Provider)
				if s := builder.Suggest(tag, known); s != "" {
					msg += fmt.Sprintf(" (did you mean %q?)", s)
				}
				return fmt.Errorf("%s", msg)
			}
		}
		fmt.Fprintf(out, "Manifest:      OK (%d items)\n", len(m.Items))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&validateBatch, "batch", "", "YAML batch manifest to check")
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
