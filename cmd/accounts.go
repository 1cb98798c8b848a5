// =============================================================================
// Invoice Normalizer - Accounts Command
// =============================================================================
//
// This file defines the 'accounts' command, which lists the account store so
// the right label can be passed to 'process --account'.
//
// COMMAND USAGE:
//   normalizer accounts [provider]
//
// =============================================================================

package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/invoice-normalizer/internal/config"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts [provider]",
	Short: "List the accounts of each provider",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := config.LoadAccounts(cfg.AccountsFile)
		if err != nil {
			return err
		}

		providers := store.Providers()
		if len(args) == 1 {
			providers = []string{args[0]}
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PROVIDER\tLABEL\tACCOUNT")
		for _, p := range providers {
			accounts := store.Accounts(p)
			if len(accounts) == 0 {
				fmt.Fprintf(w, "%s\t-\t-\n", p)
				continue
			}
			for _, a := range accounts {
				fmt.Fprintf(w, "%s\t%s\t%s\n", p, a.Label, a.ID)
			}
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(accountsCmd)
}
