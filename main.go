// =============================================================================
// Invoice Normalizer - Main Entry Point
// =============================================================================
//
// This is the main entry point for the invoice normalizer CLI. It initializes
// the Cobra CLI framework and delegates command execution to the cmd package.
//
// USAGE:
//   normalizer process    - Normalize supplier exports into one spreadsheet
//   normalizer validate   - Validate configuration and the account store
//   normalizer accounts   - List the configured accounts per provider
//   normalizer version    - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Pipeline (reader, normalizers, builder, export)
//   - pkg/           : Shared file utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/invoice-normalizer/cmd"
)

func main() {
	cmd.Execute()
}
