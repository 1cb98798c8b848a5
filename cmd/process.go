// =============================================================================
// Invoice Normalizer - Process Command
// =============================================================================
//
// This file defines the 'process' command, which runs one batch through the
// normalization pipeline and writes the merged spreadsheet.
//
// COMMAND USAGE:
//   normalizer process [files...] [flags]
//
// FLAGS:
//   --provider     : Provider of the files and folders given on the command line
//   --account      : Account label (from the account store) or literal id
//   --folder       : Queue every matching file of a folder (repeatable)
//   --batch        : YAML manifest listing the batch items
//   --output       : Output spreadsheet path (overrides output_dir/name format)
//   --csv          : Also write the merged table as CSV
//   --dry-run      : Normalize and merge without writing any file
//   --verify       : Re-read the spreadsheet after writing it
//   --strict       : Fail when the merged row count does not add up
//   --timeout      : Abort the batch after this long
//   --metrics-file : Write Prometheus text metrics to this file
//   --summary      : Write a text run summary next to the output
//
// PROCESSING PIPELINE:
//   1. Build the batch from files, folders and/or a manifest
//   2. Load the account store
//   3. Run the batch in the background (normalize, merge, export)
//   4. Print progress and the final summary
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/invoice-normalizer/internal/builder"
	"github.com/ginjaninja78/invoice-normalizer/internal/config"
	"github.com/ginjaninja78/invoice-normalizer/internal/metrics"
	"github.com/ginjaninja78/invoice-normalizer/internal/normalizer"
	"github.com/ginjaninja78/invoice-normalizer/internal/runner"
	"github.com/ginjaninja78/invoice-normalizer/internal/types"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	provider    string
	account     string
	folders     []string
	batchFile   string
	outputFile  string
	writeCSV    bool
	dryRun      bool
	verify      bool
	strict      bool
	timeout     time.Duration
	metricsFile string
	summary     bool
)

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process [files...]",
	Short: "Normalize supplier exports and write the merged spreadsheet",
	Long: `The process command normalizes every file of the batch, in order, and
writes one spreadsheet with the canonical columns.

The batch is built from, in this order:
  - the items of the --batch manifest
  - every file matching folder_patterns in each --folder
  - the files given as arguments

Files and folders given on the command line all use --provider and
--account. keller files take their account from the account store, so
--account may be omitted for them.

The first file that fails stops the whole batch and nothing is written.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd.Context(), cmd.OutOrStdout(), args)
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	f := processCmd.Flags()
	f.StringVarP(&provider, "provider", "p", "", "Provider of the files and folders on the command line")
	f.StringVarP(&account, "account", "a", "", "Account label or literal account id")
	f.StringSliceVar(&folders, "folder", nil, "Folder whose matching files are queued (repeatable)")
	f.StringVar(&batchFile, "batch", "", "YAML batch manifest")
	f.StringVarP(&outputFile, "output", "o", "", "Output spreadsheet path")
	f.BoolVar(&writeCSV, "csv", false, "Also write the merged table as CSV")
	f.BoolVar(&dryRun, "dry-run", false, "Normalize and merge without writing files")
	f.BoolVar(&verify, "verify", false, "Re-read the spreadsheet after writing it")
	f.BoolVar(&strict, "strict", false, "Fail on a merged row-count mismatch")
	f.DurationVar(&timeout, "timeout", 0, "Abort the batch after this duration (0 = config value)")
	f.StringVar(&metricsFile, "metrics-file", "", "Write Prometheus text metrics to this file")
	f.BoolVar(&summary, "summary", false, "Write a text run summary next to the output")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runProcess(ctx context.Context, out io.Writer, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// =========================================================================
	// STEP 1: BUILD THE BATCH
	// =========================================================================

	batch, manifestOutput, err := buildBatch(args)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Queued %d file(s)\n", batch.Len())

	// =========================================================================
	// STEP 2: ACCOUNTS, NORMALIZERS, METRICS
	// =========================================================================

	accounts, err := loadAccountStore(cfg.AccountsFile)
	if err != nil {
		return err
	}

	recorder := metrics.New()
	b := builder.New(builder.Options{
		Normalizers: normalizer.Registry(normalizer.Options{
			Logger:        logger,
			KellerTaxRate: cfg.Keller.TaxRate,
		}),
		Accounts:           accounts,
		KellerAccountLabel: cfg.Keller.AccountLabel,
		Logger:             logger,
		Metrics:            recorder,
	})

	// =========================================================================
	// STEP 3: RUN IN THE BACKGROUND
	// =========================================================================

	job := runner.Job{
		Items:          batch.Items(),
		Builder:        b,
		OutputDir:      cfg.OutputDir,
		OutputName:     cfg.OutputNameFormat,
		SheetName:      cfg.SheetName,
		WriteCSV:       writeCSV || cfg.WriteCSV,
		CSVDelimiter:   cfg.CSVComma(),
		Verify:         verify,
		StrictRowCount: strict || cfg.StrictRowCount,
		DryRun:         dryRun,
		WriteSummary:   summary || cfg.WriteSummary,
		Timeout:        cfg.Timeout,
		Logger:         logger,
		Metrics:        recorder,
	}
	if timeout > 0 {
		job.Timeout = timeout
	}
	target := outputFile
	if target == "" {
		target = manifestOutput
	}
	if target != "" {
		job.OutputDir, job.OutputName = filepath.Dir(target), filepath.Base(target)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	task := runner.Start(ctx, job)
	for ev := range task.Events() {
		fmt.Fprintf(out, "  %s\n", ev.Message)
	}
	result, runErr := task.Wait()

	// =========================================================================
	// STEP 4: REPORT
	// =========================================================================

	printSummary(out, result)

	path := metricsFile
	if path == "" {
		path = cfg.MetricsFile
	}
	if err := recorder.WriteTextfile(path); err != nil {
		logger.Warn("metrics not written", "error", err)
	}

	return runErr
}

// buildBatch collects the batch items from the manifest, folders and args.
func buildBatch(args []string) (*builder.Batch, string, error) {
	batch := &builder.Batch{}
	var manifestOutput string

	if batchFile != "" {
		m, err := config.LoadManifest(batchFile)
		if err != nil {
			return nil, "", err
		}
		manifestOutput = m.Output
		for _, item := range m.Items {
			if item.Folder != "" {
				if _, err := batch.AddFolder(item.Folder, item.Provider, item.Account, cfg.FolderPatterns); err != nil {
					return nil, "", err
				}
				continue
			}
			if err := batch.Add(builder.Item{Path: item.Path, Provider: item.Provider, Account: item.Account}); err != nil {
				return nil, "", err
			}
		}
	}

	if (len(folders) > 0 || len(args) > 0) && provider == "" {
		return nil, "", errors.New("--provider is required for files and folders given on the command line")
	}
	for _, dir := range folders {
		if _, err := batch.AddFolder(dir, provider, account, cfg.FolderPatterns); err != nil {
			return nil, "", err
		}
	}
	for _, path := range args {
		if err := batch.Add(builder.Item{Path: path, Provider: provider, Account: account}); err != nil {
			return nil, "", err
		}
	}

	if batch.Len() == 0 {
		return nil, "", errors.New("nothing to process: give files, --folder or --batch")
	}
	return batch, manifestOutput, nil
}

// loadAccountStore loads the account store. A missing file yields an empty
// store; keller items then fail with a clear account error.
func loadAccountStore(path string) (*config.AccountStore, error) {
	store, err := config.LoadAccounts(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("no account store", "path", path)
		return config.NewAccountStore(nil), nil
	}
	return store, err
}

func printSummary(out io.Writer, s *types.RunSummary) {
	if s == nil {
		return
	}
	failed := 0
	for _, item := range s.Items {
		if item.Err != nil {
			failed++
		}
	}

	fmt.Fprintln(out, "\n=== Processing Complete ===")
	fmt.Fprintf(out, "Run ID:          %s\n", s.RunID)
	fmt.Fprintf(out, "Files:           %d\n", len(s.Items))
	fmt.Fprintf(out, "Failed:          %d\n", failed)
	fmt.Fprintf(out, "Rows:            %d\n", s.TotalRows)
	if s.OutputFile != "" {
		fmt.Fprintf(out, "Output:          %s\n", s.OutputFile)
	}
	if s.CSVFile != "" {
		fmt.Fprintf(out, "CSV:             %s\n", s.CSVFile)
	}
	for _, w := range s.Warnings {
		fmt.Fprintf(out, "Warning:         %s\n", w)
	}
	fmt.Fprintf(out, "Time elapsed:    %s\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
}
