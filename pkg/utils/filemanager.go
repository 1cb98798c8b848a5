// =============================================================================
// Invoice Normalizer - File Manager Utility
// =============================================================================
//
// This module provides the file utilities used around a batch run:
//   - Folder scanning for supplier exports
//   - Output directory creation
//   - Output file naming
//   - Run summary generation
//
// Input files are never moved or modified; a run only writes into the output
// directory.
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ginjaninja78/invoice-normalizer/internal/types"
)

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverFiles lists the regular files in dir whose names match any of the
// glob patterns. Matching ignores case, so "*.csv" also finds "FACTURA.CSV".
//
// PARAMETERS:
//   - dir: The folder to scan (not recursive).
//   - patterns: Glob patterns such as "*.csv". Empty means "*.csv".
//
// RETURNS:
//   - The matching paths, sorted by name.
//   - An error if the folder cannot be read or a pattern is malformed.
func DiscoverFiles(dir string, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = []string{"*.csv"}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan folder %s: %w", dir, err)
	}

	var result []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := strings.ToLower(entry.Name())
		for _, pattern := range patterns {
			ok, err := filepath.Match(strings.ToLower(pattern), name)
			if err != nil {
				return nil, fmt.Errorf("bad folder pattern %q: %w", pattern, err)
			}
			if ok {
				result = append(result, filepath.Join(dir, entry.Name()))
				break
			}
		}
	}

	sort.Strings(result)
	return result, nil
}

// IsRegularFile reports whether path exists and is a regular file.
func IsRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// EnsureDir creates dir (and its parents) if it does not exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName generates the output spreadsheet name.
//
// PARAMETERS:
//   - format: The format string for the file name.
//     Placeholders:
//     {uuid}      - A random UUID
//     {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//     {date}      - Current date (YYYYMMDD)
//     {time}      - Current time (HHMMSS)
//     any {key} present in params
//   - params: Extra placeholder values, e.g. {"providers": "monroe-suizo"}.
//
// RETURNS:
//   - The generated file name, always ending in .xlsx.
//
// EXAMPLE:
//
//	format: "normalizado_{providers}_{timestamp}.xlsx"
//	params: {"providers": "keller-monroe"}
//	output: "normalizado_keller-monroe_20250207_143022.xlsx"
func GenerateOutputFileName(format string, params map[string]string) string {
	return generateName(format, params, time.Now())
}

func generateName(format string, params map[string]string, now time.Time) string {
	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
		"{time}":      now.Format("150405"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if !strings.HasSuffix(strings.ToLower(result), ".xlsx") {
		result += ".xlsx"
	}
	return result
}

// SiblingPath returns path with its extension replaced by ext.
func SiblingPath(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// =============================================================================
// RUN SUMMARY
// =============================================================================

// WriteSummaryLog writes a plain-text summary of a batch run.
//
// PARAMETERS:
//   - summary: The finished run.
//   - outputDir: The directory to write the summary file.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary *types.RunSummary, outputDir string) (string, error) {
	name := fmt.Sprintf("resumen_%s.txt", summary.StartedAt.Format("20060102_150405"))
	summaryPath := filepath.Join(outputDir, name)

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	writeSummary(w, summary)

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}
	return summaryPath, nil
}

func writeSummary(w *bufio.Writer, s *types.RunSummary) {
	const rule = "================================================================================\n"

	failed := 0
	for _, item := range s.Items {
		if item.Err != nil {
			failed++
		}
	}

	fmt.Fprintf(w, "Invoice Normalizer - Run Summary\n%s\n", rule)
	fmt.Fprintf(w, "Run Information:\n")
	fmt.Fprintf(w, "  Run ID:         %s\n", s.RunID)
	fmt.Fprintf(w, "  Start Time:     %s\n", s.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  End Time:       %s\n", s.FinishedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  Duration:       %s\n\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))

	fmt.Fprintf(w, "Statistics:\n")
	fmt.Fprintf(w, "  Total Files:    %d\n", len(s.Items))
	fmt.Fprintf(w, "  Successful:     %d\n", len(s.Items)-failed)
	fmt.Fprintf(w, "  Failed:         %d\n", failed)
	fmt.Fprintf(w, "  Total Rows:     %d\n", s.TotalRows)
	if s.OutputFile != "" {
		fmt.Fprintf(w, "  Output:         %s\n", s.OutputFile)
	}
	if s.CSVFile != "" {
		fmt.Fprintf(w, "  CSV Output:     %s\n", s.CSVFile)
	}
	fmt.Fprintln(w)

	if len(s.Items) > 0 {
		fmt.Fprintf(w, "Files:\n%s", strings.Repeat("-", 80)+"\n")
		for _, item := range s.Items {
			fmt.Fprintf(w, "  [%d] %s (%s)\n", item.Index+1, item.Path, item.Provider)
			if item.Err != nil {
				fmt.Fprintf(w, "      Error: %v\n\n", item.Err)
				continue
			}
			fmt.Fprintf(w, "      Rows: %d  Time: %s\n\n", item.Rows, item.Duration.Round(time.Millisecond))
		}
	}

	if len(s.Warnings) > 0 {
		fmt.Fprintf(w, "Warnings:\n%s", strings.Repeat("-", 80)+"\n")
		for _, warning := range s.Warnings {
			fmt.Fprintf(w, "  - %s\n", warning)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "%sEnd of Summary\n", rule)
}
