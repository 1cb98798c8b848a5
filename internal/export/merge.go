// =============================================================================
// Invoice Normalizer - Aggregation and Export
// =============================================================================
//
// This package concatenates the canonical tables of a batch and serializes
// the result:
//   - Merge: concatenation in item order plus the row-count check
//   - WriteXLSX: the styled output spreadsheet
//   - WriteCSV: an optional canonical CSV copy
//
// =============================================================================

package export

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ginjaninja78/invoice-normalizer/internal/logging"
	"github.com/ginjaninja78/invoice-normalizer/internal/table"
)

// =============================================================================
// ROW COUNT CHECK
// =============================================================================

// RowCountError is returned when a merged table does not hold every input row.
type RowCountError struct {
	Expected int
	Actual   int
}

func (e *RowCountError) Error() string {
	return fmt.Sprintf("merged table has %d rows, inputs have %d", e.Actual, e.Expected)
}

// CheckConservation verifies that merged has exactly as many rows as tables
// combined.
func CheckConservation(tables []*table.Table, merged *table.Table) error {
	expected := 0
	for _, t := range tables {
		expected += t.Len()
	}
	if merged.Len() != expected {
		return &RowCountError{Expected: expected, Actual: merged.Len()}
	}
	return nil
}

// =============================================================================
// MERGE
// =============================================================================

// MergeOptions configures Merge.
type MergeOptions struct {
	// Strict turns a row-count mismatch into an error.
	// Default: false (mismatch is logged as a warning and the merge proceeds).
	Strict bool

	// Logger receives the mismatch warning. Default: discard.
	Logger *slog.Logger
}

// Merged is the aggregated result of a batch.
type Merged struct {
	Table *table.Table

	// Mismatch is set when the row-count check failed and Strict is off.
	Mismatch *RowCountError
}

// concat is replaced in tests to simulate a lossy concatenation.
var concat = table.Concat

// Merge concatenates tables in order, keeping each table's row order.
//
// RETURNS:
//   - The merged table.
//   - An error if the tables have different columns, or a *RowCountError
//     when rows were lost and Strict is set.
func Merge(tables []*table.Table, opts MergeOptions) (*Merged, error) {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}

	merged, err := concat(tables...)
	if err != nil {
		return nil, fmt.Errorf("failed to merge tables: %w", err)
	}

	result := &Merged{Table: merged}
	if err := CheckConservation(tables, merged); err != nil {
		var mismatch *RowCountError
		if opts.Strict || !errors.As(err, &mismatch) {
			return nil, err
		}
		result.Mismatch = mismatch
		log.Warn("row count mismatch after merge",
			"expected", result.Mismatch.Expected, "actual", result.Mismatch.Actual)
	}

	log.Debug("tables merged", "tables", len(tables), "rows", merged.Len())
	return result, nil
}
