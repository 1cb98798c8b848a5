package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/ginjaninja78/invoice-normalizer/internal/schema"
	"github.com/ginjaninja78/invoice-normalizer/internal/table"
	"github.com/ginjaninja78/invoice-normalizer/internal/types"
)

// =============================================================================
// CANONICAL CSV
// =============================================================================

// ToRecords converts a canonical table into records.
//
// RETURNS:
//   - One record per row.
//   - *table.MissingColumnsError if a canonical column is absent.
func ToRecords(t *table.Table) ([]types.Record, error) {
	if err := t.RequireColumns(schema.Columns()...); err != nil {
		return nil, err
	}

	idx := make(map[string]int, t.Width())
	for _, name := range schema.Columns() {
		idx[name] = t.ColumnIndex(name)
	}

	records := make([]types.Record, 0, t.Len())
	for _, row := range t.Rows {
		records = append(records, types.Record{
			Invoice:     row[idx[schema.Invoice]],
			Date:        row[idx[schema.Date]],
			Supplier:    row[idx[schema.Supplier]],
			Account:     row[idx[schema.Account]],
			Barcode:     row[idx[schema.Barcode]],
			Description: row[idx[schema.Description]],
			Quantity:    row[idx[schema.Quantity]],
			TaxRate:     row[idx[schema.TaxRate]],
			UnitPrice:   row[idx[schema.UnitPrice]],
		})
	}
	return records, nil
}

// WriteCSV writes the canonical table with a header row.
//
// PARAMETERS:
//   - t: The canonical table.
//   - w: The destination.
//   - delimiter: The field separator, e.g. ';'.
func WriteCSV(t *table.Table, w io.Writer, delimiter rune) error {
	records, err := ToRecords(t)
	if err != nil {
		return fmt.Errorf("failed to prepare csv: %w", err)
	}

	cw := csv.NewWriter(w)
	cw.Comma = delimiter
	if err := gocsv.MarshalCSV(&records, gocsv.NewSafeCSVWriter(cw)); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// WriteCSVFile writes the canonical table to path.
func WriteCSVFile(t *table.Table, path string, delimiter rune) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}

	if err := WriteCSV(t, file, delimiter); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
