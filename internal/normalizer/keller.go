package normalizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/invoice-normalizer/internal/reader"
	"github.com/ginjaninja78/invoice-normalizer/internal/schema"
	"github.com/ginjaninja78/invoice-normalizer/internal/table"
)

// =============================================================================
// KELLER
// =============================================================================
//
// UTF-8 export (usually with a BOM) holding a single invoice. The header row
// names the columns; the invoice number is the file name ("A00180225101.csv")
// and no tax rate is exported, so a constant one is added.
//
// =============================================================================

const (
	kellerInvoice = "numero comprobante"
	kellerTax     = "IVA"

	// DefaultKellerTaxRate is written to the IVA column when Options does not
	// set one.
	DefaultKellerTaxRate = "0"
)

// kellerHeaders must all be present in the header row.
var kellerHeaders = []string{
	"Fecha", "CodBarra", "Producto", "Cantidad",
	"Precio Público", "Precio Unit.", "Importe", "Faltas",
}

// kellerSeparators are tried in order against the header row.
var kellerSeparators = []rune{',', '\t', ';'}

// kellerColumns: Fecha, CodBarra, Producto, Cantidad, Precio Unit., numero
// comprobante.
var kellerColumns = []int{0, 1, 2, 3, 5, 8}

var kellerFields = schema.Fields{
	Invoice:     kellerInvoice,
	Date:        "Fecha",
	Barcode:     "CodBarra",
	Description: "Producto",
	Quantity:    "Cantidad",
	TaxRate:     kellerTax,
	UnitPrice:   "Precio Unit.",
}

// KellerNormalizer normalizes keller exports.
type KellerNormalizer struct {
	log     *slog.Logger
	taxRate string
}

// NewKeller creates a keller normalizer.
func NewKeller(opts Options) *KellerNormalizer {
	rate := opts.KellerTaxRate
	if rate == "" {
		rate = DefaultKellerTaxRate
	}
	return &KellerNormalizer{log: opts.logger(Keller), taxRate: rate}
}

// Normalize runs the keller pipeline on one file.
func (n *KellerNormalizer) Normalize(ctx context.Context, in Input) (*table.Table, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	// =========================================================================
	// STEP 1: READ
	// =========================================================================

	raw, err := readKeller(in.Path)
	if err != nil {
		return nil, stageErr(StageRead, err)
	}
	if err := raw.RequireColumns(kellerHeaders...); err != nil {
		return nil, stageErr(StageRead, err)
	}
	if raw.IsEmpty() {
		return nil, stageErr(StageRead, ErrNoRows)
	}
	n.log.Debug("file read", "path", in.Path, "rows", raw.Len())

	// =========================================================================
	// STEP 2: INVOICE NUMBER FROM THE FILE NAME
	// =========================================================================

	ordered, err := projectByName(raw, kellerHeaders)
	if err != nil {
		return nil, stageErr(StageSelect, err)
	}
	invoice := formatLetterFirst(strings.TrimSuffix(filepath.Base(in.Path), filepath.Ext(in.Path)))
	withInvoice := table.AddConstantColumn(ordered, kellerInvoice, invoice)

	// =========================================================================
	// STEP 3: SELECT, ADD TAX RATE AND STANDARDIZE
	// =========================================================================

	selected, err := selectColumns(withInvoice, kellerColumns)
	if err != nil {
		return nil, err
	}
	withTax := table.AddConstantColumn(selected, kellerTax, n.taxRate)
	return finish(withTax, in, kellerFields)
}

// readKeller parses a keller export. The header decides the width: a leading
// empty header cell is dropped (and the matching blank leading data cell with
// it), trailing data columns must be entirely blank, and data narrower than
// the header is an error.
func readKeller(path string) (*table.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", reader.ErrUnreadable, err)
	}
	content, err := reader.Decode(data, reader.UTF8)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", reader.ErrUnreadable, err)
	}

	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	header := strings.TrimSpace(strings.TrimPrefix(lines[0], "\ufeff"))
	if header == "" {
		return nil, fmt.Errorf("%w: empty file", reader.ErrUnreadable)
	}
	sep, ok := reader.DetectDelimiter(header, kellerSeparators)
	if !ok {
		return nil, fmt.Errorf("%w: %w", reader.ErrUnreadable, reader.ErrNoDelimiter)
	}

	names := strings.Split(header, string(sep))
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
	}
	leadingBlank := names[0] == ""
	if leadingBlank {
		names = names[1:]
	}

	records, _ := reader.ParseRecords(strings.Join(lines[1:], "\n"), sep)
	width := 0
	for _, rec := range records {
		width = max(width, len(rec))
	}
	if leadingBlank && width == len(names)+1 && blankColumn(records, 0) {
		for i, rec := range records {
			records[i] = rec[1:]
		}
		width--
	}

	switch {
	case len(records) == 0:
	case width > len(names):
		for col := len(names); col < width; col++ {
			if !blankColumn(records, col) {
				return nil, fmt.Errorf("%w: %d header names, data column %d is not empty",
					ErrColumnMismatch, len(names), col)
			}
		}
	case width < len(names):
		return nil, fmt.Errorf("%w: %d data columns, %d header names",
			ErrColumnMismatch, width, len(names))
	}

	t := table.New(names...)
	for _, rec := range records {
		t.Append(rec...)
	}
	return t, nil
}

// projectByName reorders t to exactly the given columns.
func projectByName(t *table.Table, names []string) (*table.Table, error) {
	indices := make([]int, len(names))
	for i, name := range names {
		indices[i] = t.ColumnIndex(name)
		if indices[i] < 0 {
			return nil, errors.New("missing column " + name)
		}
	}
	return table.SelectColumns(t, indices...)
}

func blankColumn(records [][]string, col int) bool {
	for _, rec := range records {
		if col < len(rec) && strings.TrimSpace(rec[col]) != "" {
			return false
		}
	}
	return true
}
