package normalizer

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ginjaninja78/invoice-normalizer/internal/reader"
	"github.com/ginjaninja78/invoice-normalizer/internal/schema"
	"github.com/ginjaninja78/invoice-normalizer/internal/table"
)

// =============================================================================
// SUIZO
// =============================================================================
//
// Latin-1 export with a header row. "Tipo de Registro" is C (invoice header),
// I (tax summary) or D (detail). Invoice codes look like "A000100001234" and
// dates are compact numbers without a leading zero ("4022025").
//
// =============================================================================

const (
	suizoType       = "Tipo de Registro"
	suizoRawInvoice = "Número de Comprobante"
	suizoRawDate    = "Fecha comprobante"
	suizoInvoice    = "num compr"
	suizoDate       = "Fecha"
)

// suizoColumns are the positions kept after C and I rows are dropped.
var suizoColumns = []int{2, 4, 26, 28, 29, 30, 31}

var suizoFields = schema.Fields{
	Invoice:     suizoInvoice,
	Date:        suizoDate,
	Barcode:     "CodBarra",
	Description: "Descripción del Producto",
	Quantity:    "Cantidad de Unidades",
	TaxRate:     "Alicuota de IVA %",
	UnitPrice:   "Precio Unitario",
}

// SuizoNormalizer normalizes suizo exports.
type SuizoNormalizer struct {
	log *slog.Logger
}

// NewSuizo creates a suizo normalizer.
func NewSuizo(opts Options) *SuizoNormalizer {
	return &SuizoNormalizer{log: opts.logger(Suizo)}
}

// Normalize runs the suizo pipeline on one file.
func (n *SuizoNormalizer) Normalize(ctx context.Context, in Input) (*table.Table, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	// =========================================================================
	// STEP 1: READ
	// =========================================================================

	res, err := reader.Read(in.Path, reader.Options{Encoding: reader.Latin1, Header: true})
	if err != nil {
		return nil, stageErr(StageRead, err)
	}
	n.log.Debug("file read", "path", in.Path, "rows", res.Table.Len(), "skipped", res.SkippedRows)

	// =========================================================================
	// STEP 2: DATES
	// =========================================================================
	// Compact dates are expanded first so detail rows without a date can
	// inherit the one on the C row of the same invoice.

	if err := res.Table.RequireColumns(suizoRawDate); err != nil {
		return nil, stageErr(StageDate, err)
	}
	dated := expandColumn(res.Table, suizoRawDate, suizoCompactDate)

	filled, _, err := fillGroupDates(dated, groupDates{
		TypeColumn:  suizoType,
		HeaderType:  "C",
		GroupColumn: suizoRawInvoice,
		DateColumn:  suizoRawDate,
	}, n.log)
	if err != nil {
		return nil, stageErr(StageFillDates, err)
	}

	// =========================================================================
	// STEP 3: KEEP DETAIL ROWS AND SELECT
	// =========================================================================

	details, err := table.ExcludeRows(filled, suizoType, "C", "I")
	if err != nil {
		return nil, stageErr(StageFilter, err)
	}
	selected, err := selectColumns(details, suizoColumns)
	if err != nil {
		return nil, err
	}

	// =========================================================================
	// STEP 4: FORMAT INVOICE AND DATE COLUMNS
	// =========================================================================

	if err := selected.RequireColumns(suizoRawInvoice, suizoRawDate); err != nil {
		return nil, stageErr(StageInvoice, err)
	}
	invoices, _ := selected.Column(suizoRawInvoice)
	dates, _ := selected.Column(suizoRawDate)
	for i := range invoices {
		invoices[i] = formatLetterFirst(invoices[i])
	}
	formatted := table.AddColumn(table.AddColumn(selected, suizoInvoice, invoices), suizoDate, dates)

	return finish(formatted, in, suizoFields)
}

// suizoCompactDate expands "4022025" (dmmyyyy) and "04022025" (ddmmyyyy) to
// "04/02/2025". Any other value is returned trimmed.
func suizoCompactDate(value string) string {
	v := strings.TrimSpace(value)
	if !isDigits(v) {
		return v
	}
	switch len(v) {
	case 7:
		return "0" + v[:1] + "/" + v[1:3] + "/" + v[3:]
	case 8:
		return v[:2] + "/" + v[2:4] + "/" + v[4:]
	}
	return v
}

// expandColumn returns a copy of t with fn applied to every cell of column.
// The column must exist.
func expandColumn(t *table.Table, column string, fn func(string) string) *table.Table {
	out := t.Clone()
	idx := out.ColumnIndex(column)
	for _, row := range out.Rows {
		row[idx] = fn(row[idx])
	}
	return out
}
