package normalizer

import (
	"context"
	"log/slog"

	"github.com/ginjaninja78/invoice-normalizer/internal/reader"
	"github.com/ginjaninja78/invoice-normalizer/internal/schema"
	"github.com/ginjaninja78/invoice-normalizer/internal/table"
)

// =============================================================================
// MONROE
// =============================================================================
//
// Latin-1 export with a header row. Each invoice is a "Cabecera" row that
// carries the date, followed by detail rows sharing its NUMERO FORMATEADO.
//
// =============================================================================

const (
	monroeType    = "TIPO LINEA"
	monroeHeader  = "Cabecera"
	monroeLetter  = "LETRA"
	monroeNumber  = "NUMERO FORMATEADO"
	monroeDate    = "FECHA"
	monroeInvoice = "NUMERO FACTURA"
)

// monroeColumns are the positions kept after header rows are dropped.
var monroeColumns = []int{1, 2, 3, 4, 12, 13, 19, 24, 25}

var monroeFields = schema.Fields{
	Invoice:     monroeInvoice,
	Date:        monroeDate,
	Barcode:     "CODIGO BARRA",
	Description: "DESCRIPCION",
	Quantity:    "UNIDADES",
	TaxRate:     "PORC IVA",
	UnitPrice:   "PCIO UNITARIO",
}

// MonroeNormalizer normalizes monroe exports.
type MonroeNormalizer struct {
	log *slog.Logger
}

// NewMonroe creates a monroe normalizer.
func NewMonroe(opts Options) *MonroeNormalizer {
	return &MonroeNormalizer{log: opts.logger(Monroe)}
}

// Normalize runs the monroe pipeline on one file.
func (n *MonroeNormalizer) Normalize(ctx context.Context, in Input) (*table.Table, error) {
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
	// STEP 2: PROPAGATE HEADER DATES, THEN DROP HEADER ROWS
	// =========================================================================

	filled, _, err := fillGroupDates(res.Table, groupDates{
		TypeColumn:  monroeType,
		HeaderType:  monroeHeader,
		GroupColumn: monroeNumber,
		DateColumn:  monroeDate,
	}, n.log)
	if err != nil {
		return nil, stageErr(StageFillDates, err)
	}

	details, err := table.ExcludeRows(filled, monroeType, monroeHeader)
	if err != nil {
		return nil, stageErr(StageFilter, err)
	}

	// =========================================================================
	// STEP 3: SELECT AND BUILD THE INVOICE NUMBER
	// =========================================================================

	selected, err := selectColumns(details, monroeColumns)
	if err != nil {
		return nil, err
	}
	if err := selected.RequireColumns(monroeLetter, monroeNumber); err != nil {
		return nil, stageErr(StageInvoice, err)
	}

	letterIdx := selected.ColumnIndex(monroeLetter)
	numberIdx := selected.ColumnIndex(monroeNumber)
	invoices := make([]string, selected.Len())
	for i, row := range selected.Rows {
		invoices[i] = combineInvoice(row[letterIdx], row[numberIdx])
	}
	withInvoice := table.AddColumn(selected, monroeInvoice, invoices)

	// =========================================================================
	// STEP 4: FIXED COLUMNS AND STANDARDIZE
	// =========================================================================

	return finish(withInvoice, in, monroeFields)
}
