package normalizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/invoice-normalizer/internal/reader"
	"github.com/ginjaninja78/invoice-normalizer/internal/schema"
	"github.com/ginjaninja78/invoice-normalizer/internal/table"
)

// =============================================================================
// COFARSUR
// =============================================================================
//
// UTF-8 export without a header, 17 positional fields per row. The first field
// is the record type: C rows open an invoice and carry its date (YYYYMMDD in
// field 15), D rows are the invoice lines. Prices are stored in hundredths and
// a tax indicator of 1 means the price includes 21% IVA.
//
// =============================================================================

const (
	cofarsurWidth     = 17
	cofarsurTypeIdx   = 0
	cofarsurNumberIdx = 3
	cofarsurTaxIdx    = 11
	cofarsurPriceIdx  = 13
	cofarsurDateIdx   = 14
	cofarsurDetail    = "D"
	cofarsurHeader    = "C"
)

// cofarsurHeaders name the 17 raw fields plus the propagated date.
var cofarsurHeaders = []string{
	"registro", "nro cuenta", "col2", "nro fc", "col4", "col5", "cod barra",
	"desc", "col8", "col9", "col10", "iva", "cantidad", "costo", "pvp", "total",
	"col17", "fecha",
}

// cofarsurColumns: nro fc, cod barra, desc, iva, cantidad, costo, fecha.
var cofarsurColumns = []int{3, 6, 7, 11, 12, 13, 17}

var cofarsurFields = schema.Fields{
	Invoice:     "nro fc",
	Date:        "fecha",
	Barcode:     "cod barra",
	Description: "desc",
	Quantity:    "cantidad",
	TaxRate:     "iva",
	UnitPrice:   "costo",
}

var (
	cofarsurTaxIncluded = decimal.NewFromInt(1)
	cofarsurTaxFactor   = decimal.RequireFromString("1.21")
	cofarsurHundred     = decimal.NewFromInt(100)
)

// CofarsurNormalizer normalizes cofarsur exports.
type CofarsurNormalizer struct {
	log *slog.Logger
}

// NewCofarsur creates a cofarsur normalizer.
func NewCofarsur(opts Options) *CofarsurNormalizer {
	return &CofarsurNormalizer{log: opts.logger(Cofarsur)}
}

// Normalize runs the cofarsur pipeline on one file.
func (n *CofarsurNormalizer) Normalize(ctx context.Context, in Input) (*table.Table, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	// =========================================================================
	// STEP 1: READ
	// =========================================================================

	res, err := reader.Read(in.Path, reader.Options{
		Encoding:        reader.UTF8,
		ExpectedColumns: cofarsurWidth,
	})
	if err != nil {
		return nil, stageErr(StageRead, err)
	}
	if res.PaddedFields > 0 {
		n.log.Info("first row padded", "path", in.Path, "added", res.PaddedFields, "width", cofarsurWidth)
	}
	if res.Table.IsEmpty() {
		return nil, stageErr(StageRead, ErrNoRows)
	}

	// =========================================================================
	// STEP 2: DETAIL ROW REWRITES
	// =========================================================================

	rewritten, err := cofarsurRewriteDetails(res.Table)
	if err != nil {
		return nil, stageErr(StageTax, err)
	}

	// =========================================================================
	// STEP 3: PROPAGATE DATES AND KEEP DETAIL ROWS
	// =========================================================================

	dated := table.AddColumn(rewritten, "fecha", cofarsurPropagateDates(rewritten))

	details, err := table.KeepRowsAt(dated, cofarsurTypeIdx, cofarsurDetail)
	if err != nil {
		return nil, stageErr(StageFilter, err)
	}
	if details.IsEmpty() {
		return nil, stageErr(StageFilter, ErrNoRows)
	}

	// =========================================================================
	// STEP 4: NAME, SELECT AND STANDARDIZE
	// =========================================================================

	if details.Width() != len(cofarsurHeaders) {
		return nil, stageErr(StageHeaders, fmt.Errorf("%w: %d columns, %d names",
			ErrColumnMismatch, details.Width(), len(cofarsurHeaders)))
	}
	named := table.New(cofarsurHeaders...)
	named.Rows = details.Rows

	selected, err := selectColumns(named, cofarsurColumns)
	if err != nil {
		return nil, err
	}
	return finish(selected, in, cofarsurFields)
}

// cofarsurRewriteDetails formats the invoice number and adjusts tax and price
// on D rows. Other rows are copied unchanged.
func cofarsurRewriteDetails(t *table.Table) (*table.Table, error) {
	out := t.Clone()
	for i, row := range out.Rows {
		if strings.TrimSpace(row[cofarsurTypeIdx]) != cofarsurDetail {
			continue
		}
		row[cofarsurNumberIdx] = formatLetterFifth(row[cofarsurNumberIdx])

		tax, price, err := cofarsurAdjust(row[cofarsurTaxIdx], row[cofarsurPriceIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		row[cofarsurTaxIdx] = tax
		row[cofarsurPriceIdx] = price
	}
	return out, nil
}

// cofarsurAdjust applies the detail-row tax rule. A tax indicator of 1 becomes
// 21 and the price loses its 21% IVA (rounded to 2 places); the price is then
// divided by 100 in every case. A blank price stays blank.
func cofarsurAdjust(rawTax, rawPrice string) (string, string, error) {
	tax := strings.TrimSpace(rawTax)
	if strings.TrimSpace(rawPrice) == "" {
		return tax, "", nil
	}
	price, err := schema.ParseDecimal(rawPrice)
	if err != nil {
		return "", "", fmt.Errorf("price: %w", err)
	}

	if indicator, err := schema.ParseDecimal(tax); err == nil && indicator.Equal(cofarsurTaxIncluded) {
		tax = "21"
		price = price.DivRound(cofarsurTaxFactor, 2)
	}
	price = price.Div(cofarsurHundred)
	return tax, schema.FormatDecimal(price, 4), nil
}

// cofarsurPropagateDates returns, for every row, the date of the most recent
// C row at or above it. C rows get their own date; D rows inherit the last
// non-blank one; every other row stays blank.
func cofarsurPropagateDates(t *table.Table) []string {
	dates := make([]string, t.Len())
	last := ""
	for i, row := range t.Rows {
		switch strings.TrimSpace(row[cofarsurTypeIdx]) {
		case cofarsurHeader:
			last = cofarsurDate(row[cofarsurDateIdx])
			dates[i] = last
		case cofarsurDetail:
			dates[i] = last
		}
	}
	return dates
}

// cofarsurDate converts "20250207" (or "20250207.0") to "07/02/2025".
// Anything that is not a valid calendar date becomes blank.
func cofarsurDate(value string) string {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return ""
	}
	s := fmt.Sprintf("%08d", d.IntPart())
	if len(s) != 8 {
		return ""
	}
	t, err := time.Parse("20060102", s)
	if err != nil {
		return ""
	}
	return t.Format(schema.DateLayout)
}
