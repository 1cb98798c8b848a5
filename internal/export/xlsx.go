package export

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/invoice-normalizer/internal/schema"
	"github.com/ginjaninja78/invoice-normalizer/internal/table"
)

// =============================================================================
// SPREADSHEET OUTPUT
// =============================================================================
//
// LAYOUT:
//   - One sheet, header row first, canonical columns in order.
//   - Header: light blue fill, bold, centered.
//   - Data: every other row (starting with the first) filled, thin vertical
//     borders on every cell.
//   - Codigo de Barras is written as a string cell with the text number
//     format so long codes never turn into scientific notation.
//   - Precio Unitario is written as a number with two decimals.
//   - Column width is the longest value plus two.
//
// =============================================================================

// DefaultSheetName is the output sheet label.
const DefaultSheetName = "Datos Normalizados"

// Style colors and number formats.
const (
	headerFill = "D9EAF7"
	stripeFill = "F2F8FC"
	borderRGB  = "000000"

	numFmtText     = 49 // "@"
	numFmtDecimal2 = 2  // "0.00"
)

// XLSXOptions configures WriteXLSX.
type XLSXOptions struct {
	// SheetName is the sheet label. Default: "Datos Normalizados".
	SheetName string
}

// cellKind selects how a column's cells are written and styled.
type cellKind int

const (
	kindGeneral cellKind = iota
	kindText
	kindPrice
)

func columnKind(name string) cellKind {
	switch name {
	case schema.Barcode:
		return kindText
	case schema.UnitPrice:
		return kindPrice
	default:
		return kindGeneral
	}
}

// WriteXLSX writes t to a new spreadsheet at path.
//
// PARAMETERS:
//   - t: The merged canonical table.
//   - path: The output file; an existing file is replaced.
//   - opts: Sheet options.
//
// RETURNS:
//   - An error if styling or saving fails.
func WriteXLSX(t *table.Table, path string, opts XLSXOptions) error {
	sheet := opts.SheetName
	if sheet == "" {
		sheet = DefaultSheetName
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	styles, err := newStyleSet(f)
	if err != nil {
		return err
	}

	// =========================================================================
	// STEP 1: HEADER ROW
	// =========================================================================

	widths := make([]int, t.Width())
	for col, name := range t.Columns {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellStr(sheet, cell, name); err != nil {
			return fmt.Errorf("failed to write header %q: %w", name, err)
		}
		widths[col] = utf8.RuneCountInString(name)
	}
	if t.Width() > 0 {
		last, _ := excelize.CoordinatesToCellName(t.Width(), 1)
		if err := f.SetCellStyle(sheet, "A1", last, styles.header); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
	}

	// =========================================================================
	// STEP 2: DATA ROWS
	// =========================================================================

	kinds := make([]cellKind, t.Width())
	for col, name := range t.Columns {
		kinds[col] = columnKind(name)
	}

	for i, row := range t.Rows {
		rowNum := i + 2
		striped := i%2 == 0
		for col, value := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowNum)
			if err := writeCell(f, sheet, cell, value, kinds[col]); err != nil {
				return fmt.Errorf("failed to write %s: %w", cell, err)
			}
			if err := f.SetCellStyle(sheet, cell, cell, styles.body(kinds[col], striped)); err != nil {
				return fmt.Errorf("failed to style %s: %w", cell, err)
			}
			if n := utf8.RuneCountInString(value); n > widths[col] {
				widths[col] = n
			}
		}
	}

	// =========================================================================
	// STEP 3: COLUMN WIDTHS AND SAVE
	// =========================================================================

	for col, w := range widths {
		name, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(sheet, name, name, float64(w+2)); err != nil {
			return fmt.Errorf("failed to size column %s: %w", name, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save spreadsheet %s: %w", path, err)
	}
	return nil
}

// writeCell stores one value. Prices that parse become numbers; everything
// else, including blank prices, stays a string.
func writeCell(f *excelize.File, sheet, cell, value string, kind cellKind) error {
	if kind == kindPrice && strings.TrimSpace(value) != "" {
		if d, err := schema.ParseDecimal(value); err == nil {
			return f.SetCellFloat(sheet, cell, d.InexactFloat64(), schema.PriceDecimals, 64)
		}
	}
	return f.SetCellStr(sheet, cell, value)
}

// =============================================================================
// STYLES
// =============================================================================

// styleSet holds the style ids of one workbook, indexed by stripe and kind.
type styleSet struct {
	header int
	data   [2][3]int
}

func newStyleSet(f *excelize.File) (*styleSet, error) {
	s := &styleSet{}

	var err error
	s.header, err = f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
		Font:      &excelize.Font{Bold: true, Color: borderRGB},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	borders := []excelize.Border{
		{Type: "left", Color: borderRGB, Style: 1},
		{Type: "right", Color: borderRGB, Style: 1},
	}
	for stripe := 0; stripe < 2; stripe++ {
		for _, kind := range []cellKind{kindGeneral, kindText, kindPrice} {
			style := &excelize.Style{Border: borders}
			if stripe == 1 {
				style.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{stripeFill}}
			}
			switch kind {
			case kindText:
				style.NumFmt = numFmtText
			case kindPrice:
				style.NumFmt = numFmtDecimal2
			}
			id, err := f.NewStyle(style)
			if err != nil {
				return nil, fmt.Errorf("failed to create data style: %w", err)
			}
			s.data[stripe][kind] = id
		}
	}
	return s, nil
}

func (s *styleSet) body(kind cellKind, striped bool) int {
	if striped {
		return s.data[1][kind]
	}
	return s.data[0][kind]
}

// =============================================================================
// READ BACK
// =============================================================================

// ReadXLSX loads a sheet written by WriteXLSX back into a table. Empty
// trailing cells are restored so every row has the header's width.
//
// RETURNS:
//   - The table (header row as columns).
//   - An error if the file or sheet cannot be read, or the sheet is empty.
func ReadXLSX(path, sheet string) (*table.Table, error) {
	if sheet == "" {
		sheet = DefaultSheetName
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	t := table.New(rows[0]...)
	for _, row := range rows[1:] {
		t.Append(row...)
	}
	return t, nil
}

// VerifyXLSX re-reads a written spreadsheet and checks its header and row
// count.
func VerifyXLSX(path, sheet string, want *table.Table) error {
	got, err := ReadXLSX(path, sheet)
	if err != nil {
		return err
	}
	if err := got.RequireColumns(want.Columns...); err != nil {
		return fmt.Errorf("spreadsheet %s: %w", path, err)
	}
	if got.Len() != want.Len() {
		return &RowCountError{Expected: want.Len(), Actual: got.Len()}
	}
	return nil
}
