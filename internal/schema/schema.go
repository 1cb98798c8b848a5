// =============================================================================
// Invoice Normalizer - Canonical Schema
// =============================================================================
//
// This module defines the canonical output schema shared by every provider and
// the Standardize step that maps a provider-local table onto it.
//
// CANONICAL COLUMNS (in output order):
//   Nro Comprobante, Fecha, Drogueria, Nro de Cuenta, Codigo de Barras,
//   Descripcion, Cantidad, IVA (%), Precio Unitario
//
// COERCION:
//   - Precio Unitario: decimal rounded to 2 digits, written with "." as the
//     decimal separator ("1.234,56" becomes "1234.56")
//   - Fecha: day-first dates written as dd/mm/yyyy, blank when unparseable
//   - every other cell is kept as text (the barcode in particular)
//
// =============================================================================

package schema

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/invoice-normalizer/internal/table"
)

// Canonical column names.
const (
	Invoice     = "Nro Comprobante"
	Date        = "Fecha"
	Supplier    = "Drogueria"
	Account     = "Nro de Cuenta"
	Barcode     = "Codigo de Barras"
	Description = "Descripcion"
	Quantity    = "Cantidad"
	TaxRate     = "IVA (%)"
	UnitPrice   = "Precio Unitario"
)

var canonical = []string{
	Invoice, Date, Supplier, Account, Barcode,
	Description, Quantity, TaxRate, UnitPrice,
}

// Columns returns the canonical column order.
func Columns() []string {
	out := make([]string, len(canonical))
	copy(out, canonical)
	return out
}

// =============================================================================
// MAPPING
// =============================================================================

// Mapping renames provider-local column names to canonical names.
type Mapping map[string]string

// Fields names the provider-local source column of each canonical field.
// Supplier and account always come from the fixed columns added by
// table.AddFixedColumns, so they are not part of Fields.
type Fields struct {
	Invoice     string
	Date        string
	Barcode     string
	Description string
	Quantity    string
	TaxRate     string
	UnitPrice   string
}

// Mapping builds the rename table for a provider.
func (f Fields) Mapping() Mapping {
	return Mapping{
		f.Invoice:            Invoice,
		f.Date:               Date,
		table.SupplierColumn: Supplier,
		table.AccountColumn:  Account,
		f.Barcode:            Barcode,
		f.Description:        Description,
		f.Quantity:           Quantity,
		f.TaxRate:            TaxRate,
		f.UnitPrice:          UnitPrice,
	}
}

// Identity maps every canonical column to itself.
func Identity() Mapping {
	m := make(Mapping, len(canonical))
	for _, c := range canonical {
		m[c] = c
	}
	return m
}

// =============================================================================
// ERRORS
// =============================================================================

// CoercionError reports a cell that could not be coerced to its canonical form.
type CoercionError struct {
	Column string
	Row    int
	Value  string
	Err    error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("column %q row %d: cannot coerce %q: %v", e.Column, e.Row, e.Value, e.Err)
}

func (e *CoercionError) Unwrap() error {
	return e.Err
}

// =============================================================================
// STANDARDIZE
// =============================================================================

// Standardize renames, projects and coerces a provider-local table.
//
// PARAMETERS:
//   - t: The provider-local table.
//   - mapping: Source name to canonical name.
//   - order: The output columns, usually Columns().
//
// RETURNS:
//   - A new table with exactly the columns in order.
//   - *table.MissingColumnsError if a column in order is absent after renaming.
//   - *CoercionError if a price cell is not a number.
func Standardize(t *table.Table, mapping Mapping, order []string) (*table.Table, error) {
	renamed := table.Rename(t, mapping)
	if err := renamed.RequireColumns(order...); err != nil {
		return nil, err
	}

	indices := make([]int, len(order))
	for i, name := range order {
		indices[i] = renamed.ColumnIndex(name)
	}

	out := table.New(order...)
	out.Rows = make([][]string, 0, renamed.Len())
	for r, row := range renamed.Rows {
		projected := make([]string, len(indices))
		for i, idx := range indices {
			value := strings.TrimSpace(row[idx])
			switch order[i] {
			case UnitPrice:
				price, err := NormalizePrice(value)
				if err != nil {
					return nil, &CoercionError{Column: UnitPrice, Row: r, Value: value, Err: err}
				}
				value = price
			case Date:
				value = FormatDate(value)
			}
			projected[i] = value
		}
		out.Rows = append(out.Rows, projected)
	}
	return out, nil
}
