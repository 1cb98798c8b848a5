// =============================================================================
// Invoice Normalizer - Table Module
// =============================================================================
//
// Table is the in-memory representation shared by every pipeline stage: an
// ordered list of column names and an ordered list of rows of string cells.
//
// OWNERSHIP:
//   Every operation in this package returns a new Table. Inputs are never
//   modified, so a stage can hand its result to the next one without copying.
//
// =============================================================================

package table

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrEmptyTable is returned by operations that require at least one row.
var ErrEmptyTable = errors.New("table has no rows")

// IndexError reports a column index outside the table.
type IndexError struct {
	Index    int
	MaxIndex int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("column index %d out of range (max index %d)", e.Index, e.MaxIndex)
}

// MissingColumnsError lists the named columns a table was expected to carry.
type MissingColumnsError struct {
	Missing []string
	Present []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing columns %q (found %q)", e.Missing, e.Present)
}

// =============================================================================
// TABLE
// =============================================================================

// Table is an ordered set of named columns over string rows.
type Table struct {
	Columns []string
	Rows    [][]string
}

// New creates a table with the given column names and no rows.
func New(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

// Empty returns an empty table. A nil receiver is treated as empty elsewhere
// in this package.
func Empty() *Table {
	return &Table{}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Width returns the number of columns.
func (t *Table) Width() int {
	if t == nil {
		return 0
	}
	return len(t.Columns)
}

// IsEmpty reports whether the table has no rows.
func (t *Table) IsEmpty() bool {
	return t.Len() == 0
}

// Append adds a row. Short rows are padded and long rows truncated so the
// table keeps a uniform width.
func (t *Table) Append(row ...string) {
	t.Rows = append(t.Rows, fit(row, len(t.Columns)))
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	if t == nil {
		return Empty()
	}
	out := New(t.Columns...)
	out.Rows = make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		r := make([]string, len(row))
		copy(r, row)
		out.Rows[i] = r
	}
	return out
}

// ColumnIndex returns the index of the first column with the given name,
// or -1 if there is none.
func (t *Table) ColumnIndex(name string) int {
	for i, col := range t.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

// Has reports whether the table has a column with the given name.
func (t *Table) Has(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Column returns a copy of all values of the named column.
func (t *Table) Column(name string) ([]string, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, &MissingColumnsError{Missing: []string{name}, Present: t.Columns}
	}
	values := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values, nil
}

// RequireColumns fails with a MissingColumnsError naming every absent column.
func (t *Table) RequireColumns(names ...string) error {
	var missing []string
	for _, name := range names {
		if !t.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Missing: missing, Present: t.Columns}
	}
	return nil
}

// =============================================================================
// SHARED PRIMITIVES
// =============================================================================

// SelectColumns projects the table onto the given zero-based column indices.
// Indices may repeat and appear in any order; the result follows their order.
//
// RETURNS:
//   - ErrEmptyTable if the table has no rows.
//   - *IndexError if any index is outside the table.
func SelectColumns(t *Table, indices ...int) (*Table, error) {
	if t.IsEmpty() {
		return nil, fmt.Errorf("select columns: %w", ErrEmptyTable)
	}
	maxIndex := t.Width() - 1
	for _, idx := range indices {
		if idx < 0 || idx > maxIndex {
			return nil, &IndexError{Index: idx, MaxIndex: maxIndex}
		}
	}

	cols := make([]string, len(indices))
	for i, idx := range indices {
		cols[i] = t.Columns[idx]
	}
	out := &Table{Columns: cols, Rows: make([][]string, len(t.Rows))}
	for r, row := range t.Rows {
		selected := make([]string, len(indices))
		for i, idx := range indices {
			selected[i] = row[idx]
		}
		out.Rows[r] = selected
	}
	return out, nil
}

// Column names used for the caller-supplied fixed columns.
const (
	SupplierColumn = "Proveedor"
	AccountColumn  = "Cuenta"
)

// AddFixedColumns appends the supplier tag and the account identifier as two
// constant-valued columns.
func AddFixedColumns(t *Table, supplier, account string) *Table {
	return AddConstantColumn(AddConstantColumn(t, SupplierColumn, supplier), AccountColumn, account)
}

// AddConstantColumn appends a column holding the same value on every row.
// An existing column with the same name is overwritten in place.
func AddConstantColumn(t *Table, name, value string) *Table {
	out := t.Clone()
	if idx := out.ColumnIndex(name); idx >= 0 {
		for _, row := range out.Rows {
			row[idx] = value
		}
		return out
	}
	out.Columns = append(out.Columns, name)
	for i, row := range out.Rows {
		out.Rows[i] = append(row, value)
	}
	return out
}

// AddColumn appends a column holding values[i] on row i. Missing values are
// left blank.
func AddColumn(t *Table, name string, values []string) *Table {
	out := t.Clone()
	out.Columns = append(out.Columns, name)
	for i, row := range out.Rows {
		var v string
		if i < len(values) {
			v = values[i]
		}
		out.Rows[i] = append(row, v)
	}
	return out
}

// ExcludeRows drops every row whose named column equals one of values.
func ExcludeRows(t *Table, column string, values ...string) (*Table, error) {
	idx := t.ColumnIndex(column)
	if idx < 0 {
		return nil, &MissingColumnsError{Missing: []string{column}, Present: t.Columns}
	}
	return Filter(t, func(row []string) bool {
		return !containsTrimmed(values, row[idx])
	}), nil
}

// KeepRowsAt keeps only rows whose cell at the given index equals one of
// values.
func KeepRowsAt(t *Table, index int, values ...string) (*Table, error) {
	if index < 0 || index >= t.Width() {
		return nil, &IndexError{Index: index, MaxIndex: t.Width() - 1}
	}
	return Filter(t, func(row []string) bool {
		return containsTrimmed(values, row[index])
	}), nil
}

// Filter returns the rows for which keep returns true, in their original order.
func Filter(t *Table, keep func(row []string) bool) *Table {
	out := New(t.Columns...)
	for _, row := range t.Rows {
		if keep(row) {
			r := make([]string, len(row))
			copy(r, row)
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// Rename returns a copy with columns renamed via mapping. Columns that are not
// in mapping keep their name.
func Rename(t *Table, mapping map[string]string) *Table {
	out := t.Clone()
	for i, col := range out.Columns {
		if renamed, ok := mapping[col]; ok {
			out.Columns[i] = renamed
		}
	}
	return out
}

// Concat appends the rows of every table in order. All tables must share the
// column list of the first non-empty one.
func Concat(tables ...*Table) (*Table, error) {
	var out *Table
	for i, t := range tables {
		if t == nil {
			continue
		}
		if out == nil {
			out = New(t.Columns...)
		} else if !sameColumns(out.Columns, t.Columns) {
			return nil, fmt.Errorf("table %d columns %q do not match %q", i, t.Columns, out.Columns)
		}
		for _, row := range t.Rows {
			r := make([]string, len(row))
			copy(r, row)
			out.Rows = append(out.Rows, r)
		}
	}
	if out == nil {
		return Empty(), nil
	}
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func fit(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}

func containsTrimmed(values []string, cell string) bool {
	cell = strings.TrimSpace(cell)
	for _, v := range values {
		if cell == v {
			return true
		}
	}
	return false
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
