package normalizer

import (
	"log/slog"
	"strings"

	"github.com/ginjaninja78/invoice-normalizer/internal/schema"
	"github.com/ginjaninja78/invoice-normalizer/internal/table"
)

// =============================================================================
// HEADER/DETAIL DATE PROPAGATION
// =============================================================================

// groupDates describes a header/detail ledger for fillGroupDates.
type groupDates struct {
	// TypeColumn holds the record-type discriminator.
	TypeColumn string

	// HeaderType is the discriminator value of header rows.
	HeaderType string

	// GroupColumn is the invoice key shared by a header and its details.
	GroupColumn string

	// DateColumn is rewritten to dd/mm/yyyy and forward-filled.
	DateColumn string
}

// fillGroupDates normalizes the date column and forward-fills it within each
// invoice group in row order. A later non-blank date in the same group
// replaces the running value. Header rows without a usable date are logged
// and leave their group blank until a dated row appears.
//
// RETURNS:
//   - A new table with the date column filled.
//   - The invoice keys of header rows that had no date.
//   - *table.MissingColumnsError if a required column is absent.
func fillGroupDates(t *table.Table, g groupDates, log *slog.Logger) (*table.Table, []string, error) {
	if err := t.RequireColumns(g.TypeColumn, g.GroupColumn, g.DateColumn); err != nil {
		return nil, nil, err
	}
	typeIdx := t.ColumnIndex(g.TypeColumn)
	groupIdx := t.ColumnIndex(g.GroupColumn)
	dateIdx := t.ColumnIndex(g.DateColumn)

	out := t.Clone()
	last := make(map[string]string)
	var undated []string

	for _, row := range out.Rows {
		key := strings.TrimSpace(row[groupIdx])
		date := schema.FormatDate(row[dateIdx])

		if date == "" && strings.TrimSpace(row[typeIdx]) == g.HeaderType {
			undated = append(undated, key)
		}
		if date != "" {
			last[key] = date
		} else {
			date = last[key]
		}
		row[dateIdx] = date
	}

	if len(undated) > 0 {
		log.Warn("header rows without a date; their details keep a blank date",
			"count", len(undated), "invoices", undated)
	}
	return out, undated, nil
}

// =============================================================================
// INVOICE NUMBERS
// =============================================================================

// minInvoiceLength is the shortest raw code that is reformatted.
const minInvoiceLength = 12

// formatLetterFirst turns "A00180225101" into "FC A 0018-0225101".
// Shorter values are returned trimmed but otherwise unchanged.
func formatLetterFirst(value string) string {
	v := []rune(strings.TrimSpace(value))
	if len(v) < minInvoiceLength {
		return string(v)
	}
	return "FC " + string(v[0]) + " " + string(v[1:5]) + "-" + string(v[5:])
}

// formatLetterFifth turns "0307A04304132" into "FC A 0307-04304132".
// Shorter values are returned trimmed but otherwise unchanged.
func formatLetterFifth(value string) string {
	v := []rune(strings.TrimSpace(value))
	if len(v) < minInvoiceLength {
		return string(v)
	}
	return "FC " + string(v[4]) + " " + string(v[:4]) + "-" + string(v[5:])
}

// combineInvoice joins an invoice letter and number as "FC <letter> <number>".
// A bare digit string longer than four digits gets the point-of-sale hyphen
// inserted ("000100000001" becomes "0001-00000001").
func combineInvoice(letter, number string) string {
	letter = strings.TrimSpace(letter)
	number = strings.TrimSpace(number)
	if len(number) > 4 && !strings.Contains(number, "-") && isDigits(number) {
		number = number[:4] + "-" + number[4:]
	}
	return "FC " + letter + " " + number
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
