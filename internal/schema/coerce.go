package schema

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DECIMALS
// =============================================================================

// PriceDecimals is the number of fractional digits kept on unit prices.
const PriceDecimals = 2

// ErrNotANumber is returned for price cells that do not parse as a decimal.
var ErrNotANumber = errors.New("not a number")

// ParseDecimal parses a supplier amount.
//
// A comma marks the European form: "." is the thousands separator and ","
// the decimal separator ("1.234,56"). Without a comma, several dots are all
// thousands separators ("1.234.567") and a single dot is the decimal point.
// Currency symbols and surrounding spaces are ignored.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimPrefix(s, "$"))
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrNotANumber)
	}

	switch {
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNotANumber, s)
	}
	return d, nil
}

// NormalizePrice parses a price and renders it rounded to PriceDecimals with
// a "." decimal point. Blank input stays blank.
func NormalizePrice(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	d, err := ParseDecimal(s)
	if err != nil {
		return "", err
	}
	return d.StringFixed(PriceDecimals), nil
}

// FormatDecimal renders d with the given number of places in the European
// form used by supplier files ("1234,56").
func FormatDecimal(d decimal.Decimal, places int32) string {
	return strings.Replace(d.StringFixed(places), ".", ",", 1)
}

// =============================================================================
// DATES
// =============================================================================

// DateLayout is the canonical date format (dd/mm/yyyy).
const DateLayout = "02/01/2006"

// dateLayouts are tried in order. All ambiguous forms are read day-first.
var dateLayouts = []string{
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2006-01-02",
	"2006/01/02",
	"20060102",
	"2/1/06",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParseDate parses a day-first date in any of the supported layouts.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate rewrites a date as dd/mm/yyyy. Unparseable values become blank.
func FormatDate(s string) string {
	t, ok := ParseDate(s)
	if !ok {
		return ""
	}
	return t.Format(DateLayout)
}
