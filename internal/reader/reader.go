// =============================================================================
// Invoice Normalizer - Delimited-Text Reader
// =============================================================================
//
// This module loads raw supplier exports into a table.Table. Supplier files are
// loosely structured, so the reader is deliberately forgiving:
//   - The delimiter is detected from the first line (first candidate present
//     wins; the candidate order is provider-specific)
//   - Latin-1 and UTF-8 (with or without BOM) encodings are supported
//   - For fixed-width formats a short first row is padded with delimiters
//   - Rows wider than the table are skipped, narrower rows are padded
//   - Quotes are plain data unless Options.Quoting is set
//
// FAILURE MODEL:
//   Any I/O, decoding or detection failure yields an empty table together with
//   an error wrapping ErrUnreadable. Callers treat that as "file unreadable"
//   and abort only the item being processed.
//
// =============================================================================

package reader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/invoice-normalizer/internal/table"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrUnreadable wraps every failure that leaves the reader without a table.
	ErrUnreadable = errors.New("file unreadable")

	// ErrNoDelimiter is returned when no candidate delimiter occurs in the
	// first line.
	ErrNoDelimiter = errors.New("no delimiter detected")
)

// =============================================================================
// OPTIONS
// =============================================================================

// Encoding names a supported input character set.
type Encoding string

const (
	Latin1 Encoding = "latin1"
	UTF8   Encoding = "utf-8"
)

// DefaultDelimiters is the candidate order used when Options.Delimiters is
// empty: tab, comma, semicolon, pipe, space.
var DefaultDelimiters = []rune{'\t', ',', ';', '|', ' '}

// Options controls how a file is read.
type Options struct {
	// Delimiters are the candidates checked against the first line, in order.
	Delimiters []rune

	// Encoding of the raw bytes. Default: Latin1.
	Encoding Encoding

	// Header uses the first row as column names.
	Header bool

	// ExpectedColumns is the fixed width of headerless formats. When the
	// first row is shorter, delimiters are appended to that row only.
	ExpectedColumns int

	// ColumnNames are assigned to headerless tables when their count matches
	// the table width. Otherwise col1..colN is used.
	ColumnNames []string

	// Quoting enables CSV quote handling. When off, every line is one record
	// split on the delimiter and quote characters are kept as data.
	Quoting bool
}

func (o Options) delimiters() []rune {
	if len(o.Delimiters) == 0 {
		return DefaultDelimiters
	}
	return o.Delimiters
}

// Result is a read table plus what the reader had to repair on the way.
type Result struct {
	Table *table.Table

	// Delimiter is the detected field delimiter.
	Delimiter rune

	// PaddedFields is how many delimiters were appended to the first row.
	PaddedFields int

	// SkippedRows counts malformed rows that were dropped.
	SkippedRows int
}

// =============================================================================
// READ
// =============================================================================

// Read loads and parses a delimited file.
//
// PARAMETERS:
//   - path: The file to read.
//   - opts: Encoding, delimiter candidates and header handling.
//
// RETURNS:
//   - A Result whose Table is never nil (empty on failure).
//   - An error wrapping ErrUnreadable if the file could not be read.
func Read(path string, opts Options) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return failed(fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err))
	}
	content, err := Decode(data, opts.Encoding)
	if err != nil {
		return failed(fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err))
	}
	res, err := Parse(content, opts)
	if err != nil {
		return failed(fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err))
	}
	return res, nil
}

// Parse parses already decoded text. See Read.
func Parse(content string, opts Options) (*Result, error) {
	lines := strings.Split(content, "\n")
	first := strings.TrimRight(lines[0], "\r")
	if opts.ExpectedColumns > 0 {
		first = strings.TrimSpace(first)
	}
	if strings.TrimSpace(first) == "" {
		return nil, errors.New("first line is empty")
	}

	delim, ok := DetectDelimiter(first, opts.delimiters())
	if !ok {
		return nil, ErrNoDelimiter
	}

	res := &Result{Delimiter: delim}
	if opts.ExpectedColumns > 0 {
		first, res.PaddedFields = PadFirstLine(first, delim, opts.ExpectedColumns)
	}
	lines[0] = first

	var records [][]string
	if opts.Quoting {
		records, res.SkippedRows = ParseRecords(strings.Join(lines, "\n"), delim)
	} else {
		records = SplitRecords(lines, delim)
	}
	if len(records) == 0 {
		return nil, errors.New("no rows")
	}

	var columns []string
	if opts.Header {
		columns = cleanHeaders(records[0])
		records = records[1:]
	} else {
		width := opts.ExpectedColumns
		if width <= 0 {
			width = len(records[0])
		}
		columns = syntheticNames(width, opts.ColumnNames)
	}

	t := table.New(columns...)
	for _, rec := range records {
		if len(rec) > len(columns) {
			res.SkippedRows++
			continue
		}
		t.Append(rec...)
	}
	res.Table = t
	return res, nil
}

func failed(err error) (*Result, error) {
	return &Result{Table: table.Empty()}, err
}

// =============================================================================
// BUILDING BLOCKS
// =============================================================================

// Decode converts raw bytes to a UTF-8 string. UTF-8 input may start with a
// byte order mark; invalid UTF-8 is an error.
func Decode(data []byte, enc Encoding) (string, error) {
	switch enc {
	case UTF8:
		if !utf8.Valid(data) {
			return "", errors.New("invalid utf-8 input")
		}
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		if err != nil {
			return "", fmt.Errorf("decode utf-8: %w", err)
		}
		return string(out), nil
	case Latin1, "":
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("decode latin1: %w", err)
		}
		return string(out), nil
	default:
		return "", fmt.Errorf("unsupported encoding %q", enc)
	}
}

// DetectDelimiter returns the first candidate that occurs in line.
func DetectDelimiter(line string, candidates []rune) (rune, bool) {
	for _, c := range candidates {
		if strings.ContainsRune(line, c) {
			return c, true
		}
	}
	return 0, false
}

// PadFirstLine appends delimiters until line splits into expected fields.
// It returns the line and the number of delimiters added; a line that is
// already wide enough is returned unchanged.
func PadFirstLine(line string, delim rune, expected int) (string, int) {
	fields := len(strings.Split(line, string(delim)))
	if fields >= expected {
		return line, 0
	}
	missing := expected - fields
	return line + strings.Repeat(string(delim), missing), missing
}

// SplitRecords splits each non-blank line on delim. Quotes get no special
// treatment, so a stray quote never spans lines.
func SplitRecords(lines []string, delim rune) [][]string {
	sep := string(delim)
	records := make([][]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		records = append(records, strings.Split(line, sep))
	}
	return records
}

// ParseRecords splits content into records using CSV quoting rules. Rows the
// CSV parser rejects are dropped and counted.
func ParseRecords(content string, delim rune) ([][]string, int) {
	r := csv.NewReader(strings.NewReader(content))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	var (
		records [][]string
		skipped int
	)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				skipped++
				continue
			}
			break
		}
		records = append(records, rec)
	}
	return records, skipped
}

// cleanHeaders strips quotes and surrounding whitespace from header names.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, h := range headers {
		cleaned[i] = strings.TrimSpace(strings.ReplaceAll(h, `"`, ""))
	}
	return cleaned
}

func syntheticNames(width int, names []string) []string {
	if len(names) == width {
		out := make([]string, width)
		copy(out, names)
		return out
	}
	out := make([]string, width)
	for i := range out {
		out[i] = fmt.Sprintf("col%d", i+1)
	}
	return out
}
