// =============================================================================
// Invoice Normalizer - Provider Normalizers
// =============================================================================
//
// This package turns one raw supplier export into a canonical table. Each
// supplier gets its own Normalizer; the formats diverge too much in row
// semantics to share a base implementation, so the only common ground is the
// Normalizer interface and the helpers in ledger.go.
//
// SUPPORTED PROVIDERS:
//   - monroe   : header/detail ledger, "Cabecera" rows carry the invoice date
//   - suizo    : header/detail ledger, "C"/"I" rows are dropped
//   - cofarsur : fixed-width headerless ledger, dates propagate from "C" rows
//   - keller   : one invoice per file, invoice number taken from the file name
//
// PIPELINE (per provider, see the individual files):
//   read -> provider transforms -> select columns -> add fixed columns ->
//   standardize
//
// Every failure is returned as a *StageError naming the step that failed.
//
// =============================================================================

package normalizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ginjaninja78/invoice-normalizer/internal/logging"
	"github.com/ginjaninja78/invoice-normalizer/internal/schema"
	"github.com/ginjaninja78/invoice-normalizer/internal/table"
)

// Provider tags.
const (
	Monroe   = "monroe"
	Suizo    = "suizo"
	Cofarsur = "cofarsur"
	Keller   = "keller"
)

// =============================================================================
// INTERFACE
// =============================================================================

// Input is one file to normalize.
type Input struct {
	// Path is the raw export.
	Path string

	// Provider is the supplier tag written to the Drogueria column.
	Provider string

	// Account is the customer account written to the Nro de Cuenta column.
	Account string
}

// Normalizer converts a raw export into a canonical table.
type Normalizer interface {
	Normalize(ctx context.Context, in Input) (*table.Table, error)
}

// Options configures the normalizers built by Registry.
type Options struct {
	// Logger receives warnings such as header rows without a date.
	// Default: discard.
	Logger *slog.Logger

	// KellerTaxRate is the IVA value written on every keller row.
	// Default: "0".
	KellerTaxRate string
}

func (o Options) logger(provider string) *slog.Logger {
	l := o.Logger
	if l == nil {
		l = logging.Discard()
	}
	return l.With("provider", provider)
}

// Registry returns the tag -> Normalizer table for every supported provider.
func Registry(opts Options) map[string]Normalizer {
	return map[string]Normalizer{
		Monroe:   NewMonroe(opts),
		Suizo:    NewSuizo(opts),
		Cofarsur: NewCofarsur(opts),
		Keller:   NewKeller(opts),
	}
}

// Providers returns the supported provider tags in alphabetical order.
func Providers() []string {
	tags := []string{Monroe, Suizo, Cofarsur, Keller}
	sort.Strings(tags)
	return tags
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrColumnMismatch is returned when data rows do not line up with the
	// header of a header-driven format.
	ErrColumnMismatch = errors.New("data columns do not match header")

	// ErrNoRows is returned when a step leaves nothing to normalize.
	ErrNoRows = errors.New("no rows left")
)

// Stage names used in StageError.
const (
	StageRead        = "read"
	StageFillDates   = "fill-dates"
	StageFilter      = "filter"
	StageSelect      = "select-columns"
	StageInvoice     = "format-invoice"
	StageDate        = "format-date"
	StageTax         = "adjust-tax"
	StageHeaders     = "assign-headers"
	StageFixed       = "fixed-columns"
	StageStandardize = "standardize"
)

// StageError reports the pipeline step that failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// =============================================================================
// SHARED TAIL
// =============================================================================

// finish adds the fixed columns and maps the table onto the canonical schema.
func finish(t *table.Table, in Input, fields schema.Fields) (*table.Table, error) {
	withFixed := table.AddFixedColumns(t, in.Provider, in.Account)
	out, err := schema.Standardize(withFixed, fields.Mapping(), schema.Columns())
	if err != nil {
		return nil, stageErr(StageStandardize, err)
	}
	return out, nil
}

// selectColumns wraps table.SelectColumns with the stage name.
func selectColumns(t *table.Table, indices []int) (*table.Table, error) {
	out, err := table.SelectColumns(t, indices...)
	if err != nil {
		return nil, stageErr(StageSelect, err)
	}
	return out, nil
}

func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("normalize cancelled: %w", err)
	}
	return nil
}
