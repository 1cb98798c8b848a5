// =============================================================================
// Invoice Normalizer - Shared Types
// =============================================================================
//
// This package contains types shared by the export and summary code without
// pulling in the pipeline packages. Types defined here are used by:
//   - export (canonical CSV output)
//   - builder (per-item outcome reporting)
//   - pkg/utils (run summary)
//
// =============================================================================

package types

import "time"

// =============================================================================
// CANONICAL RECORD
// =============================================================================

// Record is one canonical output row. The csv tags are the canonical column
// names, in canonical order.
type Record struct {
	Invoice     string `csv:"Nro Comprobante"`
	Date        string `csv:"Fecha"`
	Supplier    string `csv:"Drogueria"`
	Account     string `csv:"Nro de Cuenta"`
	Barcode     string `csv:"Codigo de Barras"`
	Description string `csv:"Descripcion"`
	Quantity    string `csv:"Cantidad"`
	TaxRate     string `csv:"IVA (%)"`
	UnitPrice   string `csv:"Precio Unitario"`
}

// =============================================================================
// RUN OUTCOME
// =============================================================================

// ItemOutcome summarizes how one batch item was processed.
type ItemOutcome struct {
	// Index is the zero-based position of the item in the batch.
	Index int

	// Path is the input file.
	Path string

	// Provider is the normalized provider tag.
	Provider string

	// Rows is the number of canonical rows the item produced.
	Rows int

	// Duration is the time spent normalizing the item.
	Duration time.Duration

	// Err is set when the item failed.
	Err error
}

// RunSummary describes a complete batch run.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	OutputFile string
	CSVFile    string
	TotalRows  int
	Items      []ItemOutcome
	Warnings   []string
}

// Failed reports whether any item failed.
func (s *RunSummary) Failed() bool {
	for _, item := range s.Items {
		if item.Err != nil {
			return true
		}
	}
	return false
}
