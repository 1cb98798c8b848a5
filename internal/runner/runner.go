// =============================================================================
// Invoice Normalizer - Background Runner
// =============================================================================
//
// The runner executes one complete batch (normalize, merge, export) on a
// background goroutine and hands the caller a Task to watch it:
//
//	task := runner.Start(ctx, job)
//	for ev := range task.Events() {
//	    fmt.Println(ev.Message)
//	}
//	summary, err := task.Wait()
//
// Progress is delivered as messages on a channel; nothing in this package
// knows how the caller displays them.
//
// =============================================================================

package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ginjaninja78/invoice-normalizer/internal/builder"
	"github.com/ginjaninja78/invoice-normalizer/internal/export"
	"github.com/ginjaninja78/invoice-normalizer/internal/logging"
	"github.com/ginjaninja78/invoice-normalizer/internal/metrics"
	"github.com/ginjaninja78/invoice-normalizer/internal/types"
	"github.com/ginjaninja78/invoice-normalizer/pkg/utils"
)

// eventBuffer is the capacity of the events channel. Events are dropped, not
// blocked on, once it is full.
const eventBuffer = 64

// =============================================================================
// JOB
// =============================================================================

// Job is everything needed to run one batch.
type Job struct {
	// Items are processed in order.
	Items []builder.Item

	// Builder normalizes the items.
	Builder *builder.Builder

	// OutputDir receives the spreadsheet and side files.
	OutputDir string

	// OutputName is the spreadsheet file name format (see
	// utils.GenerateOutputFileName). Default: "normalizado_{timestamp}.xlsx".
	OutputName string

	// SheetName is the spreadsheet sheet label.
	SheetName string

	// WriteCSV also writes a canonical CSV next to the spreadsheet.
	WriteCSV bool

	// CSVDelimiter separates CSV fields. Default: ';'.
	CSVDelimiter rune

	// Verify re-reads the spreadsheet after writing it.
	Verify bool

	// StrictRowCount fails the run on a merge row-count mismatch instead of
	// only warning.
	StrictRowCount bool

	// DryRun normalizes and merges without writing any file.
	DryRun bool

	// WriteSummary writes a text run summary to OutputDir.
	WriteSummary bool

	// Timeout bounds the whole job. Zero means no limit.
	Timeout time.Duration

	// Logger and Metrics are optional.
	Logger  *slog.Logger
	Metrics *metrics.Recorder
}

// =============================================================================
// TASK
// =============================================================================

// Event is a progress message from a running task.
type Event struct {
	Time    time.Time
	Message string

	// Item is set for per-item events.
	Item *types.ItemOutcome
}

// Task is a running job.
type Task struct {
	ID string

	cancel  context.CancelFunc
	group   *errgroup.Group
	events  chan Event
	done    chan struct{}
	summary *types.RunSummary
	err     error
}

// Start launches job in the background. The task stops early when ctx is
// cancelled or Cancel is called.
func Start(ctx context.Context, job Job) *Task {
	ctx, cancel := context.WithCancel(ctx)
	runCtx, stop := ctx, context.CancelFunc(func() {})
	if job.Timeout > 0 {
		runCtx, stop = context.WithTimeout(ctx, job.Timeout)
	}

	group, gctx := errgroup.WithContext(runCtx)
	t := &Task{
		ID:     uuid.New().String(),
		cancel: cancel,
		group:  group,
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
	}

	group.Go(func() error {
		defer close(t.events)
		summary, err := t.run(gctx, job)
		t.summary = summary
		return err
	})

	go func() {
		t.err = group.Wait()
		stop()
		cancel()
		close(t.done)
	}()

	return t
}

// Events returns the progress channel. It is closed when the job ends.
func (t *Task) Events() <-chan Event {
	return t.events
}

// Done is closed when the job has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Cancel asks the job to stop. The current item finishes first.
func (t *Task) Cancel() {
	t.cancel()
}

// Wait blocks until the job ends and returns its summary. The summary is
// returned even on failure and lists the items that were attempted.
func (t *Task) Wait() (*types.RunSummary, error) {
	<-t.done
	return t.summary, t.err
}

func (t *Task) emit(msg string, item *types.ItemOutcome) {
	select {
	case t.events <- Event{Time: time.Now(), Message: msg, Item: item}:
	default:
	}
}

// =============================================================================
// JOB EXECUTION
// =============================================================================

// run performs the job and always returns a summary.
func (t *Task) run(ctx context.Context, job Job) (*types.RunSummary, error) {
	log := job.Logger
	if log == nil {
		log = logging.Discard()
	}
	log = log.With("run_id", t.ID)

	summary := &types.RunSummary{RunID: t.ID, StartedAt: time.Now()}
	finish := func(err error) (*types.RunSummary, error) {
		summary.FinishedAt = time.Now()
		job.Metrics.ObserveBatch(summary.TotalRows, err)
		if job.WriteSummary && !job.DryRun && job.OutputDir != "" {
			path, werr := "", utils.EnsureDir(job.OutputDir)
			if werr == nil {
				path, werr = utils.WriteSummaryLog(summary, job.OutputDir)
			}
			if werr != nil {
				log.Warn("failed to write run summary", "error", werr)
			} else {
				t.emit("summary written to "+path, nil)
			}
		}
		return summary, err
	}

	if job.Builder == nil {
		return finish(errors.New("job has no builder"))
	}
	if len(job.Items) == 0 {
		return finish(errors.New("batch is empty"))
	}

	// =========================================================================
	// STEP 1: NORMALIZE
	// =========================================================================

	t.emit(fmt.Sprintf("processing %d files", len(job.Items)), nil)
	b := job.Builder.WithProgress(func(p builder.Progress) {
		o := p.Outcome
		t.emit(describe(o, p.Total), &o)
	})
	result, err := b.Process(ctx, job.Items)
	if result != nil {
		summary.Items = result.Outcomes
	}
	if err != nil {
		return finish(err)
	}

	// =========================================================================
	// STEP 2: MERGE
	// =========================================================================

	merged, err := export.Merge(result.Tables, export.MergeOptions{
		Strict: job.StrictRowCount,
		Logger: log,
	})
	if err != nil {
		return finish(err)
	}
	if merged.Mismatch != nil {
		summary.Warnings = append(summary.Warnings, merged.Mismatch.Error())
	}
	summary.TotalRows = merged.Table.Len()
	t.emit(fmt.Sprintf("merged %d rows", summary.TotalRows), nil)

	if job.DryRun {
		t.emit("dry run, nothing written", nil)
		return finish(nil)
	}
	if err := ctx.Err(); err != nil {
		return finish(fmt.Errorf("cancelled before export: %w", err))
	}

	// =========================================================================
	// STEP 3: EXPORT
	// =========================================================================

	if err := utils.EnsureDir(job.OutputDir); err != nil {
		return finish(err)
	}

	name := job.OutputName
	if name == "" {
		name = "normalizado_{timestamp}.xlsx"
	}
	outPath := filepath.Join(job.OutputDir, utils.GenerateOutputFileName(name, map[string]string{
		"providers": providerList(job.Items),
	}))

	if err := export.WriteXLSX(merged.Table, outPath, export.XLSXOptions{SheetName: job.SheetName}); err != nil {
		return finish(err)
	}
	summary.OutputFile = outPath
	t.emit("spreadsheet written to "+outPath, nil)

	if job.Verify {
		if err := export.VerifyXLSX(outPath, job.SheetName, merged.Table); err != nil {
			return finish(fmt.Errorf("verify %s: %w", outPath, err))
		}
	}

	if job.WriteCSV {
		delim := job.CSVDelimiter
		if delim == 0 {
			delim = ';'
		}
		csvPath := utils.SiblingPath(outPath, ".csv")
		if err := export.WriteCSVFile(merged.Table, csvPath, delim); err != nil {
			return finish(err)
		}
		summary.CSVFile = csvPath
		t.emit("csv written to "+csvPath, nil)
	}

	log.Info("batch exported", "output", outPath, "rows", summary.TotalRows)
	return finish(nil)
}

func describe(o types.ItemOutcome, total int) string {
	if o.Err != nil {
		return fmt.Sprintf("[%d/%d] %s failed: %v", o.Index+1, total, filepath.Base(o.Path), o.Err)
	}
	return fmt.Sprintf("[%d/%d] %s: %d rows (%s)", o.Index+1, total, filepath.Base(o.Path), o.Rows, o.Provider)
}

// providerList joins the distinct lowercase providers of the batch.
func providerList(items []builder.Item) string {
	seen := make(map[string]bool)
	var tags []string
	for _, item := range items {
		tag := strings.ToLower(strings.TrimSpace(item.Provider))
		if tag != "" && !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return strings.Join(tags, "-")
}
