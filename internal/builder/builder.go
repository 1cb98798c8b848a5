// =============================================================================
// Invoice Normalizer - Builder
// =============================================================================
//
// The builder dispatches each batch item to the normalizer registered for its
// provider tag and collects the canonical tables in submission order.
//
// POLICY:
//   - Items run strictly one after another, in order.
//   - Provider tags and accounts are resolved for the whole batch before any
//     file is read.
//   - The first failing item fails the batch. Its error is an *ItemError
//     naming the item, provider and stage.
//   - A normalizer that returns nothing is a failure, never a skip.
//
// =============================================================================

package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/ginjaninja78/invoice-normalizer/internal/config"
	"github.com/ginjaninja78/invoice-normalizer/internal/logging"
	"github.com/ginjaninja78/invoice-normalizer/internal/metrics"
	"github.com/ginjaninja78/invoice-normalizer/internal/normalizer"
	"github.com/ginjaninja78/invoice-normalizer/internal/table"
	"github.com/ginjaninja78/invoice-normalizer/internal/types"
)

// DefaultKellerAccountLabel is the account store label used for keller.
const DefaultKellerAccountLabel = "depo"

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrUnknownProvider is returned for a tag with no registered normalizer.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrMissingAccount is returned when an item that needs an account has none.
	ErrMissingAccount = errors.New("account is required")

	// ErrEmptyResult is returned when a normalizer produces no rows.
	ErrEmptyResult = errors.New("normalizer returned no rows")
)

// Builder stages that are not normalizer stages.
const (
	StageDispatch  = "dispatch"
	StageAccount   = "resolve-account"
	StageNormalize = "normalize"
	StageResult    = "check-result"
)

// ItemError reports which batch item failed and where.
type ItemError struct {
	Index    int
	Path     string
	Provider string
	Stage    string
	Err      error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d (%s, provider %s) failed at %s: %v",
		e.Index+1, e.Path, e.Provider, e.Stage, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// =============================================================================
// BUILDER
// =============================================================================

// Progress is reported after each item finishes.
type Progress struct {
	Index   int
	Total   int
	Outcome types.ItemOutcome
}

// Options configures a Builder.
type Options struct {
	// Normalizers maps lowercase provider tags to implementations.
	// Default: normalizer.Registry with the builder's logger.
	Normalizers map[string]normalizer.Normalizer

	// Accounts is the account store. It is required for keller items and
	// lets other items name an account by label.
	Accounts *config.AccountStore

	// KellerAccountLabel is the keller account label in Accounts.
	// Default: "depo".
	KellerAccountLabel string

	// Logger receives per-item progress. Default: discard.
	Logger *slog.Logger

	// Metrics records per-item counters. Optional.
	Metrics *metrics.Recorder

	// OnProgress is called after every item, successful or not. Optional.
	OnProgress func(Progress)
}

// Builder runs batches through the provider normalizers.
type Builder struct {
	normalizers map[string]normalizer.Normalizer
	accounts    *config.AccountStore
	kellerLabel string
	log         *slog.Logger
	metrics     *metrics.Recorder
	onProgress  func(Progress)
}

// New creates a Builder.
func New(opts Options) *Builder {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	normalizers := opts.Normalizers
	if normalizers == nil {
		normalizers = normalizer.Registry(normalizer.Options{Logger: log})
	}
	label := opts.KellerAccountLabel
	if label == "" {
		label = DefaultKellerAccountLabel
	}

	b := &Builder{
		normalizers: make(map[string]normalizer.Normalizer, len(normalizers)),
		accounts:    opts.Accounts,
		kellerLabel: label,
		log:         log.With("component", "builder"),
		metrics:     opts.Metrics,
		onProgress:  opts.OnProgress,
	}
	for tag, n := range normalizers {
		b.normalizers[strings.ToLower(tag)] = n
	}
	return b
}

// WithProgress returns a copy of b that also reports progress to fn, after
// any OnProgress callback already configured.
func (b *Builder) WithProgress(fn func(Progress)) *Builder {
	c := *b
	prev := b.onProgress
	c.onProgress = func(p Progress) {
		if prev != nil {
			prev(p)
		}
		fn(p)
	}
	return &c
}

// Result holds the canonical tables of a batch and how each item went.
type Result struct {
	// Tables are the canonical tables in item order.
	Tables []*table.Table

	// Outcomes has one entry per attempted item.
	Outcomes []types.ItemOutcome
}

// Rows returns the total number of canonical rows.
func (r *Result) Rows() int {
	n := 0
	for _, t := range r.Tables {
		n += t.Len()
	}
	return n
}

// plannedItem is an item with its normalizer and account resolved.
type plannedItem struct {
	index      int
	item       Item
	provider   string
	account    string
	normalizer normalizer.Normalizer
}

// Process normalizes every item in order.
//
// PARAMETERS:
//   - ctx: Checked between items. Cancelling stops the batch.
//   - items: The batch, in submission order.
//
// RETURNS:
//   - The tables and outcomes. On failure the outcomes cover the items that
//     were attempted.
//   - An *ItemError for the first failing item, or the context error.
func (b *Builder) Process(ctx context.Context, items []Item) (*Result, error) {
	result := &Result{}

	// =========================================================================
	// STEP 1: RESOLVE PROVIDERS AND ACCOUNTS
	// =========================================================================

	plan, err := b.plan(items)
	if err != nil {
		var ie *ItemError
		if errors.As(err, &ie) {
			result.Outcomes = append(result.Outcomes, types.ItemOutcome{
				Index: ie.Index, Path: ie.Path, Provider: ie.Provider, Err: err,
			})
		}
		return result, err
	}

	// =========================================================================
	// STEP 2: NORMALIZE IN ORDER
	// =========================================================================

	for _, p := range plan {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("batch cancelled before item %d: %w", p.index+1, err)
		}

		t, outcome, err := b.run(ctx, p, len(plan))
		result.Outcomes = append(result.Outcomes, outcome)
		if err != nil {
			return result, err
		}
		result.Tables = append(result.Tables, t)
	}

	b.log.Info("batch normalized", "items", len(plan), "rows", result.Rows())
	return result, nil
}

// run normalizes one planned item and reports it.
func (b *Builder) run(ctx context.Context, p plannedItem, total int) (*table.Table, types.ItemOutcome, error) {
	log := b.log.With("item", p.index+1, "path", p.item.Path, "provider", p.provider)
	log.Debug("normalizing")

	start := time.Now()
	t, err := p.normalizer.Normalize(ctx, normalizer.Input{
		Path:     p.item.Path,
		Provider: p.provider,
		Account:  p.account,
	})
	if err == nil && (t == nil || t.IsEmpty()) {
		err = &ItemError{Index: p.index, Path: p.item.Path, Provider: p.provider, Stage: StageResult, Err: ErrEmptyResult}
	} else if err != nil {
		err = b.itemError(p, err)
	}

	outcome := types.ItemOutcome{
		Index:    p.index,
		Path:     p.item.Path,
		Provider: p.provider,
		Duration: time.Since(start),
		Err:      err,
	}
	if err == nil {
		outcome.Rows = t.Len()
		log.Info("normalized", "rows", outcome.Rows, "duration", outcome.Duration)
	} else {
		log.Error("item failed", "error", err)
	}

	b.metrics.ObserveItem(p.provider, outcome.Rows, outcome.Duration, err)
	if b.onProgress != nil {
		b.onProgress(Progress{Index: p.index, Total: total, Outcome: outcome})
	}
	return t, outcome, err
}

// itemError wraps a normalizer failure, taking the stage from a StageError.
func (b *Builder) itemError(p plannedItem, err error) error {
	stage := StageNormalize
	var se *normalizer.StageError
	if errors.As(err, &se) {
		stage = se.Stage
	}
	return &ItemError{Index: p.index, Path: p.item.Path, Provider: p.provider, Stage: stage, Err: err}
}

// plan resolves the normalizer and account of every item up front.
func (b *Builder) plan(items []Item) ([]plannedItem, error) {
	plan := make([]plannedItem, 0, len(items))
	var kellerAccount string
	kellerResolved := false

	for i, item := range items {
		tag := strings.ToLower(strings.TrimSpace(item.Provider))
		p := plannedItem{index: i, item: item, provider: tag}

		n, ok := b.normalizers[tag]
		if !ok {
			return nil, &ItemError{Index: i, Path: item.Path, Provider: tag, Stage: StageDispatch, Err: b.unknownProvider(tag)}
		}
		p.normalizer = n

		switch {
		case tag == normalizer.Keller:
			if !kellerResolved {
				id, err := b.accounts.Lookup(normalizer.Keller, b.kellerLabel)
				if err != nil {
					return nil, &ItemError{Index: i, Path: item.Path, Provider: tag, Stage: StageAccount, Err: err}
				}
				kellerAccount, kellerResolved = id, true
			}
			p.account = kellerAccount
		case strings.TrimSpace(item.Account) == "":
			return nil, &ItemError{Index: i, Path: item.Path, Provider: tag, Stage: StageAccount, Err: ErrMissingAccount}
		default:
			p.account = b.accounts.Resolve(tag, strings.TrimSpace(item.Account))
		}

		plan = append(plan, p)
	}
	return plan, nil
}

// unknownProvider builds ErrUnknownProvider with the closest registered tag.
func (b *Builder) unknownProvider(tag string) error {
	if suggestion := Suggest(tag, b.Providers()); suggestion != "" {
		return fmt.Errorf("%w %q (did you mean %q?)", ErrUnknownProvider, tag, suggestion)
	}
	return fmt.Errorf("%w %q (known: %s)", ErrUnknownProvider, tag, strings.Join(b.Providers(), ", "))
}

// Providers returns the registered tags, sorted.
func (b *Builder) Providers() []string {
	tags := make([]string, 0, len(b.normalizers))
	for tag := range b.normalizers {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// maxSuggestDistance is the largest edit distance offered as a suggestion.
const maxSuggestDistance = 3

// Suggest returns the candidate closest to input, or "" if none is close.
// A candidate that contains input as a subsequence wins over edit distance.
func Suggest(input string, candidates []string) string {
	if input == "" {
		return ""
	}
	if ranks := fuzzy.RankFindNormalizedFold(input, candidates); len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}

	best, bestDistance := "", maxSuggestDistance+1
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(strings.ToLower(input), c); d < bestDistance {
			best, bestDistance = c, d
		}
	}
	return best
}
