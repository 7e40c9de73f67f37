package enrich

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SyedAaraiz0050/territory-intel/internal/classify"
	"github.com/SyedAaraiz0050/territory-intel/internal/homepage"
	"github.com/SyedAaraiz0050/territory-intel/internal/model"
	"github.com/SyedAaraiz0050/territory-intel/internal/resilience"
	"github.com/SyedAaraiz0050/territory-intel/internal/store"
	"github.com/SyedAaraiz0050/territory-intel/pkg/anthropic"
)

// Options tunes one enrichment run.
type Options struct {
	// Budget is the maximum number of paid classifier calls. Cache hits are
	// free and do not count. Zero means no paid calls at all.
	Budget          int
	ExtractWorkers  int
	ClassifyWorkers int
	Retry           resilience.Policy
	// Model is the classifier model ID, used for cost attribution logging.
	Model string
}

// Summary tallies what one enrichment run did. Failures are isolated per
// record: every counter can be non-zero in the same run.
type Summary struct {
	Extracted        int64 `json:"extracted"`
	ContentUnchanged int64 `json:"content_unchanged"`
	ExtractFailed    int64 `json:"extract_failed"`

	Classified      int64 `json:"classified"`
	CacheHits       int64 `json:"cache_hits"`
	StaleRejected   int64 `json:"stale_rejected"`
	SchemaFailed    int64 `json:"schema_failed"`
	ClassifyFailed  int64 `json:"classify_failed"`
	BudgetExhausted int64 `json:"budget_exhausted"`
	Skipped         int64 `json:"skipped"`
}

// Runner executes enrichment work plans.
type Runner struct {
	store      store.Store
	fetcher    homepage.Fetcher
	classifier classify.Classifier
	opts       Options

	// paidCalls is the budget counter, incremented only when a real
	// classifier call is about to be made.
	paidCalls atomic.Int64

	usageMu sync.Mutex
	usage   anthropic.TokenUsage

	// textByHash carries extracted homepage text from the extraction phase
	// to the classification phase so most records need only one fetch.
	textByHash sync.Map
}

// NewRunner builds a Runner.
func NewRunner(st store.Store, f homepage.Fetcher, c classify.Classifier, opts Options) *Runner {
	if opts.ExtractWorkers <= 0 {
		opts.ExtractWorkers = 8
	}
	if opts.ClassifyWorkers <= 0 {
		opts.ClassifyWorkers = 4
	}
	return &Runner{store: st, fetcher: f, classifier: c, opts: opts}
}

// Run executes the plan: extraction first, then classification over the
// union of the plan's classification candidates and anything extraction just
// made eligible. Per-record failures are logged and counted, never fatal;
// only context cancellation or store-level failures abort the run.
func (r *Runner) Run(ctx context.Context, plan *WorkPlan) (*Summary, error) {
	sum := &Summary{}

	newlyEligible, err := r.extractPhase(ctx, plan.ToExtract, sum)
	if err != nil {
		return sum, err
	}

	candidates := dedupe(append(append([]string{}, plan.ToClassify...), newlyEligible...))
	if err := r.classifyPhase(ctx, candidates, sum); err != nil {
		return sum, err
	}

	r.usage.LogCost(r.opts.Model, "classification")
	zap.L().Info("enrichment run complete",
		zap.Int64("extracted", sum.Extracted),
		zap.Int64("content_unchanged", sum.ContentUnchanged),
		zap.Int64("extract_failed", sum.ExtractFailed),
		zap.Int64("classified", sum.Classified),
		zap.Int64("cache_hits", sum.CacheHits),
		zap.Int64("stale_rejected", sum.StaleRejected),
		zap.Int64("schema_failed", sum.SchemaFailed),
		zap.Int64("classify_failed", sum.ClassifyFailed),
		zap.Int64("budget_exhausted", sum.BudgetExhausted),
		zap.Int64("skipped", sum.Skipped),
	)
	return sum, nil
}

// Usage returns accumulated classifier token usage for the run.
func (r *Runner) Usage() anthropic.TokenUsage {
	r.usageMu.Lock()
	defer r.usageMu.Unlock()
	return r.usage
}

func (r *Runner) extractPhase(ctx context.Context, ids []string, sum *Summary) ([]string, error) {
	var mu sync.Mutex
	var eligible []string

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.ExtractWorkers)

	for _, id := range ids {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			rec, err := r.store.GetRecord(ctx, id)
			if err != nil {
				return err
			}
			if !rec.HasWebsite() {
				atomic.AddInt64(&sum.Skipped, 1)
				return nil
			}

			text, err := resilience.Retry(ctx, r.opts.Retry, "homepage fetch",
				func(ctx context.Context) (string, error) {
					return r.fetcher.FetchText(ctx, *rec.Identity.Website)
				})
			if err != nil {
				atomic.AddInt64(&sum.ExtractFailed, 1)
				zap.L().Warn("homepage extraction failed",
					zap.String("id", id),
					zap.String("website", *rec.Identity.Website),
					zap.Error(err),
				)
				return nil
			}

			changed, err := r.store.RecordWebsiteContent(ctx, id, text)
			if err != nil {
				return err
			}
			r.textByHash.Store(store.Fingerprint(text), text)
			if changed {
				atomic.AddInt64(&sum.Extracted, 1)
			} else {
				atomic.AddInt64(&sum.ContentUnchanged, 1)
			}

			mu.Lock()
			eligible = append(eligible, id)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return eligible, nil
}

func (r *Runner) classifyPhase(ctx context.Context, ids []string, sum *Summary) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.ClassifyWorkers)

	for _, id := range ids {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return r.classifyOne(ctx, id, sum)
		})
	}
	return g.Wait()
}

func (r *Runner) classifyOne(ctx context.Context, id string, sum *Summary) error {
	rec, err := r.store.GetRecord(ctx, id)
	if err != nil {
		return err
	}
	if rec.WebsiteContentHash == nil || !rec.StaleForClassification() {
		atomic.AddInt64(&sum.Skipped, 1)
		return nil
	}
	hash := *rec.WebsiteContentHash

	// Cache first: an identical homepage elsewhere already paid for this.
	cached, err := r.store.GetCachedClassification(ctx, hash)
	if err != nil {
		return err
	}
	if cached != nil {
		accepted, err := r.store.RecordClassification(ctx, id, hash, *cached)
		if err != nil {
			return err
		}
		if accepted {
			atomic.AddInt64(&sum.CacheHits, 1)
		} else {
			atomic.AddInt64(&sum.StaleRejected, 1)
		}
		return nil
	}

	text, hash, ok := r.homepageText(ctx, rec, hash)
	if !ok {
		atomic.AddInt64(&sum.ClassifyFailed, 1)
		return nil
	}

	if n := r.paidCalls.Add(1); int(n) > r.opts.Budget {
		r.paidCalls.Add(-1)
		atomic.AddInt64(&sum.BudgetExhausted, 1)
		return nil
	}

	in := classify.Input{
		Name:         deref(rec.Identity.Name),
		Address:      deref(rec.Identity.Address),
		Category:     deref(rec.Identity.Category),
		Website:      deref(rec.Identity.Website),
		HomepageText: text,
	}
	cls, usage, err := r.classifyWithRetry(ctx, in)
	r.usageMu.Lock()
	r.usage.Add(usage)
	r.usageMu.Unlock()
	if err != nil {
		var sve *classify.SchemaViolationError
		if errors.As(err, &sve) {
			atomic.AddInt64(&sum.SchemaFailed, 1)
			zap.L().Warn("classifier output rejected",
				zap.String("id", id),
				zap.Error(err),
			)
		} else {
			atomic.AddInt64(&sum.ClassifyFailed, 1)
			zap.L().Warn("classification failed",
				zap.String("id", id),
				zap.Error(err),
			)
		}
		return nil
	}

	if err := r.store.PutCachedClassification(ctx, hash, *cls); err != nil {
		return err
	}
	accepted, err := r.store.RecordClassification(ctx, id, hash, *cls)
	if err != nil {
		return err
	}
	if accepted {
		atomic.AddInt64(&sum.Classified, 1)
	} else {
		atomic.AddInt64(&sum.StaleRejected, 1)
	}
	return nil
}

// homepageText returns the text for the record's content hash, re-fetching
// when the extraction phase did not run for this record. A re-fetch that
// hashes differently updates the stored hash and returns the fresh pair so
// the classification write matches what the store now holds.
func (r *Runner) homepageText(ctx context.Context, rec *model.BusinessRecord, hash string) (string, string, bool) {
	if v, ok := r.textByHash.Load(hash); ok {
		return v.(string), hash, true
	}
	if !rec.HasWebsite() {
		return "", "", false
	}

	text, err := resilience.Retry(ctx, r.opts.Retry, "homepage fetch",
		func(ctx context.Context) (string, error) {
			return r.fetcher.FetchText(ctx, *rec.Identity.Website)
		})
	if err != nil {
		zap.L().Warn("homepage re-fetch failed",
			zap.String("id", rec.ID),
			zap.Error(err),
		)
		return "", "", false
	}

	if _, err := r.store.RecordWebsiteContent(ctx, rec.ID, text); err != nil {
		zap.L().Warn("recording re-fetched content failed",
			zap.String("id", rec.ID),
			zap.Error(err),
		)
		return "", "", false
	}
	fresh := store.Fingerprint(text)
	r.textByHash.Store(fresh, text)
	return text, fresh, true
}

func (r *Runner) classifyWithRetry(ctx context.Context, in classify.Input) (*model.Classification, anthropic.TokenUsage, error) {
	type out struct {
		cls   *model.Classification
		usage anthropic.TokenUsage
	}
	res, err := resilience.Retry(ctx, r.opts.Retry, "classify",
		func(ctx context.Context) (out, error) {
			cls, usage, err := r.classifier.Classify(ctx, in)
			return out{cls: cls, usage: usage}, err
		})
	return res.cls, res.usage, err
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
