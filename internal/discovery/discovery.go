// Package discovery walks a territory's keyword x city search matrix against
// the Places API and merges everything it finds into the record store.
package discovery

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/SyedAaraiz0050/territory-intel/internal/model"
	"github.com/SyedAaraiz0050/territory-intel/internal/resilience"
	"github.com/SyedAaraiz0050/territory-intel/internal/store"
	"github.com/SyedAaraiz0050/territory-intel/internal/territory"
	"github.com/SyedAaraiz0050/territory-intel/pkg/places"
)

// Options tunes one discovery run.
type Options struct {
	// MaxPages bounds pagination per text-search query.
	MaxPages int
	// RatePerSec throttles Places API calls across the whole run.
	RatePerSec float64
	// DetailsWorkers bounds concurrent details lookups.
	DetailsWorkers int
	Retry          resilience.Policy
}

// Summary tallies what one discovery run did.
type Summary struct {
	Queries        int   `json:"queries"`
	SearchFailed   int   `json:"search_failed"`
	Found          int   `json:"found"`
	Created        int64 `json:"created"`
	Updated        int64 `json:"updated"`
	DetailsFetched int64 `json:"details_fetched"`
	DetailsFailed  int64 `json:"details_failed"`
}

// Runner executes discovery for one territory.
type Runner struct {
	store   store.Store
	places  places.Client
	terr    *territory.Territory
	limiter *rate.Limiter
	opts    Options
}

// NewRunner builds a Runner.
func NewRunner(st store.Store, pc places.Client, terr *territory.Territory, opts Options) *Runner {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 3
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 5
	}
	if opts.DetailsWorkers <= 0 {
		opts.DetailsWorkers = 4
	}
	return &Runner{
		store:   st,
		places:  pc,
		terr:    terr,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), 1),
		opts:    opts,
	}
}

// Run walks every query in the territory matrix. A failed query is logged
// and skipped; the Places API returning duplicates across queries or pages
// is absorbed by the store's upsert. After the search sweep, records still
// missing call-ready identity fields get a details lookup.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{}
	bias := &places.Rectangle{
		LowLat:  r.terr.Bounds.MinLat,
		LowLng:  r.terr.Bounds.MinLng,
		HighLat: r.terr.Bounds.MaxLat,
		HighLng: r.terr.Bounds.MaxLng,
	}

	var needDetails []string
	seen := make(map[string]struct{})

	for _, query := range r.terr.Queries() {
		if err := r.limiter.Wait(ctx); err != nil {
			return sum, err
		}
		sum.Queries++

		results, err := resilience.Retry(ctx, r.opts.Retry, "places text search",
			func(ctx context.Context) ([]places.Summary, error) {
				return r.places.TextSearch(ctx, query, bias, r.opts.MaxPages)
			})
		if err != nil {
			sum.SearchFailed++
			zap.L().Warn("text search failed",
				zap.String("query", query),
				zap.Error(err),
			)
			continue
		}
		sum.Found += len(results)

		for _, p := range results {
			if p.ID == "" {
				continue
			}
			res, err := r.upsertSummary(ctx, p)
			if err != nil {
				return sum, err
			}
			if res.Created {
				sum.Created++
			} else {
				sum.Updated++
			}

			if _, dup := seen[p.ID]; !dup {
				seen[p.ID] = struct{}{}
				needDetails = append(needDetails, p.ID)
			}
		}
	}

	if err := r.detailsPass(ctx, needDetails, sum); err != nil {
		return sum, err
	}

	zap.L().Info("discovery run complete",
		zap.String("territory", r.terr.Name),
		zap.Int("queries", sum.Queries),
		zap.Int("search_failed", sum.SearchFailed),
		zap.Int("found", sum.Found),
		zap.Int64("created", sum.Created),
		zap.Int64("updated", sum.Updated),
		zap.Int64("details_fetched", sum.DetailsFetched),
		zap.Int64("details_failed", sum.DetailsFailed),
	)
	return sum, nil
}

func (r *Runner) upsertSummary(ctx context.Context, p places.Summary) (*model.UpsertResult, error) {
	identity := model.Identity{
		Name:           optStr(p.Name),
		Address:        optStr(p.Address),
		Category:       p.PrimaryType,
		BusinessStatus: p.BusinessStatus,
	}
	loc := model.Location{Lat: p.Lat, Lng: p.Lng}
	if r.inTerritory(p.Lat, p.Lng) {
		loc.Territory = &r.terr.Name
	}
	return r.store.UpsertIdentity(ctx, p.ID, identity, loc, model.OperationalSignals{})
}

// detailsPass fetches the call-ready fields (phone, website, rating, hours)
// for records the search sweep left incomplete.
func (r *Runner) detailsPass(ctx context.Context, ids []string, sum *Summary) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.DetailsWorkers)

	for _, id := range ids {
		g.Go(func() error {
			rec, err := r.store.GetRecord(ctx, id)
			if err != nil {
				return err
			}
			if !needsDetails(rec) {
				return nil
			}

			if err := r.limiter.Wait(ctx); err != nil {
				return err
			}
			det, err := resilience.Retry(ctx, r.opts.Retry, "places details",
				func(ctx context.Context) (*places.Details, error) {
					return r.places.Details(ctx, id)
				})
			if err != nil {
				zap.L().Warn("details lookup failed",
					zap.String("id", id),
					zap.Error(err),
				)
				atomic.AddInt64(&sum.DetailsFailed, 1)
				return nil
			}

			identity := model.Identity{
				Phone:          det.Phone,
				Website:        det.Website,
				MapsURL:        det.MapsURL,
				BusinessStatus: det.BusinessStatus,
			}
			sig := model.OperationalSignals{
				Rating:      det.Rating,
				ReviewCount: det.ReviewCount,
				Hours:       det.HoursJSON,
			}
			if _, err := r.store.UpsertIdentity(ctx, id, identity, model.Location{}, sig); err != nil {
				return err
			}
			atomic.AddInt64(&sum.DetailsFetched, 1)
			return nil
		})
	}
	return g.Wait()
}

// needsDetails reports whether a record is missing fields only the details
// endpoint provides.
func needsDetails(rec *model.BusinessRecord) bool {
	return rec.Identity.Phone == nil ||
		rec.Identity.Website == nil ||
		rec.Identity.MapsURL == nil
}

func (r *Runner) inTerritory(lat, lng *float64) bool {
	if lat == nil || lng == nil {
		return false
	}
	return r.terr.Contains(*lat, *lng)
}

func optStr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
