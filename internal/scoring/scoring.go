// Package scoring computes the call-priority score for enriched business
// records and orders them deterministically for export.
package scoring

import (
	"math"
	"sort"

	"github.com/SyedAaraiz0050/territory-intel/internal/config"
	"github.com/SyedAaraiz0050/territory-intel/internal/model"
)

// Engine scores records with a fixed weight set. Scoring is pure: same
// record in, same score out, no side effects.
type Engine struct {
	w config.ScoringConfig
}

// New builds an Engine. The weights are assumed validated (strict
// mobility > security > voip > fleet ordering) by config.Validate.
func New(w config.ScoringConfig) *Engine {
	return &Engine{w: w}
}

// Score computes the weighted total for one record. Records without a
// classification are not call-ready and have no score: ok is false and the
// value is meaningless, not zero.
func (e *Engine) Score(rec *model.BusinessRecord) (float64, bool) {
	cls := rec.Classification
	if cls == nil {
		return 0, false
	}

	total := e.w.WeightMobility*float64(cls.MobilityFit) +
		e.w.WeightSecurity*float64(cls.SecurityFit) +
		e.w.WeightVoIP*float64(cls.VoIPFit) +
		e.w.WeightFleet*boolTerm(cls.FleetAttach) +
		e.w.WeightRating*ratingTerm(rec.Signals.Rating) +
		e.w.WeightReviews*logScale(rec.Signals.ReviewCount, e.w.ReviewCap) +
		e.w.WeightWebsite*boolTerm(rec.HasWebsite()) +
		e.w.WeightHours*boolTerm(rec.HasHours())

	return total, true
}

// Rank sorts records for export: total_score descending, ties broken by
// review_count descending, then id ascending. Unclassified records are
// dropped. The returned slice carries the computed scores; the input is not
// modified.
func (e *Engine) Rank(records []model.BusinessRecord) []model.BusinessRecord {
	out := make([]model.BusinessRecord, 0, len(records))
	for _, rec := range records {
		total, ok := e.Score(&rec)
		if !ok {
			continue
		}
		rec.TotalScore = &total
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		si, sj := *out[i].TotalScore, *out[j].TotalScore
		if si != sj {
			return si > sj
		}
		ri, rj := reviewCount(&out[i]), reviewCount(&out[j])
		if ri != rj {
			return ri > rj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ratingTerm normalizes a 0-5 star rating to 0..1. Unknown ratings
// contribute nothing.
func ratingTerm(rating *float64) float64 {
	if rating == nil {
		return 0
	}
	r := *rating / 5.0
	return math.Max(0, math.Min(r, 1))
}

// logScale maps a review count to 0..1 monotonically, saturating at cap so a
// single outlier cannot dominate the sum.
func logScale(reviewCount *int, cap int) float64 {
	if reviewCount == nil || *reviewCount <= 0 {
		return 0
	}
	if cap <= 0 {
		cap = 500
	}
	v := math.Log1p(float64(*reviewCount)) / math.Log1p(float64(cap))
	return math.Min(v, 1)
}

func boolTerm(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func reviewCount(rec *model.BusinessRecord) int {
	if rec.Signals.ReviewCount == nil {
		return 0
	}
	return *rec.Signals.ReviewCount
}
