package store

import "github.com/SyedAaraiz0050/territory-intel/internal/model"

// mergeField applies the field-wise merge rule shared by every backend:
// a supplied (non-nil) value overwrites, an absent (nil) value retains what
// is stored. Records the field name when the stored value actually changes.
func mergeField[T comparable](name string, dst **T, src *T, changed *[]string) {
	if src == nil {
		return
	}
	if *dst != nil && **dst == *src {
		return
	}
	v := *src
	*dst = &v
	*changed = append(*changed, name)
}

// mergeRecord merges a discovery touch into an existing record and returns
// the names of fields whose stored value changed. The merge rule lives here,
// once, rather than in each caller.
func mergeRecord(rec *model.BusinessRecord, identity model.Identity, loc model.Location, sig model.OperationalSignals) []string {
	var changed []string

	mergeField("name", &rec.Identity.Name, identity.Name, &changed)
	mergeField("address", &rec.Identity.Address, identity.Address, &changed)
	mergeField("phone", &rec.Identity.Phone, identity.Phone, &changed)
	mergeField("website", &rec.Identity.Website, identity.Website, &changed)
	mergeField("category", &rec.Identity.Category, identity.Category, &changed)
	mergeField("maps_url", &rec.Identity.MapsURL, identity.MapsURL, &changed)
	mergeField("business_status", &rec.Identity.BusinessStatus, identity.BusinessStatus, &changed)

	mergeField("lat", &rec.Location.Lat, loc.Lat, &changed)
	mergeField("lng", &rec.Location.Lng, loc.Lng, &changed)
	mergeField("territory", &rec.Location.Territory, loc.Territory, &changed)

	mergeField("rating", &rec.Signals.Rating, sig.Rating, &changed)
	mergeField("review_count", &rec.Signals.ReviewCount, sig.ReviewCount, &changed)
	mergeField("hours", &rec.Signals.Hours, sig.Hours, &changed)

	return changed
}
