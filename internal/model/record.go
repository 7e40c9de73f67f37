package model

import "time"

// BusinessRecord is one row per physical business, keyed by the external
// place ID. The store never deletes records; the table is the territory's
// long-term memory and rows are only ever merged into.
type BusinessRecord struct {
	ID       string             `json:"id"`
	Identity Identity           `json:"identity"`
	Location Location           `json:"location"`
	Signals  OperationalSignals `json:"signals"`

	// WebsiteContentHash is the fingerprint of the last successfully
	// extracted homepage text; nil if never extracted.
	WebsiteContentHash *string `json:"website_content_hash,omitempty"`

	// Classification is nil until the first successful classification.
	// ClassificationContentHash is the website hash that produced it;
	// the two are always set together.
	Classification            *Classification `json:"classification,omitempty"`
	ClassificationContentHash *string         `json:"classification_content_hash,omitempty"`

	// TotalScore is derived and always recomputable from the other fields.
	TotalScore *float64 `json:"total_score,omitempty"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Identity holds the who/where fields from discovery. Set once on first
// sight; later discovery touches may fill gaps or correct values but a nil
// field never erases a stored one.
type Identity struct {
	Name           *string `json:"name,omitempty"`
	Address        *string `json:"address,omitempty"`
	Phone          *string `json:"phone,omitempty"`
	Website        *string `json:"website,omitempty"`
	Category       *string `json:"category,omitempty"`
	MapsURL        *string `json:"maps_url,omitempty"`
	BusinessStatus *string `json:"business_status,omitempty"`
}

// Location is the geographic placement of the business.
type Location struct {
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`
	Territory *string  `json:"territory,omitempty"`
}

// OperationalSignals are the mutable reputation fields, refreshed
// opportunistically on every discovery touch.
type OperationalSignals struct {
	Rating      *float64 `json:"rating,omitempty"`
	ReviewCount *int     `json:"review_count,omitempty"`
	// Hours is the raw published-hours JSON from the discovery source.
	// Presence is what matters for scoring; the payload is kept verbatim.
	Hours *string `json:"hours,omitempty"`
}

// HasWebsite reports whether a website URL is known.
func (r *BusinessRecord) HasWebsite() bool {
	return r.Identity.Website != nil && *r.Identity.Website != ""
}

// HasHours reports whether published opening hours are known.
func (r *BusinessRecord) HasHours() bool {
	return r.Signals.Hours != nil && *r.Signals.Hours != ""
}

// StaleForClassification reports whether the stored classification no longer
// matches the current website content (including either side being unset).
func (r *BusinessRecord) StaleForClassification() bool {
	switch {
	case r.WebsiteContentHash == nil && r.ClassificationContentHash == nil:
		return false
	case r.WebsiteContentHash == nil || r.ClassificationContentHash == nil:
		return true
	default:
		return *r.WebsiteContentHash != *r.ClassificationContentHash
	}
}

// UpsertResult reports what an identity upsert did.
type UpsertResult struct {
	Created       bool     `json:"created"`
	ChangedFields []string `json:"changed_fields,omitempty"`
}
