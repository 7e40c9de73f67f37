package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/SyedAaraiz0050/territory-intel/internal/model"
)

// ErrNotFound is returned when an operation references an unknown business
// ID. This is an integration error and is surfaced, never swallowed.
var ErrNotFound = eris.New("store: record not found")

// Counts summarizes store state for the status command.
type Counts struct {
	Records        int `json:"records"`
	PendingExtract int `json:"pending_extraction"`
	StaleClassify  int `json:"stale_classification"`
	Enriched       int `json:"enriched"`
	CachedHashes   int `json:"cached_fingerprints"`
}

// Store is the durable territory memory: one table of business records keyed
// by place ID plus the content-addressed classification cache. All mutations
// are atomic per record; independent records may be written concurrently.
type Store interface {
	// UpsertIdentity merges discovery output into the record with the given
	// ID, creating it on first sight. Non-nil fields overwrite, nil fields
	// are retained (partial-update semantics). first_seen is set once;
	// last_seen is bumped on every call.
	UpsertIdentity(ctx context.Context, id string, identity model.Identity, loc model.Location, sig model.OperationalSignals) (*model.UpsertResult, error)

	// RecordWebsiteContent fingerprints rawText and stores the fingerprint.
	// Returns changed=false (touching nothing else) when the fingerprint
	// matches the stored one, so unchanged content never triggers
	// downstream reclassification. Unknown ID yields ErrNotFound.
	RecordWebsiteContent(ctx context.Context, id, rawText string) (changed bool, err error)

	// RecordClassification writes the classification and the content hash
	// that produced it in one atomic update. If contentHash no longer
	// matches the record's current website hash (the content changed while
	// the classifier ran), the stale result is discarded and accepted=false
	// is returned; the record stays stale and is retried next run.
	RecordClassification(ctx context.Context, id, contentHash string, cls model.Classification) (accepted bool, err error)

	// UpdateScore persists the derived total score. Never authoritative:
	// always recomputable from the record's other fields.
	UpdateScore(ctx context.Context, id string, total float64) error

	GetRecord(ctx context.Context, id string) (*model.BusinessRecord, error)

	// QueryReadyForExtraction lists IDs with a known website URL and no
	// extracted content yet, oldest first_seen first.
	QueryReadyForExtraction(ctx context.Context, limit int) ([]string, error)

	// QueryReadyForClassification lists IDs with extracted content whose
	// classification is missing or stale, oldest first_seen first.
	QueryReadyForClassification(ctx context.Context, limit int) ([]string, error)

	// AllEnriched returns every record with a non-nil classification.
	// Re-querying re-executes; this is not a single-use cursor.
	AllEnriched(ctx context.Context) ([]model.BusinessRecord, error)

	Counts(ctx context.Context) (*Counts, error)

	// Classification cache, keyed by content fingerprint rather than
	// business ID so identical homepages share one paid classifier call.
	// Get returns (nil, nil) on a miss. Unbounded in v1; callers only see
	// get/put so an eviction policy can be added behind the interface.
	GetCachedClassification(ctx context.Context, contentHash string) (*model.Classification, error)
	PutCachedClassification(ctx context.Context, contentHash string, cls model.Classification) error

	// Run journal.
	StartRun(ctx context.Context, kind string) (string, error)
	FinishRun(ctx context.Context, runID string, summary any) error

	Migrate(ctx context.Context) error
	Close() error
}
