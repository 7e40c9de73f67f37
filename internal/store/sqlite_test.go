package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SyedAaraiz0050/territory-intel/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func strPtr(s string) *string { return &s }
func fPtr(f float64) *float64 { return &f }
func iPtr(i int) *int         { return &i }

func seedBusiness(t *testing.T, st *SQLiteStore, id string) {
	t.Helper()
	_, err := st.UpsertIdentity(context.Background(), id,
		model.Identity{
			Name:    strPtr("Avalon Plumbing"),
			Address: strPtr("12 Water St, St. John's"),
			Website: strPtr("https://avalonplumbing.example"),
		},
		model.Location{Lat: fPtr(47.56), Lng: fPtr(-52.71)},
		model.OperationalSignals{},
	)
	require.NoError(t, err)
}

func testClassification() model.Classification {
	return model.Classification{
		IndustryBucket:  "Trades",
		MobilityFit:     5,
		SecurityFit:     2,
		VoIPFit:         3,
		FleetAttach:     true,
		SignalDispatch:  true,
		SignalFieldWork: true,
		Rationale:       "Field crews with dispatch needs.",
	}
}

// --- Upsert ---

func TestSQLite_Upsert_CreatesOnFirstSight(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	res, err := st.UpsertIdentity(ctx, "place-1",
		model.Identity{Name: strPtr("Avalon Plumbing")},
		model.Location{}, model.OperationalSignals{})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Contains(t, res.ChangedFields, "name")

	rec, err := st.GetRecord(ctx, "place-1")
	require.NoError(t, err)
	assert.Equal(t, "Avalon Plumbing", *rec.Identity.Name)
	assert.False(t, rec.FirstSeen.IsZero())
	assert.False(t, rec.LastSeen.Before(rec.FirstSeen))
}

func TestSQLite_Upsert_IdenticalInputIsIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	identity := model.Identity{Name: strPtr("Avalon Plumbing"), Phone: strPtr("+1 709 555 0101")}
	loc := model.Location{Lat: fPtr(47.56), Lng: fPtr(-52.71)}
	sig := model.OperationalSignals{Rating: fPtr(4.5), ReviewCount: iPtr(37)}

	first, err := st.UpsertIdentity(ctx, "place-1", identity, loc, sig)
	require.NoError(t, err)
	assert.True(t, first.Created)

	second, err := st.UpsertIdentity(ctx, "place-1", identity, loc, sig)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Empty(t, second.ChangedFields)
}

func TestSQLite_Upsert_NilFieldsNeverErase(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.UpsertIdentity(ctx, "place-1",
		model.Identity{Name: strPtr("Avalon Plumbing")},
		model.Location{},
		model.OperationalSignals{Rating: fPtr(4.5), ReviewCount: iPtr(37)})
	require.NoError(t, err)

	// A later touch with no signals must not erase the stored ones.
	res, err := st.UpsertIdentity(ctx, "place-1",
		model.Identity{Phone: strPtr("+1 709 555 0101")},
		model.Location{}, model.OperationalSignals{})
	require.NoError(t, err)
	assert.Equal(t, []string{"phone"}, res.ChangedFields)

	rec, err := st.GetRecord(ctx, "place-1")
	require.NoError(t, err)
	assert.Equal(t, 4.5, *rec.Signals.Rating)
	assert.Equal(t, 37, *rec.Signals.ReviewCount)
	assert.Equal(t, "Avalon Plumbing", *rec.Identity.Name)
	assert.Equal(t, "+1 709 555 0101", *rec.Identity.Phone)
}

func TestSQLite_Upsert_EmptyIDRejected(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.UpsertIdentity(context.Background(), "",
		model.Identity{}, model.Location{}, model.OperationalSignals{})
	assert.Error(t, err)
}

// --- Website content ---

func TestSQLite_RecordWebsiteContent_ChangeDetection(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedBusiness(t, st, "place-1")

	changed, err := st.RecordWebsiteContent(ctx, "place-1", "We fix pipes across the Avalon.")
	require.NoError(t, err)
	assert.True(t, changed)

	rec, err := st.GetRecord(ctx, "place-1")
	require.NoError(t, err)
	require.NotNil(t, rec.WebsiteContentHash)
	firstHash := *rec.WebsiteContentHash

	// Same text again: unchanged, hash untouched.
	changed, err = st.RecordWebsiteContent(ctx, "place-1", "We fix pipes across the Avalon.")
	require.NoError(t, err)
	assert.False(t, changed)

	rec, err = st.GetRecord(ctx, "place-1")
	require.NoError(t, err)
	assert.Equal(t, firstHash, *rec.WebsiteContentHash)

	// Different text: changed, hash replaced.
	changed, err = st.RecordWebsiteContent(ctx, "place-1", "Now also doing heat pumps.")
	require.NoError(t, err)
	assert.True(t, changed)

	rec, err = st.GetRecord(ctx, "place-1")
	require.NoError(t, err)
	assert.NotEqual(t, firstHash, *rec.WebsiteContentHash)
}

func TestSQLite_RecordWebsiteContent_UnknownID(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.RecordWebsiteContent(context.Background(), "ghost", "text")
	assert.ErrorIs(t, err, ErrNotFound)
}

// --- Classification ---

func TestSQLite_RecordClassification_HappyPath(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedBusiness(t, st, "place-1")

	_, err := st.RecordWebsiteContent(ctx, "place-1", "We fix pipes.")
	require.NoError(t, err)

	rec, err := st.GetRecord(ctx, "place-1")
	require.NoError(t, err)
	assert.True(t, rec.StaleForClassification())

	accepted, err := st.RecordClassification(ctx, "place-1", *rec.WebsiteContentHash, testClassification())
	require.NoError(t, err)
	assert.True(t, accepted)

	rec, err = st.GetRecord(ctx, "place-1")
	require.NoError(t, err)
	require.NotNil(t, rec.Classification)
	assert.Equal(t, "Trades", rec.Classification.IndustryBucket)
	assert.Equal(t, *rec.WebsiteContentHash, *rec.ClassificationContentHash)
	assert.False(t, rec.StaleForClassification())
}

func TestSQLite_RecordClassification_StaleWriteRejected(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedBusiness(t, st, "place-1")

	_, err := st.RecordWebsiteContent(ctx, "place-1", "Old homepage.")
	require.NoError(t, err)
	rec, err := st.GetRecord(ctx, "place-1")
	require.NoError(t, err)
	oldHash := *rec.WebsiteContentHash

	// Content changes while the classifier is running.
	_, err = st.RecordWebsiteContent(ctx, "place-1", "Brand new homepage.")
	require.NoError(t, err)

	accepted, err := st.RecordClassification(ctx, "place-1", oldHash, testClassification())
	require.NoError(t, err)
	assert.False(t, accepted)

	rec, err = st.GetRecord(ctx, "place-1")
	require.NoError(t, err)
	assert.Nil(t, rec.Classification)
	assert.True(t, rec.StaleForClassification())
}

// --- Queries ---

func TestSQLite_QueryReadyForExtraction(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// a: has website, no content. b: no website. c: website and content.
	seedBusiness(t, st, "place-a")
	_, err := st.UpsertIdentity(ctx, "place-b",
		model.Identity{Name: strPtr("No Website Ltd")},
		model.Location{}, model.OperationalSignals{})
	require.NoError(t, err)
	seedBusiness(t, st, "place-c")
	_, err = st.RecordWebsiteContent(ctx, "place-c", "content")
	require.NoError(t, err)

	ids, err := st.QueryReadyForExtraction(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"place-a"}, ids)
}

func TestSQLite_QueryReadyForClassification_OrderAndCap(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, id := range []string{"place-a", "place-b", "place-c"} {
		seedBusiness(t, st, id)
		_, err := st.RecordWebsiteContent(ctx, id, "homepage for "+id)
		require.NoError(t, err)
	}

	ids, err := st.QueryReadyForClassification(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"place-a", "place-b", "place-c"}, ids)

	capped, err := st.QueryReadyForClassification(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"place-a", "place-b"}, capped)

	// Classifying one removes it from the ready list.
	rec, err := st.GetRecord(ctx, "place-b")
	require.NoError(t, err)
	_, err = st.RecordClassification(ctx, "place-b", *rec.WebsiteContentHash, testClassification())
	require.NoError(t, err)

	ids, err = st.QueryReadyForClassification(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"place-a", "place-c"}, ids)
}

func TestSQLite_AllEnriched(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedBusiness(t, st, "place-a")
	seedBusiness(t, st, "place-b")
	_, err := st.RecordWebsiteContent(ctx, "place-a", "text")
	require.NoError(t, err)
	rec, err := st.GetRecord(ctx, "place-a")
	require.NoError(t, err)
	_, err = st.RecordClassification(ctx, "place-a", *rec.WebsiteContentHash, testClassification())
	require.NoError(t, err)

	enriched, err := st.AllEnriched(ctx)
	require.NoError(t, err)
	require.Len(t, enriched, 1)
	assert.Equal(t, "place-a", enriched[0].ID)
	require.NotNil(t, enriched[0].Classification)

	// Restartable: a second query re-executes.
	again, err := st.AllEnriched(ctx)
	require.NoError(t, err)
	assert.Len(t, again, 1)
}

// --- Score ---

func TestSQLite_UpdateScore(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedBusiness(t, st, "place-1")

	require.NoError(t, st.UpdateScore(ctx, "place-1", 72.5))

	rec, err := st.GetRecord(ctx, "place-1")
	require.NoError(t, err)
	require.NotNil(t, rec.TotalScore)
	assert.Equal(t, 72.5, *rec.TotalScore)

	assert.ErrorIs(t, st.UpdateScore(ctx, "ghost", 1.0), ErrNotFound)
}

// --- Classification cache ---

func TestSQLite_ClassificationCache_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	miss, err := st.GetCachedClassification(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, miss)

	cls := testClassification()
	require.NoError(t, st.PutCachedClassification(ctx, "hash-1", cls))

	got, err := st.GetCachedClassification(ctx, "hash-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, cls, *got)

	// Overwrite is allowed and replaces the value.
	cls.IndustryBucket = "Logistics"
	require.NoError(t, st.PutCachedClassification(ctx, "hash-1", cls))
	got, err = st.GetCachedClassification(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "Logistics", got.IndustryBucket)
}

// --- Counts ---

func TestSQLite_Counts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedBusiness(t, st, "place-a")
	seedBusiness(t, st, "place-b")
	_, err := st.RecordWebsiteContent(ctx, "place-a", "text")
	require.NoError(t, err)

	counts, err := st.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Records)
	assert.Equal(t, 1, counts.PendingExtract)
	assert.Equal(t, 1, counts.StaleClassify)
	assert.Equal(t, 0, counts.Enriched)
}

// --- Runs ---

func TestSQLite_RunJournal(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	runID, err := st.StartRun(ctx, "discover")
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	require.NoError(t, st.FinishRun(ctx, runID, map[string]int{"found": 3}))
}
