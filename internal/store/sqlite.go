package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/SyedAaraiz0050/territory-intel/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. This is the default
// backend: a territory fits comfortably in a single WAL-mode file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS businesses (
	id                          TEXT PRIMARY KEY,
	name                        TEXT,
	address                     TEXT,
	phone                       TEXT,
	website                     TEXT,
	category                    TEXT,
	maps_url                    TEXT,
	business_status             TEXT,
	lat                         REAL,
	lng                         REAL,
	territory                   TEXT,
	rating                      REAL,
	review_count                INTEGER,
	hours_json                  TEXT,
	website_content_hash        TEXT,
	classification_json         TEXT,
	classification_content_hash TEXT,
	total_score                 REAL,
	first_seen                  DATETIME NOT NULL,
	last_seen                   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS classification_cache (
	content_hash        TEXT PRIMARY KEY,
	classification_json TEXT NOT NULL,
	created_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	summary     TEXT,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_businesses_first_seen ON businesses(first_seen);
CREATE INDEX IF NOT EXISTS idx_businesses_website ON businesses(website);
CREATE INDEX IF NOT EXISTS idx_businesses_territory ON businesses(territory);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const businessColumns = `id, name, address, phone, website, category, maps_url, business_status,
	lat, lng, territory, rating, review_count, hours_json,
	website_content_hash, classification_json, classification_content_hash,
	total_score, first_seen, last_seen`

func (s *SQLiteStore) UpsertIdentity(ctx context.Context, id string, identity model.Identity, loc model.Location, sig model.OperationalSignals) (*model.UpsertResult, error) {
	if id == "" {
		return nil, eris.New("sqlite: upsert with empty id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()

	rec, err := scanBusiness(tx.QueryRowContext(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE id = ?`, id))
	if err != nil && !eris.Is(err, ErrNotFound) {
		return nil, err
	}

	created := rec == nil
	if created {
		rec = &model.BusinessRecord{ID: id, FirstSeen: now}
	}
	changed := mergeRecord(rec, identity, loc, sig)
	rec.LastSeen = now

	if created {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO businesses (
				id, name, address, phone, website, category, maps_url, business_status,
				lat, lng, territory, rating, review_count, hours_json,
				first_seen, last_seen
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.Identity.Name, rec.Identity.Address, rec.Identity.Phone,
			rec.Identity.Website, rec.Identity.Category, rec.Identity.MapsURL,
			rec.Identity.BusinessStatus, rec.Location.Lat, rec.Location.Lng,
			rec.Location.Territory, rec.Signals.Rating, rec.Signals.ReviewCount,
			rec.Signals.Hours, rec.FirstSeen, rec.LastSeen,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert business %s", id)
		}
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE businesses SET
				name = ?, address = ?, phone = ?, website = ?, category = ?,
				maps_url = ?, business_status = ?, lat = ?, lng = ?, territory = ?,
				rating = ?, review_count = ?, hours_json = ?, last_seen = ?
			WHERE id = ?`,
			rec.Identity.Name, rec.Identity.Address, rec.Identity.Phone,
			rec.Identity.Website, rec.Identity.Category, rec.Identity.MapsURL,
			rec.Identity.BusinessStatus, rec.Location.Lat, rec.Location.Lng,
			rec.Location.Territory, rec.Signals.Rating, rec.Signals.ReviewCount,
			rec.Signals.Hours, rec.LastSeen, rec.ID,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: update business %s", id)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit upsert")
	}
	return &model.UpsertResult{Created: created, ChangedFields: changed}, nil
}

func (s *SQLiteStore) RecordWebsiteContent(ctx context.Context, id, rawText string) (bool, error) {
	hash := Fingerprint(rawText)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: begin record content")
	}
	defer tx.Rollback() //nolint:errcheck

	var stored sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT website_content_hash FROM businesses WHERE id = ?`, id,
	).Scan(&stored)
	if err == sql.ErrNoRows {
		return false, eris.Wrapf(ErrNotFound, "record content %s", id)
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: read content hash %s", id)
	}

	if stored.Valid && stored.String == hash {
		return false, tx.Commit()
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE businesses SET website_content_hash = ?, last_seen = ? WHERE id = ?`,
		hash, time.Now().UTC(), id,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: update content hash %s", id)
	}
	return true, eris.Wrap(tx.Commit(), "sqlite: commit record content")
}

func (s *SQLiteStore) RecordClassification(ctx context.Context, id, contentHash string, cls model.Classification) (bool, error) {
	clsJSON, err := json.Marshal(cls)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: marshal classification")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: begin record classification")
	}
	defer tx.Rollback() //nolint:errcheck

	var current sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT website_content_hash FROM businesses WHERE id = ?`, id,
	).Scan(&current)
	if err == sql.ErrNoRows {
		return false, eris.Wrapf(ErrNotFound, "record classification %s", id)
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: read content hash %s", id)
	}

	// The content changed between extraction and the classifier finishing.
	// Discard the stale result; the record stays stale and is retried.
	if !current.Valid || current.String != contentHash {
		zap.L().Warn("store: stale classification rejected",
			zap.String("id", id),
			zap.String("classified_hash", contentHash),
		)
		return false, tx.Commit()
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE businesses SET classification_json = ?, classification_content_hash = ?, last_seen = ? WHERE id = ?`,
		string(clsJSON), contentHash, time.Now().UTC(), id,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: write classification %s", id)
	}
	return true, eris.Wrap(tx.Commit(), "sqlite: commit record classification")
}

func (s *SQLiteStore) UpdateScore(ctx context.Context, id string, total float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE businesses SET total_score = ? WHERE id = ?`, total, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update score %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "update score %s", id)
	}
	return nil
}

func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*model.BusinessRecord, error) {
	rec, err := scanBusiness(s.db.QueryRowContext(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE id = ?`, id))
	if eris.Is(err, ErrNotFound) {
		return nil, eris.Wrapf(ErrNotFound, "get record %s", id)
	}
	return rec, err
}

func (s *SQLiteStore) QueryReadyForExtraction(ctx context.Context, limit int) ([]string, error) {
	return s.queryIDs(ctx,
		`SELECT id FROM businesses
		 WHERE website IS NOT NULL AND website != '' AND website_content_hash IS NULL
		 ORDER BY first_seen ASC, id ASC LIMIT ?`, limit)
}

func (s *SQLiteStore) QueryReadyForClassification(ctx context.Context, limit int) ([]string, error) {
	return s.queryIDs(ctx,
		`SELECT id FROM businesses
		 WHERE website_content_hash IS NOT NULL
		   AND (classification_content_hash IS NULL OR classification_content_hash != website_content_hash)
		 ORDER BY first_seen ASC, id ASC LIMIT ?`, limit)
}

func (s *SQLiteStore) queryIDs(ctx context.Context, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: iterate ids")
}

func (s *SQLiteStore) AllEnriched(ctx context.Context) ([]model.BusinessRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+businessColumns+` FROM businesses
		 WHERE classification_json IS NOT NULL
		 ORDER BY first_seen ASC, id ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: all enriched")
	}
	defer rows.Close()

	var recs []model.BusinessRecord
	for rows.Next() {
		rec, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: iterate enriched")
}

func (s *SQLiteStore) Counts(ctx context.Context) (*Counts, error) {
	var c Counts
	queries := []struct {
		dst   *int
		query string
	}{
		{&c.Records, `SELECT COUNT(*) FROM businesses`},
		{&c.PendingExtract, `SELECT COUNT(*) FROM businesses WHERE website IS NOT NULL AND website != '' AND website_content_hash IS NULL`},
		{&c.StaleClassify, `SELECT COUNT(*) FROM businesses WHERE website_content_hash IS NOT NULL AND (classification_content_hash IS NULL OR classification_content_hash != website_content_hash)`},
		{&c.Enriched, `SELECT COUNT(*) FROM businesses WHERE classification_json IS NOT NULL`},
		{&c.CachedHashes, `SELECT COUNT(*) FROM classification_cache`},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dst); err != nil {
			return nil, eris.Wrap(err, "sqlite: counts")
		}
	}
	return &c, nil
}

func (s *SQLiteStore) GetCachedClassification(ctx context.Context, contentHash string) (*model.Classification, error) {
	var clsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT classification_json FROM classification_cache WHERE content_hash = ?`,
		contentHash,
	).Scan(&clsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached classification")
	}

	var cls model.Classification
	if err := json.Unmarshal([]byte(clsJSON), &cls); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached classification")
	}
	return &cls, nil
}

func (s *SQLiteStore) PutCachedClassification(ctx context.Context, contentHash string, cls model.Classification) error {
	clsJSON, err := json.Marshal(cls)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal cached classification")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO classification_cache (content_hash, classification_json, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(content_hash) DO UPDATE SET classification_json = excluded.classification_json`,
		contentHash, string(clsJSON), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: put cached classification")
}

func (s *SQLiteStore) StartRun(ctx context.Context, kind string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, started_at) VALUES (?, ?, ?)`,
		id, kind, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: start run")
	}
	return id, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, summary any) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run summary")
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE runs SET summary = ?, finished_at = ? WHERE id = ?`,
		string(summaryJSON), time.Now().UTC(), runID,
	)
	return eris.Wrapf(err, "sqlite: finish run %s", runID)
}

