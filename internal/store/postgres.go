package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/SyedAaraiz0050/territory-intel/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock implements it,
// which is how the Postgres store is tested without a live database.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements Store using pgx. Used when several operators share
// one territory database; SQLite remains the single-operator default.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool (or a pgxmock pool in tests).
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS businesses (
	id                          TEXT PRIMARY KEY,
	name                        TEXT,
	address                     TEXT,
	phone                       TEXT,
	website                     TEXT,
	category                    TEXT,
	maps_url                    TEXT,
	business_status             TEXT,
	lat                         DOUBLE PRECISION,
	lng                         DOUBLE PRECISION,
	territory                   TEXT,
	rating                      DOUBLE PRECISION,
	review_count                INTEGER,
	hours_json                  TEXT,
	website_content_hash        TEXT,
	classification_json         JSONB,
	classification_content_hash TEXT,
	total_score                 DOUBLE PRECISION,
	first_seen                  TIMESTAMPTZ NOT NULL,
	last_seen                   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS classification_cache (
	content_hash        TEXT PRIMARY KEY,
	classification_json JSONB NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	summary     JSONB,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_businesses_first_seen ON businesses(first_seen);
CREATE INDEX IF NOT EXISTS idx_businesses_website ON businesses(website);
CREATE INDEX IF NOT EXISTS idx_businesses_territory ON businesses(territory);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const pgBusinessColumns = `id, name, address, phone, website, category, maps_url, business_status,
	lat, lng, territory, rating, review_count, hours_json,
	website_content_hash, classification_json::text, classification_content_hash,
	total_score, first_seen, last_seen`

func (s *PostgresStore) UpsertIdentity(ctx context.Context, id string, identity model.Identity, loc model.Location, sig model.OperationalSignals) (*model.UpsertResult, error) {
	if id == "" {
		return nil, eris.New("postgres: upsert with empty id")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin upsert")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()

	// Row lock serializes concurrent upserts to the same id; independent
	// records proceed without coordination.
	rec, err := scanBusiness(tx.QueryRow(ctx,
		`SELECT `+pgBusinessColumns+` FROM businesses WHERE id = $1 FOR UPDATE`, id))
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
		_, err = tx.Exec(ctx,
			`INSERT INTO businesses (
				id, name, address, phone, website, category, maps_url, business_status,
				lat, lng, territory, rating, review_count, hours_json,
				first_seen, last_seen
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			rec.ID, rec.Identity.Name, rec.Identity.Address, rec.Identity.Phone,
			rec.Identity.Website, rec.Identity.Category, rec.Identity.MapsURL,
			rec.Identity.BusinessStatus, rec.Location.Lat, rec.Location.Lng,
			rec.Location.Territory, rec.Signals.Rating, rec.Signals.ReviewCount,
			rec.Signals.Hours, rec.FirstSeen, rec.LastSeen,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: insert business %s", id)
		}
	} else {
		_, err = tx.Exec(ctx,
			`UPDATE businesses SET
				name = $1, address = $2, phone = $3, website = $4, category = $5,
				maps_url = $6, business_status = $7, lat = $8, lng = $9, territory = $10,
				rating = $11, review_count = $12, hours_json = $13, last_seen = $14
			WHERE id = $15`,
			rec.Identity.Name, rec.Identity.Address, rec.Identity.Phone,
			rec.Identity.Website, rec.Identity.Category, rec.Identity.MapsURL,
			rec.Identity.BusinessStatus, rec.Location.Lat, rec.Location.Lng,
			rec.Location.Territory, rec.Signals.Rating, rec.Signals.ReviewCount,
			rec.Signals.Hours, rec.LastSeen, rec.ID,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: update business %s", id)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit upsert")
	}
	return &model.UpsertResult{Created: created, ChangedFields: changed}, nil
}

func (s *PostgresStore) RecordWebsiteContent(ctx context.Context, id, rawText string) (bool, error) {
	hash := Fingerprint(rawText)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, eris.Wrap(err, "postgres: begin record content")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var stored *string
	err = tx.QueryRow(ctx,
		`SELECT website_content_hash FROM businesses WHERE id = $1 FOR UPDATE`, id,
	).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, eris.Wrapf(ErrNotFound, "record content %s", id)
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: read content hash %s", id)
	}

	if stored != nil && *stored == hash {
		return false, tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx,
		`UPDATE businesses SET website_content_hash = $1, last_seen = $2 WHERE id = $3`,
		hash, time.Now().UTC(), id,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: update content hash %s", id)
	}
	return true, eris.Wrap(tx.Commit(ctx), "postgres: commit record content")
}

func (s *PostgresStore) RecordClassification(ctx context.Context, id, contentHash string, cls model.Classification) (bool, error) {
	clsJSON, err := json.Marshal(cls)
	if err != nil {
		return false, eris.Wrap(err, "postgres: marshal classification")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, eris.Wrap(err, "postgres: begin record classification")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var current *string
	err = tx.QueryRow(ctx,
		`SELECT website_content_hash FROM businesses WHERE id = $1 FOR UPDATE`, id,
	).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, eris.Wrapf(ErrNotFound, "record classification %s", id)
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: read content hash %s", id)
	}

	if current == nil || *current != contentHash {
		zap.L().Warn("store: stale classification rejected",
			zap.String("id", id),
			zap.String("classified_hash", contentHash),
		)
		return false, tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx,
		`UPDATE businesses SET classification_json = $1, classification_content_hash = $2, last_seen = $3 WHERE id = $4`,
		string(clsJSON), contentHash, time.Now().UTC(), id,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: write classification %s", id)
	}
	return true, eris.Wrap(tx.Commit(ctx), "postgres: commit record classification")
}

func (s *PostgresStore) UpdateScore(ctx context.Context, id string, total float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE businesses SET total_score = $1 WHERE id = $2`, total, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: update score %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "update score %s", id)
	}
	return nil
}

func (s *PostgresStore) GetRecord(ctx context.Context, id string) (*model.BusinessRecord, error) {
	rec, err := scanBusiness(s.pool.QueryRow(ctx,
		`SELECT `+pgBusinessColumns+` FROM businesses WHERE id = $1`, id))
	if eris.Is(err, ErrNotFound) {
		return nil, eris.Wrapf(ErrNotFound, "get record %s", id)
	}
	return rec, err
}

func (s *PostgresStore) QueryReadyForExtraction(ctx context.Context, limit int) ([]string, error) {
	return s.queryIDs(ctx,
		`SELECT id FROM businesses
		 WHERE website IS NOT NULL AND website != '' AND website_content_hash IS NULL
		 ORDER BY first_seen ASC, id ASC LIMIT $1`, limit)
}

func (s *PostgresStore) QueryReadyForClassification(ctx context.Context, limit int) ([]string, error) {
	return s.queryIDs(ctx,
		`SELECT id FROM businesses
		 WHERE website_content_hash IS NOT NULL
		   AND (classification_content_hash IS NULL OR classification_content_hash != website_content_hash)
		 ORDER BY first_seen ASC, id ASC LIMIT $1`, limit)
}

func (s *PostgresStore) queryIDs(ctx context.Context, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: iterate ids")
}

func (s *PostgresStore) AllEnriched(ctx context.Context) ([]model.BusinessRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgBusinessColumns+` FROM businesses
		 WHERE classification_json IS NOT NULL
		 ORDER BY first_seen ASC, id ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: all enriched")
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
	return recs, eris.Wrap(rows.Err(), "postgres: iterate enriched")
}

func (s *PostgresStore) Counts(ctx context.Context) (*Counts, error) {
	var c Counts
	err := s.pool.QueryRow(ctx, `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE website IS NOT NULL AND website != '' AND website_content_hash IS NULL),
		COUNT(*) FILTER (WHERE website_content_hash IS NOT NULL AND (classification_content_hash IS NULL OR classification_content_hash != website_content_hash)),
		COUNT(*) FILTER (WHERE classification_json IS NOT NULL)
	FROM businesses`).Scan(&c.Records, &c.PendingExtract, &c.StaleClassify, &c.Enriched)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: counts")
	}
	err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM classification_cache`).Scan(&c.CachedHashes)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: cache count")
	}
	return &c, nil
}

func (s *PostgresStore) GetCachedClassification(ctx context.Context, contentHash string) (*model.Classification, error) {
	var clsJSON string
	err := s.pool.QueryRow(ctx,
		`SELECT classification_json::text FROM classification_cache WHERE content_hash = $1`,
		contentHash,
	).Scan(&clsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cached classification")
	}

	var cls model.Classification
	if err := json.Unmarshal([]byte(clsJSON), &cls); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cached classification")
	}
	return &cls, nil
}

func (s *PostgresStore) PutCachedClassification(ctx context.Context, contentHash string, cls model.Classification) error {
	clsJSON, err := json.Marshal(cls)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal cached classification")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO classification_cache (content_hash, classification_json, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (content_hash) DO UPDATE SET classification_json = EXCLUDED.classification_json`,
		contentHash, string(clsJSON), time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: put cached classification")
}

func (s *PostgresStore) StartRun(ctx context.Context, kind string) (string, error) {
	id := uuid.New().String()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, kind, started_at) VALUES ($1, $2, $3)`,
		id, kind, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: start run")
	}
	return id, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, summary any) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run summary")
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE runs SET summary = $1, finished_at = $2 WHERE id = $3`,
		string(summaryJSON), time.Now().UTC(), runID,
	)
	return eris.Wrapf(err, "postgres: finish run %s", runID)
}
