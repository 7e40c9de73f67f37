package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgres(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresFromPool(mock), mock
}

func TestPostgres_UpdateScore(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectExec(`UPDATE businesses SET total_score`).
		WithArgs(72.5, "place-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := st.UpdateScore(context.Background(), "place-1", 72.5)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateScore_UnknownID(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectExec(`UPDATE businesses SET total_score`).
		WithArgs(1.0, "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := st.UpdateScore(context.Background(), "ghost", 1.0)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RecordWebsiteContent_Unchanged(t *testing.T) {
	st, mock := newMockPostgres(t)

	hash := Fingerprint("same text")
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT website_content_hash FROM businesses`).
		WithArgs("place-1").
		WillReturnRows(pgxmock.NewRows([]string{"website_content_hash"}).AddRow(&hash))
	mock.ExpectCommit()

	changed, err := st.RecordWebsiteContent(context.Background(), "place-1", "same text")

	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RecordWebsiteContent_Changed(t *testing.T) {
	st, mock := newMockPostgres(t)

	old := Fingerprint("old text")
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT website_content_hash FROM businesses`).
		WithArgs("place-1").
		WillReturnRows(pgxmock.NewRows([]string{"website_content_hash"}).AddRow(&old))
	mock.ExpectExec(`UPDATE businesses SET website_content_hash`).
		WithArgs(Fingerprint("new text"), pgxmock.AnyArg(), "place-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	changed, err := st.RecordWebsiteContent(context.Background(), "place-1", "new text")

	require.NoError(t, err)
	assert.True(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RecordClassification_StaleRejected(t *testing.T) {
	st, mock := newMockPostgres(t)

	current := Fingerprint("homepage after redesign")
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT website_content_hash FROM businesses`).
		WithArgs("place-1").
		WillReturnRows(pgxmock.NewRows([]string{"website_content_hash"}).AddRow(&current))
	mock.ExpectCommit()

	accepted, err := st.RecordClassification(context.Background(), "place-1",
		Fingerprint("homepage before redesign"), testClassification())

	require.NoError(t, err)
	assert.False(t, accepted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RecordClassification_Accepted(t *testing.T) {
	st, mock := newMockPostgres(t)

	hash := Fingerprint("homepage")
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT website_content_hash FROM businesses`).
		WithArgs("place-1").
		WillReturnRows(pgxmock.NewRows([]string{"website_content_hash"}).AddRow(&hash))
	mock.ExpectExec(`UPDATE businesses SET classification_json`).
		WithArgs(pgxmock.AnyArg(), hash, pgxmock.AnyArg(), "place-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	accepted, err := st.RecordClassification(context.Background(), "place-1", hash, testClassification())

	require.NoError(t, err)
	assert.True(t, accepted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_QueryReadyForClassification(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT id FROM businesses`).
		WithArgs(5).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("place-a").AddRow("place-b"))

	ids, err := st.QueryReadyForClassification(context.Background(), 5)

	require.NoError(t, err)
	assert.Equal(t, []string{"place-a", "place-b"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CachedClassification(t *testing.T) {
	st, mock := newMockPostgres(t)

	cls := testClassification()
	clsJSON, err := json.Marshal(cls)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT classification_json::text FROM classification_cache`).
		WithArgs("hash-1").
		WillReturnRows(pgxmock.NewRows([]string{"classification_json"}).AddRow(string(clsJSON)))

	got, err := st.GetCachedClassification(context.Background(), "hash-1")

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, cls, *got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CachedClassification_Miss(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT classification_json::text FROM classification_cache`).
		WithArgs("nope").
		WillReturnRows(pgxmock.NewRows([]string{"classification_json"}))

	got, err := st.GetCachedClassification(context.Background(), "nope")

	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
