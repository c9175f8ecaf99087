package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/websearch/internal/crawler"
)

func newMockStore(t *testing.T) (*IndexStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewIndexStoreWithPool(mock, "")
	require.NoError(t, err)
	return store, mock
}

func TestWithinTxCommitsDocumentAndFrequencies(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO search_engine.documents")).
		WithArgs("http://a.test/", "hello cat").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO search_engine.word_frequencies")).
		WithArgs(int64(7), "cat", 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO search_engine.word_frequencies")).
		WithArgs(int64(7), "hello", 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(tx crawler.IndexTx) error {
		id, err := tx.SaveDocument(context.Background(), "http://a.test/", "hello cat")
		if err != nil {
			return err
		}
		require.Equal(t, int64(7), id)
		if err := tx.SaveWordFrequency(context.Background(), id, "cat", 1); err != nil {
			return err
		}
		return tx.SaveWordFrequency(context.Background(), id, "hello", 1)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO search_engine.documents")).
		WithArgs("http://a.test/", "body").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO search_engine.word_frequencies")).
		WithArgs(int64(3), "body", 1).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(tx crawler.IndexTx) error {
		id, err := tx.SaveDocument(context.Background(), "http://a.test/", "body")
		if err != nil {
			return err
		}
		return tx.SaveWordFrequency(context.Background(), id, "body", 1)
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, crawler.ErrPersistence))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxWrapsCallerErrors(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	sentinel := errors.New("caller gave up")
	err := store.WithinTx(context.Background(), func(crawler.IndexTx) error { return sentinel })
	require.ErrorIs(t, err, sentinel)
	require.ErrorIs(t, err, crawler.ErrPersistence)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxBeginAndCommitFailures(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	err := store.WithinTx(context.Background(), func(crawler.IndexTx) error { return nil })
	require.ErrorIs(t, err, crawler.ErrPersistence)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))
	err = store.WithinTx(context.Background(), func(crawler.IndexTx) error { return nil })
	require.ErrorIs(t, err, crawler.ErrPersistence)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveDocumentReturnsExistingID(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (url) DO NOTHING")).
			WithArgs("http://a.test/", "same").
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))
		mock.ExpectCommit()
	}

	var ids []int64
	for i := 0; i < 2; i++ {
		err := store.WithinTx(context.Background(), func(tx crawler.IndexTx) error {
			id, err := tx.SaveDocument(context.Background(), "http://a.test/", "same")
			ids = append(ids, id)
			return err
		})
		require.NoError(t, err)
	}
	require.Equal(t, []int64{11, 11}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveDocumentRereadsRowCommittedConcurrently(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (url) DO NOTHING")).
		WithArgs("http://a.test/", "body").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM search_engine.documents WHERE url = $1")).
		WithArgs("http://a.test/").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectCommit()

	var id int64
	err := store.WithinTx(context.Background(), func(tx crawler.IndexTx) error {
		var err error
		id, err = tx.SaveDocument(context.Background(), "http://a.test/", "body")
		return err
	})
	require.NoError(t, err)
	require.Equal(t, int64(42), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveDocumentStripsNULBytes(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO search_engine.documents")).
		WithArgs("http://a.test/", "abc").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(tx crawler.IndexTx) error {
		_, err := tx.SaveDocument(context.Background(), "http://a.test/", "a\x00b\x00c")
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchRanksBySummedFrequency(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE w.word = ANY($1)")).
		WithArgs([]string{"golang", "crawler"}, 10).
		WillReturnRows(pgxmock.NewRows([]string{"url", "total_frequency"}).
			AddRow("http://b.test/", int64(9)).
			AddRow("http://a.test/", int64(4)))

	got, err := store.Search(context.Background(), []string{"golang", "crawler"}, 10)
	require.NoError(t, err)
	require.Equal(t, []crawler.SearchResult{
		{URL: "http://b.test/", TotalFrequency: 9},
		{URL: "http://a.test/", TotalFrequency: 4},
	}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchEmptyWordsSkipsQuery(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	got, err := store.Search(context.Background(), nil, 10)
	require.NoError(t, err)
	require.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchQueryFailure(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE w.word = ANY($1)")).
		WithArgs([]string{"x"}, 5).
		WillReturnError(errors.New("relation does not exist"))

	_, err := store.Search(context.Background(), []string{"x"}, 5)
	require.ErrorIs(t, err, crawler.ErrPersistence)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaCreatesTablesInOneTransaction(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewIndexStoreWithPool(mock, "crawl")
	require.NoError(t, err)

	mock.ExpectBegin()
	for _, stmt := range []string{
		"CREATE SCHEMA IF NOT EXISTS crawl",
		"CREATE TABLE IF NOT EXISTS crawl.documents",
		"CREATE TABLE IF NOT EXISTS crawl.words",
		"CREATE TABLE IF NOT EXISTS crawl.word_frequencies",
		"CREATE INDEX IF NOT EXISTS word_frequencies_word_id_idx ON crawl.word_frequencies",
	} {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}
	mock.ExpectCommit()

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewIndexStoreValidation(t *testing.T) {
	t.Parallel()

	_, err := NewIndexStore(context.Background(), IndexStoreConfig{})
	require.EqualError(t, err, "database.dsn is required")

	_, err = NewIndexStore(context.Background(), IndexStoreConfig{DSN: "postgres://x", Schema: "bad;name"})
	require.Error(t, err)

	_, err = NewIndexStoreWithPool(nil, "")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	_, err = NewIndexStoreWithPool(mock, "drop table")
	require.Error(t, err)
}
