package sqlstore

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memorylib/integrator/internal/database"
	"github.com/memorylib/integrator/internal/docstore"
	apperrors "github.com/memorylib/integrator/internal/errors"
)

const (
	stagingCollection = docstore.Collection("staging_articles")
	finalCollection   = docstore.Collection("articles")
)

func setupPostgreSQLStore(t *testing.T) (*PostgreSQLStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	store := NewPostgreSQLStore(db, database.NewTxManager(db))
	return store, mock
}

func TestNewPostgreSQLStore(t *testing.T) {
	store, _ := setupPostgreSQLStore(t)
	assert.NotNil(t, store)
	assert.IsType(t, &PostgreSQLStore{}, store)
}

func TestPostgreSQLStore_RunTransaction_GetSetDelete(t *testing.T) {
	store, mock := setupPostgreSQLStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT fields FROM staging_articles WHERE id = $1`)).
		WithArgs("article-1").
		WillReturnRows(sqlmock.NewRows([]string{"fields"}).
			AddRow([]byte(`{"status":"processed","title":"book one"}`)))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO articles (id, fields) VALUES ($1, $2)`)).
		WithArgs("article-1", `{"title":"book one"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM staging_articles WHERE id = $1`)).
		WithArgs("article-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		fields, err := tx.Get(ctx, stagingCollection, "article-1")
		if err != nil {
			return err
		}
		assert.Equal(t, "processed", fields["status"])

		if err := tx.Set(ctx, finalCollection, "article-1", docstore.Fields{"title": fields["title"]}); err != nil {
			return err
		}
		return tx.Delete(ctx, stagingCollection, "article-1")
	})

	assert.NoError(t, err)
}

func TestPostgreSQLStore_RunTransaction_GetNotFound(t *testing.T) {
	store, mock := setupPostgreSQLStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT fields FROM articles WHERE id = $1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"fields"}))
	mock.ExpectRollback()

	err := store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		_, err := tx.Get(ctx, finalCollection, "missing")
		return err
	})

	assert.ErrorIs(t, err, docstore.ErrDocumentNotFound)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestPostgreSQLStore_RunTransaction_ServerTimestamps(t *testing.T) {
	store, mock := setupPostgreSQLStore(t)
	ctx := context.Background()

	serverNow := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT now()`)).
		WillReturnRows(sqlmock.NewRows([]string{"now"}).AddRow(serverNow))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO articles (id, fields) VALUES ($1, $2)`)).
		WithArgs(
			"article-1",
			`{"integratedAt":"2025-03-01T12:00:00Z","title":"book one","updatedAt":"2025-03-01T12:00:00Z"}`,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return tx.Set(ctx, finalCollection, "article-1", docstore.Fields{
			"title":        "book one",
			"integratedAt": docstore.ServerTimestamp,
			"updatedAt":    docstore.ServerTimestamp,
		})
	})

	assert.NoError(t, err)
}

func TestPostgreSQLStore_RunTransaction_ServerTimeFetchedOnce(t *testing.T) {
	store, mock := setupPostgreSQLStore(t)
	ctx := context.Background()

	serverNow := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT now()`)).
		WillReturnRows(sqlmock.NewRows([]string{"now"}).AddRow(serverNow))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO articles (id, fields) VALUES ($1, $2)`)).
		WithArgs("article-1", `{"updatedAt":"2025-03-01T12:00:00Z"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO articles (id, fields) VALUES ($1, $2)`)).
		WithArgs("article-2", `{"updatedAt":"2025-03-01T12:00:00Z"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		for _, id := range []string{"article-1", "article-2"} {
			err := tx.Set(ctx, finalCollection, id, docstore.Fields{"updatedAt": docstore.ServerTimestamp})
			if err != nil {
				return err
			}
		}
		return nil
	})

	assert.NoError(t, err)
}

func TestPostgreSQLStore_RunTransaction_SerializationFailureAtCommit(t *testing.T) {
	store, mock := setupPostgreSQLStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM staging_articles WHERE id = $1`)).
		WithArgs("article-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(&pq.Error{Code: "40001", Message: "could not serialize access"})

	err := store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return tx.Delete(ctx, stagingCollection, "article-1")
	})

	assert.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrTransient))
}

func TestPostgreSQLStore_RunTransaction_BodyErrorRollsBack(t *testing.T) {
	store, mock := setupPostgreSQLStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		return assert.AnError
	})

	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, apperrors.Is(err, apperrors.ErrTransient))
}

func TestPostgreSQLStore_RunTransaction_InvalidCollection(t *testing.T) {
	store, mock := setupPostgreSQLStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		_, err := tx.Get(ctx, docstore.Collection("bad;name"), "article-1")
		return err
	})

	assert.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
}

func TestPostgreSQLStore_Count(t *testing.T) {
	store, mock := setupPostgreSQLStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM staging_articles`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := store.Count(ctx, stagingCollection)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestPostgreSQLStore_Count_ConnectionFailure(t *testing.T) {
	store, mock := setupPostgreSQLStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM staging_articles`)).
		WillReturnError(&pq.Error{Code: "08006"})

	_, err := store.Count(ctx, stagingCollection)
	assert.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrTransient))
}
