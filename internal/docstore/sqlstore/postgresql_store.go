package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/memorylib/integrator/internal/database"
	"github.com/memorylib/integrator/internal/docstore"
	apperrors "github.com/memorylib/integrator/internal/errors"
)

// PostgreSQLStore implements docstore.Store for PostgreSQL databases.
type PostgreSQLStore struct {
	db        *sql.DB
	txManager database.TxManager
}

// RunTransaction executes fn in a SERIALIZABLE transaction. Serialization
// failures, including those raised at commit, come back as transient errors.
func (p *PostgreSQLStore) RunTransaction(ctx context.Context, fn docstore.TxFunc) error {
	opts := &sql.TxOptions{Isolation: sql.LevelSerializable}
	tx := &postgresqlTx{db: p.db}

	err := p.txManager.WithTxOptions(ctx, opts, func(ctx context.Context) error {
		return fn(ctx, tx)
	})
	return classifyPostgreSQLError(err)
}

// Count returns the number of documents in the collection.
func (p *PostgreSQLStore) Count(ctx context.Context, col docstore.Collection) (int64, error) {
	table, err := tableName(col)
	if err != nil {
		return 0, err
	}

	query := `SELECT COUNT(*) FROM ` + table

	var count int64
	if err := p.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, apperrors.Wrap(classifyPostgreSQLError(err), "failed to count documents")
	}
	return count, nil
}

// postgresqlTx is the transactional view. The server timestamp is fetched
// once per transaction and reused for every sentinel written through it.
type postgresqlTx struct {
	db  *sql.DB
	now *time.Time
}

func (t *postgresqlTx) Get(ctx context.Context, col docstore.Collection, id string) (docstore.Fields, error) {
	table, err := tableName(col)
	if err != nil {
		return nil, err
	}
	querier := database.GetTx(ctx, t.db)

	query := `SELECT fields FROM ` + table + ` WHERE id = $1`

	var raw []byte
	if err := querier.QueryRowContext(ctx, query, id).Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, docstore.ErrDocumentNotFound
		}
		return nil, apperrors.Wrap(classifyPostgreSQLError(err), "failed to get document")
	}

	return unmarshalFields(raw)
}

func (t *postgresqlTx) Set(ctx context.Context, col docstore.Collection, id string, fields docstore.Fields) error {
	table, err := tableName(col)
	if err != nil {
		return err
	}
	querier := database.GetTx(ctx, t.db)

	if docstore.ContainsServerTimestamp(fields) {
		now, err := t.serverTime(ctx)
		if err != nil {
			return err
		}
		fields = docstore.ResolveServerTimestamps(fields, now)
	}

	body, err := marshalFields(fields)
	if err != nil {
		return err
	}

	query := `INSERT INTO ` + table + ` (id, fields) VALUES ($1, $2)
			  ON CONFLICT (id) DO UPDATE SET fields = EXCLUDED.fields`

	if _, err := querier.ExecContext(ctx, query, id, body); err != nil {
		return apperrors.Wrap(classifyPostgreSQLError(err), "failed to set document")
	}
	return nil
}

func (t *postgresqlTx) Delete(ctx context.Context, col docstore.Collection, id string) error {
	table, err := tableName(col)
	if err != nil {
		return err
	}
	querier := database.GetTx(ctx, t.db)

	query := `DELETE FROM ` + table + ` WHERE id = $1`

	if _, err := querier.ExecContext(ctx, query, id); err != nil {
		return apperrors.Wrap(classifyPostgreSQLError(err), "failed to delete document")
	}
	return nil
}

// serverTime returns the transaction timestamp. PostgreSQL's now() is stable
// for the whole transaction.
func (t *postgresqlTx) serverTime(ctx context.Context) (time.Time, error) {
	if t.now != nil {
		return *t.now, nil
	}
	querier := database.GetTx(ctx, t.db)

	var now time.Time
	if err := querier.QueryRowContext(ctx, `SELECT now()`).Scan(&now); err != nil {
		return time.Time{}, apperrors.Wrap(classifyPostgreSQLError(err), "failed to read server time")
	}
	now = now.UTC()
	t.now = &now
	return now, nil
}

// NewPostgreSQLStore creates a new PostgreSQL document store instance.
func NewPostgreSQLStore(db *sql.DB, txManager database.TxManager) *PostgreSQLStore {
	return &PostgreSQLStore{db: db, txManager: txManager}
}
