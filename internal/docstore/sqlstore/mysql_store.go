package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/memorylib/integrator/internal/database"
	"github.com/memorylib/integrator/internal/docstore"
	apperrors "github.com/memorylib/integrator/internal/errors"
)

// MySQLStore implements docstore.Store for MySQL databases.
type MySQLStore struct {
	db        *sql.DB
	txManager database.TxManager
}

// RunTransaction executes fn in a SERIALIZABLE transaction. Deadlocks and
// lock wait timeouts from overlapping movers come back as transient errors.
func (m *MySQLStore) RunTransaction(ctx context.Context, fn docstore.TxFunc) error {
	opts := &sql.TxOptions{Isolation: sql.LevelSerializable}
	tx := &mysqlTx{db: m.db}

	err := m.txManager.WithTxOptions(ctx, opts, func(ctx context.Context) error {
		return fn(ctx, tx)
	})
	return classifyMySQLError(err)
}

// Count returns the number of documents in the collection.
func (m *MySQLStore) Count(ctx context.Context, col docstore.Collection) (int64, error) {
	table, err := tableName(col)
	if err != nil {
		return 0, err
	}

	query := `SELECT COUNT(*) FROM ` + table

	var count int64
	if err := m.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, apperrors.Wrap(classifyMySQLError(err), "failed to count documents")
	}
	return count, nil
}

// mysqlTx is the transactional view. The server timestamp is fetched once
// per transaction and reused for every sentinel written through it.
type mysqlTx struct {
	db  *sql.DB
	now *time.Time
}

func (t *mysqlTx) Get(ctx context.Context, col docstore.Collection, id string) (docstore.Fields, error) {
	table, err := tableName(col)
	if err != nil {
		return nil, err
	}
	querier := database.GetTx(ctx, t.db)

	query := `SELECT fields FROM ` + table + ` WHERE id = ?`

	var raw []byte
	if err := querier.QueryRowContext(ctx, query, id).Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, docstore.ErrDocumentNotFound
		}
		return nil, apperrors.Wrap(classifyMySQLError(err), "failed to get document")
	}

	return unmarshalFields(raw)
}

func (t *mysqlTx) Set(ctx context.Context, col docstore.Collection, id string, fields docstore.Fields) error {
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

	query := `INSERT INTO ` + table + ` (id, fields) VALUES (?, ?)
			  ON DUPLICATE KEY UPDATE fields = VALUES(fields)`

	if _, err := querier.ExecContext(ctx, query, id, body); err != nil {
		return apperrors.Wrap(classifyMySQLError(err), "failed to set document")
	}
	return nil
}

func (t *mysqlTx) Delete(ctx context.Context, col docstore.Collection, id string) error {
	table, err := tableName(col)
	if err != nil {
		return err
	}
	querier := database.GetTx(ctx, t.db)

	query := `DELETE FROM ` + table + ` WHERE id = ?`

	if _, err := querier.ExecContext(ctx, query, id); err != nil {
		return apperrors.Wrap(classifyMySQLError(err), "failed to delete document")
	}
	return nil
}

// serverTime returns the database time at first use in this transaction.
// Requires parseTime=true on the connection string.
func (t *mysqlTx) serverTime(ctx context.Context) (time.Time, error) {
	if t.now != nil {
		return *t.now, nil
	}
	querier := database.GetTx(ctx, t.db)

	var now time.Time
	if err := querier.QueryRowContext(ctx, `SELECT NOW(6)`).Scan(&now); err != nil {
		return time.Time{}, apperrors.Wrap(classifyMySQLError(err), "failed to read server time")
	}
	now = now.UTC()
	t.now = &now
	return now, nil
}

// NewMySQLStore creates a new MySQL document store instance.
func NewMySQLStore(db *sql.DB, txManager database.TxManager) *MySQLStore {
	return &MySQLStore{db: db, txManager: txManager}
}
