package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQLStore keeps documents in the documents table created by the migrations.
// It works with both the postgres and sqlite3 drivers.
type SQLStore struct {
	db       *sqlx.DB
	postgres bool
}

// NewSQLStore wraps an open connection.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, postgres: db.DriverName() == "postgres"}
}

type documentRow struct {
	Key  string `db:"doc_key"`
	Body string `db:"body"`
}

const upsertDocument = `INSERT INTO documents (collection, doc_key, body, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (collection, doc_key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`

// Get implements Store.
func (s *SQLStore) Get(ctx context.Context, coll, key string) ([]byte, error) {
	var body string
	q := s.db.Rebind(`SELECT body FROM documents WHERE collection = ? AND doc_key = ?`)
	if err := s.db.GetContext(ctx, &body, q, coll, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select %s/%s: %w", coll, key, err)
	}
	return []byte(body), nil
}

// Update implements Store. On postgres the document key is serialized with a
// transaction-scoped advisory lock so concurrent first writes cannot interleave.
func (s *SQLStore) Update(ctx context.Context, coll, key string, fn func(cur []byte) ([]byte, error)) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if s.postgres {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, coll+"/"+key); err != nil {
			return fmt.Errorf("lock %s/%s: %w", coll, key, err)
		}
	}

	var cur []byte
	var body string
	q := tx.Rebind(`SELECT body FROM documents WHERE collection = ? AND doc_key = ?`)
	switch err := tx.GetContext(ctx, &body, q, coll, key); {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("select %s/%s: %w", coll, key, err)
	default:
		cur = []byte(body)
	}

	next, err := fn(cur)
	if err != nil || next == nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(upsertDocument), coll, key, string(next), time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", coll, key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Scan implements Store.
func (s *SQLStore) Scan(ctx context.Context, coll string, fn func(key string, body []byte) error) error {
	var rows []documentRow
	q := s.db.Rebind(`SELECT doc_key, body FROM documents WHERE collection = ? ORDER BY doc_key`)
	if err := s.db.SelectContext(ctx, &rows, q, coll); err != nil {
		return fmt.Errorf("scan %s: %w", coll, err)
	}
	for _, r := range rows {
		if err := fn(r.Key, []byte(r.Body)); err != nil {
			return err
		}
	}
	return nil
}

// Delete implements Store.
func (s *SQLStore) Delete(ctx context.Context, coll, key string) error {
	q := s.db.Rebind(`DELETE FROM documents WHERE collection = ? AND doc_key = ?`)
	if _, err := s.db.ExecContext(ctx, q, coll, key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", coll, key, err)
	}
	return nil
}

// Close implements Store.
func (s *SQLStore) Close() error { return s.db.Close() }
