package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore keeps documents in the MySQL documents table created by
// db.RunMigrations. Inside Tx, q and tx are the running transaction.
type SQLStore struct {
	db *sql.DB
	q  querier
	tx *sql.Tx
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, q: db}
}

func (s *SQLStore) List(ctx context.Context, kind string) ([]Document, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT id, body FROM documents WHERE kind = ? ORDER BY id", kind)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return scanDocuments(rows)
}

func (s *SQLStore) Get(ctx context.Context, kind string, id int) (Document, error) {
	var doc Document
	err := s.q.QueryRowContext(ctx,
		"SELECT id, body FROM documents WHERE kind = ? AND id = ?", kind, id,
	).Scan(&doc.ID, &doc.Body)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("%s/%d: %w", kind, id, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("database error: %w", err)
	}
	return doc, nil
}

func (s *SQLStore) Find(ctx context.Context, kind, field, value string) ([]Document, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, body FROM documents
		 WHERE kind = ? AND JSON_UNQUOTE(JSON_EXTRACT(body, CONCAT('$.', ?))) = ?
		 ORDER BY id`,
		kind, field, value)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return scanDocuments(rows)
}

func (s *SQLStore) Insert(ctx context.Context, kind string, build func(id int) ([]byte, error)) (int, error) {
	if s.tx != nil {
		return s.insert(ctx, kind, build)
	}

	var id int
	err := s.Tx(ctx, func(tx Store) error {
		var err error
		id, err = tx.Insert(ctx, kind, build)
		return err
	})
	return id, err
}

// Tx opens a database transaction and commits it when fn succeeds.
func (s *SQLStore) Tx(ctx context.Context, fn func(tx Store) error) error {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&SQLStore{db: s.db, q: tx, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// insert needs a transaction so the id and the body land together.
func (s *SQLStore) insert(ctx context.Context, kind string, build func(id int) ([]byte, error)) (int, error) {
	result, err := s.tx.ExecContext(ctx, "INSERT INTO documents (kind, body) VALUES (?, '{}')", kind)
	if err != nil {
		return 0, fmt.Errorf("failed to insert %s: %w", kind, err)
	}
	id64, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get %s id: %w", kind, err)
	}
	id := int(id64)

	body, err := build(id)
	if err != nil {
		return 0, err
	}
	if _, err := s.tx.ExecContext(ctx, "UPDATE documents SET body = ? WHERE id = ?", body, id); err != nil {
		return 0, fmt.Errorf("failed to write %s/%d: %w", kind, id, err)
	}
	return id, nil
}

func (s *SQLStore) Put(ctx context.Context, kind string, id int, body []byte) error {
	result, err := s.q.ExecContext(ctx,
		"UPDATE documents SET body = ? WHERE kind = ? AND id = ?", body, kind, id)
	if err != nil {
		return fmt.Errorf("failed to update %s/%d: %w", kind, id, err)
	}
	return expectOne(result, kind, id)
}

func (s *SQLStore) Delete(ctx context.Context, kind string, id int) error {
	result, err := s.q.ExecContext(ctx, "DELETE FROM documents WHERE kind = ? AND id = ?", kind, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%d: %w", kind, id, err)
	}
	return expectOne(result, kind, id)
}

func (s *SQLStore) Close() error {
	if s.tx != nil {
		return nil
	}
	return s.db.Close()
}

// expectOne treats zero affected rows as missing. db.InitDB turns on
// clientFoundRows so an UPDATE that changes nothing still counts its row.
func expectOne(result sql.Result, kind string, id int) error {
	n, err := result.RowsAffected()
	if err != nil || n > 0 {
		return err
	}
	return fmt.Errorf("%s/%d: %w", kind, id, ErrNotFound)
}

func scanDocuments(rows *sql.Rows) ([]Document, error) {
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Body); err != nil {
			return nil, fmt.Errorf("error scanning document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
