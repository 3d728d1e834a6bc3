package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	key TEXT NOT NULL,
	data JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, key)
)`

const postgresDataIndex = `CREATE INDEX IF NOT EXISTS documents_data_idx ON documents USING GIN (data jsonb_path_ops)`

// PostgresDocumentStore is a PostgreSQL implementation of the DocumentStore
// interface. Documents live in a single JSONB table keyed by
// (collection, key).
type PostgresDocumentStore struct {
	db *pgxpool.Pool
}

// NewPostgresDocumentStore creates a new PostgresDocumentStore.
func NewPostgresDocumentStore(db *pgxpool.Pool) *PostgresDocumentStore {
	return &PostgresDocumentStore{db: db}
}

// Migrate creates the documents table if it does not exist.
func (s *PostgresDocumentStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	if _, err := s.db.Exec(ctx, postgresDataIndex); err != nil {
		return fmt.Errorf("failed to create documents index: %w", err)
	}
	return nil
}

// Get retrieves a document by key.
func (s *PostgresDocumentStore) Get(ctx context.Context, collection, key string) (Document, error) {
	var data []byte
	err := s.db.QueryRow(ctx, "SELECT data FROM documents WHERE collection = $1 AND key = $2", collection, key).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("postgres get %s/%s: %w", collection, key, err)
	}
	return decodeDocument(data)
}

// Create inserts a document unless the key is taken.
func (s *PostgresDocumentStore) Create(ctx context.Context, collection, key string, doc Document) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx,
		"INSERT INTO documents (collection, key, data) VALUES ($1, $2, $3::jsonb) ON CONFLICT (collection, key) DO NOTHING",
		collection, key, string(data))
	if err != nil {
		return fmt.Errorf("postgres create %s/%s: %w", collection, key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// CreateAll inserts every document in one transaction.
func (s *PostgresDocumentStore) CreateAll(ctx context.Context, docs ...Insert) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		for _, d := range docs {
			data, err := encodeDocument(d.Data)
			if err != nil {
				return err
			}
			tag, err := tx.Exec(ctx,
				"INSERT INTO documents (collection, key, data) VALUES ($1, $2, $3::jsonb) ON CONFLICT (collection, key) DO NOTHING",
				d.Collection, d.Key, string(data))
			if err != nil {
				return fmt.Errorf("postgres create %s/%s: %w", d.Collection, d.Key, err)
			}
			if tag.RowsAffected() == 0 {
				return &ConflictError{Collection: d.Collection, Key: d.Key}
			}
		}
		return nil
	})
}

// Update merges the given top-level fields into the stored document.
func (s *PostgresDocumentStore) Update(ctx context.Context, collection, key string, fields Document) error {
	data, err := encodeDocument(fields)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx,
		"UPDATE documents SET data = data || $3::jsonb, updated_at = now() WHERE collection = $1 AND key = $2",
		collection, key, string(data))
	if err != nil {
		return fmt.Errorf("postgres update %s/%s: %w", collection, key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Query returns documents whose field equals value.
func (s *PostgresDocumentStore) Query(ctx context.Context, collection, field string, value any) ([]Entry, error) {
	filter, err := json.Marshal(map[string]any{field: value})
	if err != nil {
		return nil, fmt.Errorf("failed to encode filter: %w", err)
	}
	return s.scan(ctx,
		"SELECT key, data FROM documents WHERE collection = $1 AND data @> $2::jsonb ORDER BY key",
		collection, string(filter))
}

// List returns every document in the collection.
func (s *PostgresDocumentStore) List(ctx context.Context, collection string) ([]Entry, error) {
	return s.scan(ctx, "SELECT key, data FROM documents WHERE collection = $1 ORDER BY key", collection)
}

func (s *PostgresDocumentStore) scan(ctx context.Context, sql string, args ...any) ([]Entry, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var key string
		var data []byte
		if err := rows.Scan(&key, &data); err != nil {
			return nil, fmt.Errorf("postgres scan: %w", err)
		}
		doc, err := decodeDocument(data)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Key: key, Data: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres rows: %w", err)
	}
	return entries, nil
}

// Ping checks the database connection.
func (s *PostgresDocumentStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the connection pool.
func (s *PostgresDocumentStore) Close() error {
	s.db.Close()
	return nil
}
