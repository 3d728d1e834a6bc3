package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type documentRow struct {
	Collection string `gorm:"primaryKey;size:128"`
	Key        string `gorm:"primaryKey;size:255"`
	Data       string `gorm:"type:text;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (documentRow) TableName() string { return "documents" }

// SQLiteDocumentStore is a gorm/SQLite implementation of the DocumentStore
// interface, for local development and tests.
type SQLiteDocumentStore struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) the database at path and migrates it. Use
// ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLiteDocumentStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite has a single writer, and every connection to :memory: is a
	// separate database.
	sqlDB.SetMaxOpenConns(1)

	return NewSQLiteDocumentStore(db)
}

// NewSQLiteDocumentStore wraps an open gorm database and migrates it.
func NewSQLiteDocumentStore(db *gorm.DB) (*SQLiteDocumentStore, error) {
	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate documents: %w", err)
	}
	return &SQLiteDocumentStore{db: db}, nil
}

// Get retrieves a document by key.
func (s *SQLiteDocumentStore) Get(ctx context.Context, collection, key string) (Document, error) {
	row, err := findRow(s.db.WithContext(ctx), collection, key)
	if err != nil {
		return nil, fmt.Errorf("sqlite get %s/%s: %w", collection, key, err)
	}
	if row == nil {
		return nil, ErrNotFound
	}
	return decodeDocument([]byte(row.Data))
}

// findRow returns nil without an error when no row matches. A miss is a
// normal outcome here, so it does not go through gorm's ErrRecordNotFound.
func findRow(db *gorm.DB, collection, key string) (*documentRow, error) {
	var rows []documentRow
	res := db.Where("collection = ? AND `key` = ?", collection, key).Limit(1).Find(&rows)
	if res.Error != nil {
		return nil, res.Error
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Create inserts a document unless the key is taken.
func (s *SQLiteDocumentStore) Create(ctx context.Context, collection, key string, doc Document) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	row := documentRow{Collection: collection, Key: key, Data: string(data)}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("sqlite create %s/%s: %w", collection, key, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// CreateAll inserts every document inside one transaction.
func (s *SQLiteDocumentStore) CreateAll(ctx context.Context, docs ...Insert) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, d := range docs {
			data, err := encodeDocument(d.Data)
			if err != nil {
				return err
			}
			row := documentRow{Collection: d.Collection, Key: d.Key, Data: string(data)}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
			if res.Error != nil {
				return fmt.Errorf("sqlite create %s/%s: %w", d.Collection, d.Key, res.Error)
			}
			if res.RowsAffected == 0 {
				return &ConflictError{Collection: d.Collection, Key: d.Key}
			}
		}
		return nil
	})
}

// Update merges fields into the stored document inside a transaction.
func (s *SQLiteDocumentStore) Update(ctx context.Context, collection, key string, fields Document) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := findRow(tx, collection, key)
		if err != nil {
			return fmt.Errorf("sqlite update %s/%s: %w", collection, key, err)
		}
		if row == nil {
			return ErrNotFound
		}

		doc, err := decodeDocument([]byte(row.Data))
		if err != nil {
			return err
		}
		for k, v := range fields {
			doc[k] = v
		}
		data, err := encodeDocument(doc)
		if err != nil {
			return err
		}

		err = tx.Model(&documentRow{}).
			Where("collection = ? AND `key` = ?", collection, key).
			Updates(map[string]any{"data": string(data), "updated_at": time.Now()}).Error
		if err != nil {
			return fmt.Errorf("sqlite update %s/%s: %w", collection, key, err)
		}
		return nil
	})
}

// Query returns documents whose field equals value.
func (s *SQLiteDocumentStore) Query(ctx context.Context, collection, field string, value any) ([]Entry, error) {
	entries, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	return filterEntries(entries, field, value), nil
}

// List returns every document in the collection.
func (s *SQLiteDocumentStore) List(ctx context.Context, collection string) ([]Entry, error) {
	var rows []documentRow
	err := s.db.WithContext(ctx).Where("collection = ?", collection).Order("`key`").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("sqlite list %s: %w", collection, err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		doc, err := decodeDocument([]byte(row.Data))
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Key: row.Key, Data: doc})
	}
	return entries, nil
}

// Ping checks the database connection.
func (s *SQLiteDocumentStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteDocumentStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
