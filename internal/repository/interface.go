package repository

import (
	"context"
	"errors"
	"fmt"
)

// Collections used by the tracker.
const (
	CollectionActivities  = "actividades"
	CollectionCommissions = "comisiones"
	CollectionCampus      = "campus"
	CollectionDictation   = "dictado"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned by Create when the key is taken.
	ErrAlreadyExists = errors.New("document already exists")
)

// Document is a stored record: field names map to JSON-compatible values.
type Document map[string]any

// ConflictError names the document whose key was already taken. It matches
// ErrAlreadyExists.
type ConflictError struct {
	Collection string
	Key        string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("document %s/%s already exists", e.Collection, e.Key)
}

func (e *ConflictError) Is(target error) bool { return target == ErrAlreadyExists }

// Insert is one new document in a CreateAll batch.
type Insert struct {
	Collection string
	Key        string
	Data       Document
}

// Entry is a document together with its key.
type Entry struct {
	Key  string
	Data Document
}

// DocumentStore is a keyed document store with partial-field updates.
type DocumentStore interface {
	// Get retrieves a document by key.
	Get(ctx context.Context, collection, key string) (Document, error)
	// Create stores a new document, failing with ErrAlreadyExists if the key
	// is taken. The existence check and the write are atomic.
	Create(ctx context.Context, collection, key string, doc Document) error
	// CreateAll stores every document in docs or none of them. If any key is
	// taken it fails with a *ConflictError and writes nothing.
	CreateAll(ctx context.Context, docs ...Insert) error
	// Update merges fields into an existing document, leaving unlisted
	// fields untouched. The whole merge lands or none of it does.
	Update(ctx context.Context, collection, key string, fields Document) error
	// Query returns documents whose field equals value, sorted by key.
	Query(ctx context.Context, collection, field string, value any) ([]Entry, error)
	// List returns every document in a collection, sorted by key.
	List(ctx context.Context, collection string) ([]Entry, error)
	// Ping checks connectivity.
	Ping(ctx context.Context) error
	// Close releases the underlying connection.
	Close() error
}
