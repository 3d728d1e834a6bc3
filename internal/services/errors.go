package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by NotFoundError.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateID is matched by DuplicateIDError.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrPersistence is matched by PersistenceError.
	ErrPersistence = errors.New("persistence error")
	// ErrInvalidInput reports missing or malformed input fields.
	ErrInvalidInput = errors.New("invalid input")
)

// NotFoundError reports a missing workflow instance or parent entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// DuplicateIDError reports a creation against an existing key.
type DuplicateIDError struct {
	Entity string
	ID     string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Entity, e.ID)
}

func (e *DuplicateIDError) Is(target error) bool { return target == ErrDuplicateID }

// PersistenceError wraps a failed document store call. State is unchanged
// when it is returned from an update.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
