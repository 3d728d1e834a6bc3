package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrOrderViolation is matched by OrderViolationError.
	ErrOrderViolation = errors.New("step order violation")
	// ErrInvalidProposal is returned when a proposed record does not list
	// exactly the definition's steps.
	ErrInvalidProposal = errors.New("invalid proposed steps")
	// ErrUnknownKind is matched by UnknownKindError.
	ErrUnknownKind = errors.New("unknown workflow kind")
)

// OrderViolationError reports a step marked complete while an earlier step
// is not.
type OrderViolationError struct {
	Step    Step
	Missing Step
}

func (e *OrderViolationError) Error() string {
	return fmt.Sprintf("cannot mark %q complete before %q", e.Step.Label, e.Missing.Label)
}

func (e *OrderViolationError) Is(target error) bool { return target == ErrOrderViolation }

// UnknownKindError reports a kind with no registered definition.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown workflow kind %q", e.Kind)
}

func (e *UnknownKindError) Is(target error) bool { return target == ErrUnknownKind }
