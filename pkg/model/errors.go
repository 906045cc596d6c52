package model

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the engine. Every error returned from a fallible
// operation wraps exactly one of these and can be tested with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrIO              = errors.New("i/o error")
	ErrCorrupt         = errors.New("corrupt durable state")
	ErrReadOnly        = errors.New("read-only violation")
	ErrNoTransaction   = errors.New("no active transaction")
	ErrConflict        = errors.New("transaction conflict")
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrInvalidIterator = errors.New("invalid iterator")
	ErrInvalidArgument = errors.New("invalid argument")
)

// ErrIteratorDone is returned by Current on an exhausted iterator.
var ErrIteratorDone = fmt.Errorf("%w: iterator exhausted", ErrInvalidIterator)

// IsRetryable reports whether the failed transaction may succeed when re-run from Begin.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// ObjectNotFoundError is returned when an operation names a node or edge id
// that is not live in the graph.
type ObjectNotFoundError struct {
	Object string
	ID     uint64
}

func (e *ObjectNotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Object, e.ID)
}

func (e *ObjectNotFoundError) Unwrap() error { return ErrNotFound }

// TypeMismatchError is returned when a property accessor or comparison is
// used against a value of a different kind.
type TypeMismatchError struct {
	Want Kind
	Got  Kind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: want %s, got %s", e.Want, e.Got)
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

// InvalidPropertyKeyError is returned when a property operation is given an empty key.
type InvalidPropertyKeyError struct {
	Key string
}

func (e *InvalidPropertyKeyError) Error() string {
	return fmt.Sprintf("invalid property key: %q", e.Key)
}

func (e *InvalidPropertyKeyError) Unwrap() error { return ErrInvalidArgument }

// ValidateKey checks that key can name a property.
func ValidateKey(key string) error {
	if key == "" {
		return &InvalidPropertyKeyError{Key: key}
	}
	return nil
}
