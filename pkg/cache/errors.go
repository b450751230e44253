package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrPersistence indicates the backing storage is unreachable or a write failed
	ErrPersistence = errors.New("persistence error")

	// ErrInvalidKey indicates the cache key cannot be built
	ErrInvalidKey = errors.New("invalid cache key")

	// ErrInvalidEntry indicates a stored entry is corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// PersistenceError reports a storage failure in one backend operation.
// It matches ErrPersistence with errors.Is.
type PersistenceError struct {
	Backend string
	Op      string
	Err     error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrPersistence.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// NewPersistenceError wraps err for the given backend and operation.
func NewPersistenceError(backend, op string, err error) error {
	return &PersistenceError{Backend: backend, Op: op, Err: err}
}
