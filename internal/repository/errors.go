package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced chat log entry or metric row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable matches every failure of the persistence layer itself.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// StoreError wraps a driver error with the repository operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
