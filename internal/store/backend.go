package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Fetch when the collection has never been written.
	ErrNotFound = errors.New("collection not found")

	// ErrConflict is returned by Store when the version token is stale or missing
	// for a backend that requires one.
	ErrConflict = errors.New("collection version conflict")
)

// Blob is the raw persisted collection and the version token the backend
// handed out for it.
type Blob struct {
	Data    []byte
	Version string
}

// Backend is a durable location for the collection blob.
//
// Fetch returns ErrNotFound when nothing is stored. Store replaces the whole
// blob; blob.Version must be the token from the most recent Fetch of the same
// backend, or empty when the backend never returned one.
type Backend interface {
	Name() string
	Fetch(ctx context.Context) (Blob, error)
	Store(ctx context.Context, blob Blob) error
}

// StoreError reports that every configured backend rejected a write.
// Its message is deliberately generic; the per-backend causes are available
// through errors.Is/As and are logged by the engine.
type StoreError struct {
	Errs []error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("all %d storage backends failed", len(e.Errs))
}

func (e *StoreError) Unwrap() []error {
	return e.Errs
}

// backendError tags an error with the backend that produced it.
type backendError struct {
	backend string
	op      string
	err     error
}

func (e *backendError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.backend, e.op, e.err)
}

func (e *backendError) Unwrap() error {
	return e.err
}
