package port

import (
	"context"
	"errors"
)

var ErrConflict = errors.New("concurrent update conflict")

// UpdateFunc computes the new value from the current one. ok is false when
// the key is absent. Returning an error aborts the update without writing.
type UpdateFunc func(current []byte, ok bool) ([]byte, error)

type LedgerStore interface {
	// Get reads a value, ok is false if the key does not exist
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Put overwrites the value unconditionally
	Put(ctx context.Context, key string, value []byte) error

	// Update atomically applies fn to the current value and stores the result
	Update(ctx context.Context, key string, fn UpdateFunc) ([]byte, error)

	Close() error
}
