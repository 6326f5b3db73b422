// Package kvstore is a generic key-value byte store. Every persisted
// collection is an opaque blob under its own key, so a corrupt value can
// never take the other collections down with it.
package kvstore

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
