package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")

// Storage is a flat keyspace of byte blobs. Keys are slash-separated
// relative paths. Put is atomic: readers never observe partial writes.
type Storage interface {
	Has(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, content []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Rename(ctx context.Context, oldKey, newKey string) error
	// List returns the keys directly under prefix, without recursing.
	List(ctx context.Context, prefix string) ([]string, error)
	// Dirs returns the names of key groups directly under prefix.
	Dirs(ctx context.Context, prefix string) ([]string, error)
	// RemoveAll deletes every key under prefix.
	RemoveAll(ctx context.Context, prefix string) error
}
