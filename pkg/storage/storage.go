// Package storage defines the durable key-value collaborator the registry
// persists through: named byte blobs with all-or-nothing writes. No storage
// engine is mandated; Redis and in-memory implementations are provided.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no blob exists under the key.
var ErrNotFound = errors.New("storage: key not found")

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Well-known blob names. Favourites, sort preferences and lookup history
// persist together as one blob under KeyFavourites.
const (
	KeyFavourites   = "favourites"
	KeyDataSheet    = "data_sheet"
	KeyDataChecksum = "data_checksum"
)
