package objectstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Get when no object exists at the key.
var ErrNotFound = errors.New("objectstore: key not found")

// ObjectMetadata rides along with a Put as provider-side object metadata.
type ObjectMetadata map[string]string

// Store is the narrow object-store port the backend depends on: durably
// store bytes at a key, retrievable by the same key.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string, meta ObjectMetadata) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	PublicURL(key string) string
}
