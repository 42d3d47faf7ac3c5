package blobstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a blob key has no stored content.
var ErrNotFound = errors.New("blob not found")

// PutResult describes one persisted blob payload.
type PutResult struct {
	SHA256    string
	SizeBytes int64
	Key       string
}

// Store is the byte-storage abstraction behind the local image backend.
type Store interface {
	Put(ctx context.Context, r io.Reader) (PutResult, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Size(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, key string) error
	Check(ctx context.Context) error
}
