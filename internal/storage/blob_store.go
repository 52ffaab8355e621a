// Package storage stores uploaded book images and hands back stable
// references embeddable in client-facing URLs.
package storage

import (
	"context"
	"io"
)

// BlobStore persists uploaded image bytes under a server-chosen name.
// The returned reference always uses forward slashes regardless of the
// host filesystem.
type BlobStore interface {
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (ref string, err error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
}
