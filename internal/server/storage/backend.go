package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned when a key does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key         string
	ContentType string
	Size        int64
	CreatedAt   time.Time
}

// Backend is the object store holding the videos.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Upload stores r under key with the given content type.
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (int64, error)
	// List enumerates every object in the bucket in backend order.
	List(ctx context.Context) ([]ObjectInfo, error)
	// Stat returns the metadata of a single object.
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	// SignedURL returns a read URL for key valid for ttl.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	// PublicURL builds the unauthenticated URL for key. It performs no I/O.
	PublicURL(key string) string
	// Delete removes key, returning ErrObjectNotFound if it was absent.
	Delete(ctx context.Context, key string) error
	// CheckPublicRead reports whether unauthenticated reads are permitted.
	CheckPublicRead(ctx context.Context) (bool, error)
	Close() error
}

// Provider hands out the process-wide backend.
type Provider interface {
	Backend(ctx context.Context) (Backend, error)
}

// Fixed is a Provider over an already constructed backend.
type Fixed struct {
	B Backend
}

func (f Fixed) Backend(context.Context) (Backend, error) {
	return f.B, nil
}
