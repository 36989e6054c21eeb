package storage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Lazy.Backend after Close.
var ErrClosed = errors.New("storage backend closed")

// OpenFunc constructs a backend.
type OpenFunc func(ctx context.Context) (Backend, error)

// Lazy creates the backend on first use and shares it afterwards.
// Only one open runs at a time, so at most one backend exists per handle.
// A failed open is not cached; the next caller retries.
type Lazy struct {
	open    OpenFunc
	current atomic.Pointer[Backend]

	mu     sync.Mutex
	closed bool
}

// NewLazy wraps open in an init-once handle.
func NewLazy(open OpenFunc) *Lazy {
	return &Lazy{open: open}
}

// Backend returns the shared backend, opening it if needed.
func (l *Lazy) Backend(ctx context.Context) (Backend, error) {
	if b := l.current.Load(); b != nil {
		return *b, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}
	if b := l.current.Load(); b != nil {
		return *b, nil
	}

	b, err := l.open(ctx)
	if err != nil {
		return nil, err
	}
	l.current.Store(&b)
	slog.Info("storage backend initialized")
	return b, nil
}

// Initialized reports whether the backend has been opened.
func (l *Lazy) Initialized() bool {
	return l.current.Load() != nil
}

// Close releases the backend if it was opened. Later calls to Backend fail
// with ErrClosed.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	b := l.current.Swap(nil)
	if b == nil {
		return nil
	}
	return (*b).Close()
}
