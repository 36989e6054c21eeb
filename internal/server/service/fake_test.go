package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"vidadmin/internal/server/config"
	"vidadmin/internal/server/storage"
)

// fakeBackend is an in-memory storage.Backend that counts calls.
type fakeBackend struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	order   []string

	uploadErr error
	listErr   error
	signErr   error
	deleteErr error

	uploads atomic.Int32
	lists   atomic.Int32
	signs   atomic.Int32
	stats   atomic.Int32
	deletes atomic.Int32
}

type fakeObject struct {
	data        []byte
	contentType string
	createdAt   time.Time
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{objects: make(map[string]fakeObject)}
}

func (b *fakeBackend) put(key string, createdAt time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[key]; !ok {
		b.order = append(b.order, key)
	}
	b.objects[key] = fakeObject{createdAt: createdAt}
}

func (b *fakeBackend) Upload(_ context.Context, key string, r io.Reader, contentType string) (int64, error) {
	b.uploads.Add(1)
	if b.uploadErr != nil {
		return 0, b.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[key]; !ok {
		b.order = append(b.order, key)
	}
	b.objects[key] = fakeObject{data: data, contentType: contentType, createdAt: time.Now()}
	return int64(len(data)), nil
}

func (b *fakeBackend) List(context.Context) ([]storage.ObjectInfo, error) {
	b.lists.Add(1)
	if b.listErr != nil {
		return nil, b.listErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []storage.ObjectInfo
	for _, key := range b.order {
		if obj, ok := b.objects[key]; ok {
			out = append(out, storage.ObjectInfo{
				Key:         key,
				ContentType: obj.contentType,
				Size:        int64(len(obj.data)),
				CreatedAt:   obj.createdAt,
			})
		}
	}
	return out, nil
}

func (b *fakeBackend) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	b.stats.Add(1)
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	created := obj.createdAt
	if created.IsZero() {
		created = time.Unix(1746888137, 0).UTC()
	}
	return storage.ObjectInfo{Key: key, CreatedAt: created}, nil
}

func (b *fakeBackend) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	b.signs.Add(1)
	if b.signErr != nil {
		return "", b.signErr
	}
	return "https://signed.example/" + key + "?ttl=" + ttl.String(), nil
}

func (b *fakeBackend) PublicURL(key string) string {
	return "https://public.example/" + key
}

func (b *fakeBackend) Delete(_ context.Context, key string) error {
	b.deletes.Add(1)
	if b.deleteErr != nil {
		return b.deleteErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[key]; !ok {
		return storage.ErrObjectNotFound
	}
	delete(b.objects, key)
	return nil
}

func (b *fakeBackend) CheckPublicRead(context.Context) (bool, error) { return true, nil }
func (b *fakeBackend) Close() error                                  { return nil }

func (b *fakeBackend) keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// failingProvider never produces a backend.
type failingProvider struct{}

func (failingProvider) Backend(context.Context) (storage.Backend, error) {
	return nil, errors.New("credentials rejected")
}

func testConfig() *config.Config {
	return &config.Config{
		SignedURLTTL:      7 * 24 * time.Hour,
		MaxUploadSize:     1024,
		ListConcurrency:   4,
		URLCacheSize:      16,
		SeedEnabled:       true,
		SeedAdminEmail:    "admin@example.com",
		SeedAdminPassword: "admin123",
	}
}
