package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vidadmin/internal/server/auth"
	"vidadmin/internal/server/config"
	"vidadmin/internal/server/database"
	"vidadmin/internal/server/service"
	"vidadmin/internal/server/storage"
	"vidadmin/internal/server/web"

	"github.com/labstack/echo/v4"
)

// countingBackend wraps the filesystem backend and counts every I/O call.
type countingBackend struct {
	*storage.FileSystemStore
	calls     atomic.Int32
	uploadErr error
}

func (b *countingBackend) Upload(ctx context.Context, key string, r io.Reader, ct string) (int64, error) {
	b.calls.Add(1)
	if b.uploadErr != nil {
		return 0, b.uploadErr
	}
	return b.FileSystemStore.Upload(ctx, key, r, ct)
}

func (b *countingBackend) List(ctx context.Context) ([]storage.ObjectInfo, error) {
	b.calls.Add(1)
	return b.FileSystemStore.List(ctx)
}

func (b *countingBackend) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	b.calls.Add(1)
	return b.FileSystemStore.Stat(ctx, key)
}

func (b *countingBackend) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	b.calls.Add(1)
	return b.FileSystemStore.SignedURL(ctx, key, ttl)
}

func (b *countingBackend) Delete(ctx context.Context, key string) error {
	b.calls.Add(1)
	return b.FileSystemStore.Delete(ctx, key)
}

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]*database.User
}

func (s *memoryUsers) FindByEmail(_ context.Context, email string) (*database.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return nil, database.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *memoryUsers) Create(_ context.Context, u *database.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Email]; ok {
		return database.ErrDuplicateEmail
	}
	u.ID = strconv.Itoa(len(s.users) + 1)
	copied := *u
	s.users[u.Email] = &copied
	return nil
}

func (s *memoryUsers) HealthCheck(context.Context) error { return nil }
func (s *memoryUsers) Close(context.Context) error       { return nil }

type testEnv struct {
	e       *echo.Echo
	cfg     *config.Config
	backend *countingBackend
	scratch string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		BaseURL:           "http://example.test",
		StorageBackend:    config.BackendFS,
		SessionTTL:        time.Hour,
		SignedURLTTL:      time.Hour,
		MaxUploadSize:     1 << 20,
		ListConcurrency:   4,
		URLCacheSize:      16,
		LoginRateRPS:      100,
		LoginRateBurst:    100,
		SeedEnabled:       true,
		SeedAdminEmail:    "admin@example.com",
		SeedAdminPassword: "admin123",
	}

	backend := &countingBackend{
		FileSystemStore: storage.NewFileSystemStore(t.TempDir(), cfg.BaseURL, []byte("media-key"), false),
	}
	lazy := storage.NewLazy(func(context.Context) (storage.Backend, error) {
		return backend, nil
	})

	scratchDir := t.TempDir()
	users := &memoryUsers{users: make(map[string]*database.User)}
	accounts := service.NewAuthService(users, auth.NewTokenManager([]byte("session-key"), cfg.SessionTTL, "vidadmin"), cfg)
	videos := service.NewVideoService(lazy, storage.NewScratchDir(scratchDir), cfg)

	renderer, err := web.NewRenderer()
	if err != nil {
		t.Fatalf("failed to build renderer: %v", err)
	}

	handler := NewHandler(videos, accounts, users, lazy, cfg)
	limiter := NewRateLimiter(cfg.LoginRateRPS, cfg.LoginRateBurst)
	return &testEnv{
		e:       SetupRouter(handler, accounts, limiter, renderer, cfg),
		cfg:     cfg,
		backend: backend,
		scratch: scratchDir,
	}
}

func (env *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

// login seeds the admin and returns a bearer token.
func (env *testEnv) login(t *testing.T) string {
	t.Helper()
	if rec := env.do(httptest.NewRequest(http.MethodGet, "/api/seed", nil)); rec.Code != http.StatusOK {
		t.Fatalf("seed failed: %d %s", rec.Code, rec.Body.String())
	}

	req := jsonRequest(http.MethodPost, "/api/auth/login", `{"email":"admin@example.com","password":"admin123"}`)
	rec := env.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Token string `json:"token"`
	}
	decode(t, rec, &body)
	return body.Token
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func withToken(req *http.Request, token string) *http.Request {
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	return req
}

func uploadRequest(t *testing.T, folder, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if folder != "" {
		w.WriteField("folder", folder)
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write([]byte(content))
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	decode(t, rec, &body)
	return body.Error.Code
}
