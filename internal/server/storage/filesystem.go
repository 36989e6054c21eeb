package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// partialPrefix marks files that are still being written.
const partialPrefix = ".partial-"

// FileSystemStore keeps objects on the local filesystem, one file per key.
// Signed URLs point at the server's own /media route and carry an HS256 token.
type FileSystemStore struct {
	basePath   string
	baseURL    string
	signingKey []byte
	publicRead bool
}

// NewFileSystemStore creates a new filesystem storage backend.
func NewFileSystemStore(basePath, baseURL string, signingKey []byte, publicRead bool) *FileSystemStore {
	return &FileSystemStore{
		basePath:   basePath,
		baseURL:    strings.TrimRight(baseURL, "/"),
		signingKey: signingKey,
		publicRead: publicRead,
	}
}

// EnsureDir creates the storage directory if it doesn't exist.
func (s *FileSystemStore) EnsureDir() error {
	if err := os.MkdirAll(s.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory %s: %w", s.basePath, err)
	}
	return nil
}

// Upload writes r to a partial file next to the destination and renames it
// into place, so readers never observe a half-written object.
func (s *FileSystemStore) Upload(ctx context.Context, key string, r io.Reader, _ string) (int64, error) {
	dst, err := s.filePath(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), partialPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("failed to create file for %s: %w", key, err)
	}

	n, err := io.Copy(tmp, contextReader{ctx: ctx, r: r})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("failed to write file: %w", err)
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("failed to move file into place: %w", err)
	}
	return n, nil
}

// List walks the storage directory in lexical order.
func (s *FileSystemStore) List(ctx context.Context) ([]ObjectInfo, error) {
	var out []ObjectInfo
	err := filepath.WalkDir(s.basePath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == s.basePath {
				return fs.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), partialPrefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.basePath, p)
		if err != nil {
			return err
		}
		out = append(out, s.objectInfo(filepath.ToSlash(rel), info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.basePath, err)
	}
	return out, nil
}

// Stat returns metadata for key.
func (s *FileSystemStore) Stat(_ context.Context, key string) (ObjectInfo, error) {
	p, err := s.filePath(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ObjectInfo{}, ErrObjectNotFound
		}
		return ObjectInfo{}, fmt.Errorf("failed to stat file: %w", err)
	}
	return s.objectInfo(key, info), nil
}

// GetPath returns the absolute path to a stored object.
func (s *FileSystemStore) GetPath(key string) (string, error) {
	p, err := s.filePath(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrObjectNotFound
		}
		return "", fmt.Errorf("failed to stat file: %w", err)
	}
	return p, nil
}

// SignedURL returns a /media URL carrying a token bound to key.
func (s *FileSystemStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	now := time.Now()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   key,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign URL for %s: %w", key, err)
	}
	return s.PublicURL(key) + "?token=" + url.QueryEscape(token), nil
}

// VerifyToken reports whether token grants read access to key.
func (s *FileSystemStore) VerifyToken(key, token string) bool {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	return err == nil && claims.Subject == key
}

// PublicURL returns the /media URL for key.
func (s *FileSystemStore) PublicURL(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/media/" + strings.Join(segments, "/")
}

// PublicRead reports whether /media serves objects without a token.
func (s *FileSystemStore) PublicRead() bool {
	return s.publicRead
}

// CheckPublicRead reflects FS_PUBLIC_READ.
func (s *FileSystemStore) CheckPublicRead(context.Context) (bool, error) {
	return s.publicRead, nil
}

// Delete removes the stored file for key.
func (s *FileSystemStore) Delete(_ context.Context, key string) error {
	p, err := s.filePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("failed to delete file %s: %w", p, err)
	}
	return nil
}

func (s *FileSystemStore) Close() error {
	return nil
}

// filePath maps a key to a path under basePath, rejecting keys that would escape it.
func (s *FileSystemStore) filePath(key string) (string, error) {
	clean := path.Clean("/" + key)[1:]
	if key == "" || clean != key || strings.HasPrefix(path.Base(key), partialPrefix) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.basePath, filepath.FromSlash(key)), nil
}

func (s *FileSystemStore) objectInfo(key string, info fs.FileInfo) ObjectInfo {
	contentType := mime.TypeByExtension(strings.ToLower(path.Ext(key)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return ObjectInfo{
		Key:         key,
		ContentType: contentType,
		Size:        info.Size(),
		CreatedAt:   info.ModTime().UTC(),
	}
}
