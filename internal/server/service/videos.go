package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"strings"
	"time"

	"vidadmin/internal/server/config"
	"vidadmin/internal/server/storage"

	"golang.org/x/sync/errgroup"
)

// videoExtensions are the suffixes listed as videos, compared in lower case.
var videoExtensions = []string{".mp4", ".mov", ".avi"}

// videoContentTypes covers the formats the system MIME table may lack.
var videoContentTypes = map[string]string{
	".mp4": "video/mp4",
	".mov": "video/quicktime",
	".avi": "video/x-msvideo",
}

// UploadResult is returned after a successful upload.
type UploadResult struct {
	Success     bool   `json:"success"`
	DownloadURL string `json:"downloadURL"`
	FilePath    string `json:"filePath"`
	FileName    string `json:"fileName"`
}

// Video is one entry of the listing.
type Video struct {
	Name      string    `json:"name"`
	Folder    string    `json:"folder"`
	URL       string    `json:"url"`
	PublicURL string    `json:"publicUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

// VideoService contains the business logic for managing stored videos.
type VideoService struct {
	backends        storage.Provider
	scratch         *storage.ScratchDir
	names           *Namer
	urls            *URLCache
	signedURLTTL    time.Duration
	maxUploadSize   int64
	listConcurrency int
	now             func() time.Time
}

// NewVideoService creates a new video service.
func NewVideoService(backends storage.Provider, scratch *storage.ScratchDir, cfg *config.Config) *VideoService {
	return &VideoService{
		backends:        backends,
		scratch:         scratch,
		names:           &Namer{},
		urls:            NewURLCache(cfg.URLCacheSize, cfg.SignedURLTTL),
		signedURLTTL:    cfg.SignedURLTTL,
		maxUploadSize:   cfg.MaxUploadSize,
		listConcurrency: cfg.ListConcurrency,
		now:             time.Now,
	}
}

// Upload stages data in a scratch file, stores it under folder with a unique
// name and returns a signed download URL. size is the client-declared length
// (-1 if unknown); the staged byte count is enforced regardless.
func (s *VideoService) Upload(ctx context.Context, folderName, filename, contentType string, data io.Reader, size int64) (*UploadResult, error) {
	folder, err := ParseFolder(folderName)
	if err != nil {
		return nil, err
	}
	if filename == "" {
		return nil, &ValidationError{Field: "file", Reason: "is required"}
	}
	if size > s.maxUploadSize {
		return nil, ErrFileTooLarge
	}

	key := string(folder) + "/" + s.names.Next(filename, s.now())

	staged, err := s.scratch.Write(ctx, data, s.maxUploadSize)
	if err != nil {
		if errors.Is(err, storage.ErrScratchTooLarge) {
			return nil, ErrFileTooLarge
		}
		return nil, fmt.Errorf("failed to stage upload: %w", err)
	}
	defer staged.Release()

	backend, err := s.backends.Backend(ctx)
	if err != nil {
		return nil, upstream("storage init", err)
	}

	if contentType == "" || contentType == "application/octet-stream" {
		contentType = detectContentType(filename)
	}

	written, err := backend.Upload(ctx, key, staged, contentType)
	if err != nil {
		return nil, upstream("upload", err, "key", key)
	}

	url, err := s.signedURL(ctx, backend, key)
	if err != nil {
		return nil, upstream("sign url", err, "key", key)
	}

	uploadsTotal.WithLabelValues(string(folder)).Inc()
	uploadBytesTotal.Add(float64(written))

	slog.Info("video uploaded",
		"key", key,
		"original_name", filename,
		"content_type", contentType,
		"size", written,
	)

	return &UploadResult{
		Success:     true,
		DownloadURL: url,
		FilePath:    key,
		FileName:    path.Base(key),
	}, nil
}

// List returns every video in the bucket, in backend order, with a signed
// and a public URL each.
func (s *VideoService) List(ctx context.Context) ([]Video, error) {
	backend, err := s.backends.Backend(ctx)
	if err != nil {
		return nil, upstream("storage init", err)
	}

	objects, err := backend.List(ctx)
	if err != nil {
		return nil, upstream("list", err)
	}

	var candidates []storage.ObjectInfo
	for _, obj := range objects {
		if isVideo(obj.Key) {
			candidates = append(candidates, obj)
		}
	}

	// Slots keep backend order; a nil slot is an object deleted mid-listing.
	slots := make([]*Video, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.listConcurrency)

	for i, obj := range candidates {
		g.Go(func() error {
			video, err := s.describe(gctx, backend, obj)
			if err != nil {
				if errors.Is(err, storage.ErrObjectNotFound) {
					return nil
				}
				return fmt.Errorf("%s: %w", obj.Key, err)
			}
			slots[i] = video
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, upstream("list", err)
	}

	videos := make([]Video, 0, len(slots))
	for _, v := range slots {
		if v != nil {
			videos = append(videos, *v)
		}
	}
	return videos, nil
}

// Delete removes folder/name. It reports whether an object was actually
// removed; a missing object is not an error.
func (s *VideoService) Delete(ctx context.Context, folder, name string) (bool, error) {
	key, err := objectKey(folder, name)
	if err != nil {
		return false, err
	}

	backend, err := s.backends.Backend(ctx)
	if err != nil {
		return false, upstream("storage init", err)
	}

	s.urls.Delete(key)

	if err := backend.Delete(ctx, key); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			deletionsTotal.WithLabelValues("missing").Inc()
			slog.Info("delete of missing video", "key", key)
			return false, nil
		}
		return false, upstream("delete", err, "key", key)
	}

	deletionsTotal.WithLabelValues("deleted").Inc()
	slog.Info("video deleted", "key", key)
	return true, nil
}

// PublicURL builds the unauthenticated URL for folder/name without
// contacting the object store.
func (s *VideoService) PublicURL(ctx context.Context, folder, name string) (string, error) {
	key, err := objectKey(folder, name)
	if err != nil {
		return "", err
	}
	backend, err := s.backends.Backend(ctx)
	if err != nil {
		return "", upstream("storage init", err)
	}
	return backend.PublicURL(key), nil
}

func (s *VideoService) describe(ctx context.Context, backend storage.Backend, obj storage.ObjectInfo) (*Video, error) {
	url, err := s.signedURL(ctx, backend, obj.Key)
	if err != nil {
		return nil, fmt.Errorf("sign url: %w", err)
	}

	createdAt := obj.CreatedAt
	if createdAt.IsZero() {
		info, err := backend.Stat(ctx, obj.Key)
		if err != nil {
			return nil, fmt.Errorf("stat: %w", err)
		}
		createdAt = info.CreatedAt
	}

	folder, name := splitKey(obj.Key)
	return &Video{
		Name:      name,
		Folder:    folder,
		URL:       url,
		PublicURL: backend.PublicURL(obj.Key),
		CreatedAt: createdAt,
	}, nil
}

func (s *VideoService) signedURL(ctx context.Context, backend storage.Backend, key string) (string, error) {
	if url, ok := s.urls.Get(key); ok {
		return url, nil
	}
	url, err := backend.SignedURL(ctx, key, s.signedURLTTL)
	if err != nil {
		return "", err
	}
	s.urls.Set(key, url)
	return url, nil
}

func isVideo(key string) bool {
	ext := strings.ToLower(path.Ext(key))
	for _, v := range videoExtensions {
		if ext == v {
			return true
		}
	}
	return false
}

func detectContentType(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ct, ok := videoContentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
