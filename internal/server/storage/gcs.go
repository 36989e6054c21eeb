package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"cloud.google.com/go/iam"
	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// allUsers is the IAM principal for anonymous access.
const allUsers = "allUsers"

// GCSConfig holds the service account and bucket the GCS backend uses.
type GCSConfig struct {
	ProjectID     string
	ClientEmail   string
	PrivateKey    string
	Bucket        string
	PublicURLBase string
}

// GCSStore is a Backend over a Google Cloud Storage (Firebase Storage) bucket.
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	cfg    GCSConfig
}

// NewGCSStore creates a storage client authenticated as the configured
// service account. Extra options are passed to the client; without a
// ClientEmail no credentials are attached, which suits local emulators.
func NewGCSStore(ctx context.Context, cfg GCSConfig, opts ...option.ClientOption) (*GCSStore, error) {
	if cfg.ClientEmail != "" {
		creds, err := json.Marshal(map[string]string{
			"type":         "service_account",
			"project_id":   cfg.ProjectID,
			"client_email": cfg.ClientEmail,
			"private_key":  cfg.PrivateKey,
			"token_uri":    "https://oauth2.googleapis.com/token",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode credentials: %w", err)
		}
		opts = append([]option.ClientOption{option.WithCredentialsJSON(creds)}, opts...)
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &GCSStore{
		client: client,
		bucket: client.Bucket(cfg.Bucket),
		cfg:    cfg,
	}, nil
}

// Upload streams r into key, preserving contentType as object metadata.
func (s *GCSStore) Upload(ctx context.Context, key string, r io.Reader, contentType string) (int64, error) {
	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType

	n, err := io.Copy(w, r)
	if err != nil {
		w.Close()
		return 0, fmt.Errorf("failed to upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize upload of %s: %w", key, err)
	}
	return n, nil
}

// List enumerates every object in the bucket.
func (s *GCSStore) List(ctx context.Context) ([]ObjectInfo, error) {
	var out []ObjectInfo
	it := s.bucket.Objects(ctx, nil)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list bucket %s: %w", s.cfg.Bucket, err)
		}
		out = append(out, attrsToInfo(attrs))
	}
	return out, nil
}

// Stat fetches the object's metadata.
func (s *GCSStore) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	attrs, err := s.bucket.Object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return ObjectInfo{}, ErrObjectNotFound
		}
		return ObjectInfo{}, fmt.Errorf("failed to get metadata for %s: %w", key, err)
	}
	return attrsToInfo(attrs), nil
}

// SignedURL issues a V4 signed GET URL. V4 caps the lifetime at seven days.
func (s *GCSStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.bucket.SignedURL(key, &storage.SignedURLOptions{
		GoogleAccessID: s.cfg.ClientEmail,
		PrivateKey:     []byte(s.cfg.PrivateKey),
		Method:         "GET",
		Expires:        time.Now().Add(ttl),
		Scheme:         storage.SigningSchemeV4,
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign URL for %s: %w", key, err)
	}
	return u, nil
}

// PublicURL builds the Firebase download URL; the whole key is escaped, "/" included.
func (s *GCSStore) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s/o/%s?alt=media", s.cfg.PublicURLBase, s.cfg.Bucket, url.PathEscape(key))
}

// Delete removes key.
func (s *GCSStore) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Object(key).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// CheckPublicRead inspects the bucket IAM policy for anonymous object read.
func (s *GCSStore) CheckPublicRead(ctx context.Context) (bool, error) {
	policy, err := s.bucket.IAM().Policy(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read IAM policy of %s: %w", s.cfg.Bucket, err)
	}
	return policy.HasRole(allUsers, iam.RoleName("roles/storage.objectViewer")) ||
		policy.HasRole(allUsers, iam.RoleName("roles/storage.legacyObjectReader")), nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func attrsToInfo(attrs *storage.ObjectAttrs) ObjectInfo {
	return ObjectInfo{
		Key:         attrs.Name,
		ContentType: attrs.ContentType,
		Size:        attrs.Size,
		CreatedAt:   attrs.Created,
	}
}
