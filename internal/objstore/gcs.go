package objstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"quarry/internal/config"
	"quarry/internal/domain"
)

// Compile-time check.
var _ Store = (*GCSStore)(nil)

// GCSStore lists and signs objects in Google Cloud Storage.
type GCSStore struct {
	client *storage.Client
}

// NewGCSStore creates a GCSStore. A credentials file takes precedence over
// ambient application-default credentials.
func NewGCSStore(ctx context.Context, cfg *config.Config) (*GCSStore, error) {
	var opts []option.ClientOption
	if cfg.GCSCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GCSCredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSStore{client: client}, nil
}

// List enumerates objects under a gs://bucket/prefix location matching pattern.
func (s *GCSStore) List(ctx context.Context, location, pattern string) ([]domain.StorageObject, error) {
	bucket, prefix, err := parseGCSLocation(location)
	if err != nil {
		return nil, err
	}

	query := &storage.Query{}
	if prefix != "" {
		query.Prefix = prefix + "/"
	}

	var objects []domain.StorageObject
	it := s.client.Bucket(bucket).Objects(ctx, query)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s/%s: %w", bucket, prefix, err)
		}
		rel := attrs.Name
		if prefix != "" {
			rel = strings.TrimPrefix(attrs.Name, prefix+"/")
		}
		if !MatchPattern(pattern, rel) {
			continue
		}
		objects = append(objects, domain.StorageObject{
			Path:      "gs://" + bucket + "/" + attrs.Name,
			SizeBytes: attrs.Size,
		})
	}
	return objects, nil
}

// PresignDownload generates a signed GET URL for a gs:// object.
func (s *GCSStore) PresignDownload(_ context.Context, path string, expiry time.Duration) (string, error) {
	bucket, key, err := parseGCSPath(path)
	if err != nil {
		return "", err
	}

	signedURL, err := s.client.Bucket(bucket).SignedURL(key, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(expiry),
	})
	if err != nil {
		return "", fmt.Errorf("sign GetObject for %q: %w", path, err)
	}
	return signedURL, nil
}

// parseGCSPath extracts bucket and key from a "gs://bucket/path/to/file" URI.
func parseGCSPath(path string) (bucket, key string, err error) {
	bucket, key, err = parseGCSLocation(path)
	if err != nil {
		return "", "", err
	}
	if key == "" {
		return "", "", fmt.Errorf("empty key in GCS path %q", path)
	}
	return bucket, key, nil
}

func parseGCSLocation(location string) (bucket, prefix string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("parse GCS path %q: %w", location, err)
	}
	if u.Scheme != "gs" {
		return "", "", fmt.Errorf("expected gs:// scheme, got %q in %q", u.Scheme, location)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("empty bucket in GCS path %q", location)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}
