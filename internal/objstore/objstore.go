// Package objstore lists and presigns dataset files across local disk and
// object stores (s3://, gs://, az://).
package objstore

import (
	"context"
	"strings"
	"time"

	"quarry/internal/domain"
)

// Store combines listing and presigning for one storage backend.
type Store interface {
	domain.FileLister
	domain.FilePresigner
}

// Scheme classifies a dataset location by its URI scheme. Anything without a
// recognized scheme is treated as a local path.
func Scheme(location string) string {
	switch {
	case strings.HasPrefix(location, "s3://"):
		return "s3"
	case strings.HasPrefix(location, "gs://"):
		return "gs"
	case strings.HasPrefix(location, "az://"), strings.HasPrefix(location, "abfss://"):
		return "az"
	default:
		return "file"
	}
}

// Router dispatches list and presign calls to the backend matching the
// location's scheme. Local disk is always available; object-store backends
// are registered only when credentials are configured.
type Router struct {
	backends map[string]Store
}

// Compile-time checks.
var _ domain.FileLister = (*Router)(nil)
var _ domain.FilePresigner = (*Router)(nil)

// NewRouter creates a Router with the local backend pre-registered.
func NewRouter() *Router {
	return &Router{backends: map[string]Store{"file": NewLocalStore()}}
}

// Register attaches a backend for a scheme ("s3", "gs", "az").
func (r *Router) Register(scheme string, s Store) {
	r.backends[scheme] = s
}

// List enumerates the files under location matching pattern.
func (r *Router) List(ctx context.Context, location, pattern string) ([]domain.StorageObject, error) {
	s, err := r.storeFor(location)
	if err != nil {
		return nil, err
	}
	return s.List(ctx, location, pattern)
}

// PresignDownload produces a time-limited GET URL for a stored file.
func (r *Router) PresignDownload(ctx context.Context, path string, expiry time.Duration) (string, error) {
	s, err := r.storeFor(path)
	if err != nil {
		return "", err
	}
	return s.PresignDownload(ctx, path, expiry)
}

func (r *Router) storeFor(location string) (Store, error) {
	scheme := Scheme(location)
	s, ok := r.backends[scheme]
	if !ok {
		return nil, domain.ErrValidation("no credentials configured for %s:// locations", scheme)
	}
	return s, nil
}
