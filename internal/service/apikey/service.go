// Package apikey manages API keys for programmatic access. Keys are stored
// as SHA-256 hashes; the raw key is returned exactly once at creation.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"quarry/internal/domain"
)

// Service provides API key management and authentication.
type Service struct {
	repo   domain.APIKeyRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates an API key Service.
func NewService(repo domain.APIKeyRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		logger: logger.With("component", "apikey"),
		now:    time.Now,
	}
}

// Create mints a new key. Admin only. The returned raw key is shown once and
// never stored; only its hash is persisted.
func (s *Service) Create(ctx context.Context, req domain.CreateAPIKeyRequest) (string, *domain.APIKey, error) {
	if err := requireAdmin(ctx); err != nil {
		return "", nil, err
	}
	if err := req.Validate(); err != nil {
		return "", nil, err
	}

	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		return "", nil, fmt.Errorf("generate key: %w", err)
	}
	rawKey := hex.EncodeToString(rawBytes)

	key := &domain.APIKey{
		ID:            uuid.NewString(),
		PrincipalName: req.PrincipalName,
		Name:          req.Name,
		KeyPrefix:     rawKey[:8],
		KeyHash:       HashKey(rawKey),
		IsAdmin:       req.IsAdmin,
		ExpiresAt:     req.ExpiresAt,
	}

	created, err := s.repo.Create(ctx, key)
	if err != nil {
		return "", nil, err
	}

	s.logger.Info("api key created",
		"key", created.Name,
		"principal", created.PrincipalName,
		"admin", created.IsAdmin,
	)
	return rawKey, created, nil
}

// List returns key metadata, never hashes or raw keys. Admin only.
func (s *Service) List(ctx context.Context, page domain.PageRequest) ([]domain.APIKey, int64, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, 0, err
	}
	keys, total, err := s.repo.List(ctx, page)
	if err != nil {
		return nil, 0, err
	}
	for i := range keys {
		keys[i].KeyHash = ""
	}
	return keys, total, nil
}

// Delete revokes a key by ID. Admin only.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("api key deleted", "id", id)
	return nil
}

// Authenticate resolves a raw key to its stored record. Expired and unknown
// keys both report access denied so callers cannot probe which keys exist.
func (s *Service) Authenticate(ctx context.Context, rawKey string) (*domain.APIKey, error) {
	if rawKey == "" {
		return nil, domain.ErrAccessDenied("api key required")
	}
	key, err := s.repo.GetByHash(ctx, HashKey(rawKey))
	if err != nil {
		return nil, domain.ErrAccessDenied("invalid api key")
	}
	if key.Expired(s.now()) {
		return nil, domain.ErrAccessDenied("invalid api key")
	}
	return key, nil
}

// HashKey returns the hex SHA-256 digest stored for a raw key.
func HashKey(rawKey string) string {
	h := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(h[:])
}

func requireAdmin(ctx context.Context) error {
	p, ok := domain.PrincipalFromContext(ctx)
	if !ok {
		return domain.ErrAccessDenied("authentication required")
	}
	if !p.IsAdmin {
		return domain.ErrAccessDenied("%q lacks admin privileges", p.Name)
	}
	return nil
}
