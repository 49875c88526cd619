package app

import (
	"context"
	"fmt"
	"log/slog"

	"quarry/internal/domain"
	"quarry/internal/service/apikey"
)

// seedBootstrapKey mints the first admin API key when the store holds none.
// Idempotent: any existing key, admin or not, means the instance is already
// bootstrapped. The raw key is logged exactly once; only its hash is stored.
func seedBootstrapKey(ctx context.Context, keys *apikey.Service, logger *slog.Logger) error {
	_, total, err := keys.List(ctx, domain.PageRequest{MaxResults: 1})
	if err != nil {
		return fmt.Errorf("list api keys: %w", err)
	}
	if total > 0 {
		return nil
	}

	raw, key, err := keys.Create(ctx, domain.CreateAPIKeyRequest{
		PrincipalName: "admin",
		Name:          "bootstrap",
		IsAdmin:       true,
	})
	if err != nil {
		return fmt.Errorf("create bootstrap key: %w", err)
	}

	logger.Info("bootstrap admin API key created; store it now, it will not be shown again",
		"name", key.Name,
		"principal", key.PrincipalName,
		"key", raw,
	)
	return nil
}
