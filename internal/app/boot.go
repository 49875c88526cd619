package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"quarry/internal/declarative"
	"quarry/internal/domain"
	"quarry/internal/registry"
	"quarry/internal/service/macro"
)

// registerBootManifests registers datasets and macros declared under dir
// that are not yet present. Boot apply is create-only: existing resources
// are never mutated or dropped, that is `quarry apply`'s job. A manifest
// that fails to register is logged and skipped (best-effort).
func registerBootManifests(ctx context.Context, reg *registry.Registry, macros *macro.Service, dir string, logger *slog.Logger) error {
	state, err := declarative.LoadDirectory(dir)
	if err != nil {
		return fmt.Errorf("boot manifests: %w", err)
	}

	created := 0
	for _, ds := range state.Datasets {
		if _, err := reg.Get(ctx, ds.Name); err == nil {
			continue
		} else if !isNotFound(err) {
			return fmt.Errorf("boot manifests: check dataset %s: %w", ds.Name, err)
		}
		if _, err := reg.Register(ctx, ds.RegisterRequest()); err != nil {
			logger.Warn("boot manifest register failed", "dataset", ds.Name, "file", ds.FilePath, "error", err)
			continue
		}
		created++
	}

	for _, m := range state.Macros {
		if _, err := macros.Get(ctx, m.Name); err == nil {
			continue
		} else if !isNotFound(err) {
			return fmt.Errorf("boot manifests: check macro %s: %w", m.Name, err)
		}
		if _, err := macros.Create(ctx, m.CreateRequest()); err != nil {
			logger.Warn("boot manifest create failed", "macro", m.Name, "file", m.FilePath, "error", err)
			continue
		}
		created++
	}

	if created > 0 {
		logger.Info("registered boot manifests", "dir", dir, "created", created)
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *domain.NotFoundError
	return errors.As(err, &nf)
}
