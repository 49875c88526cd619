// Package app wires the control plane, the DuckDB engine, object-store
// backends, and the service layer into a runnable quarry instance.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"quarry/internal/api"
	"quarry/internal/config"
	"quarry/internal/db/repository"
	"quarry/internal/engine"
	"quarry/internal/middleware"
	"quarry/internal/objstore"
	"quarry/internal/registry"
	"quarry/internal/scheduler"
	"quarry/internal/service/apikey"
	"quarry/internal/service/macro"
	"quarry/internal/service/query"
	"quarry/internal/ui"
)

// Deps holds the external dependencies that main() must provide.
// These are things the app package cannot (or should not) create itself:
// config and the SQLite control-plane pools.
type Deps struct {
	Cfg     *config.Config
	WriteDB *sql.DB
	ReadDB  *sql.DB
	Logger  *slog.Logger
}

// App holds the fully-wired application: registry, services, engine, and
// the handlers the router mounts.
type App struct {
	Registry  *registry.Registry
	Queries   *query.Service
	Macros    *macro.Service
	APIKeys   *apikey.Service
	Engine    *engine.Engine
	Store     *objstore.Router
	Scheduler *scheduler.Scheduler // nil when SCHEDULER_ENABLED=false
	Auth      *middleware.Authenticator
	API       *api.Handler
	UI        *ui.Handler // nil when UI_ENABLED=false
}

// New wires repositories, object-store backends, the engine, and services
// from the provided deps. It also seeds the bootstrap API key and registers
// any boot manifests.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	logger := deps.Logger

	// === Repositories ===
	// Every quarry repo both reads and writes, so they ride the serialized
	// write pool. The auth hot path gets its own repo on the read pool so
	// key lookups never queue behind dataset writes.
	datasetRepo := repository.NewDatasetRepo(deps.WriteDB)
	macroRepo := repository.NewMacroRepo(deps.WriteDB)
	queryLogRepo := repository.NewQueryLogRepo(deps.WriteDB)
	apiKeyRepo := repository.NewAPIKeyRepo(deps.WriteDB)

	// === Engine ===
	eng, err := engine.Open(ctx, engine.Settings{
		MemoryLimit: cfg.DuckDBMemoryLimit,
		Threads:     cfg.DuckDBThreads,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}

	// === Object stores ===
	store := objstore.NewRouter()
	setupObjectStores(ctx, cfg, store, eng, logger)

	// === Registry ===
	reg := registry.New(registry.Deps{
		Repo:               datasetRepo,
		Lister:             store,
		Inferrer:           eng,
		Logger:             logger,
		RefreshConcurrency: cfg.RefreshConcurrency,
	})

	// === Services ===
	macroSvc := macro.NewService(macroRepo, macro.NewRuntime(), logger)
	querySvc := query.NewService(query.ServiceDeps{
		Datasets:  datasetRepo,
		QueryLog:  queryLogRepo,
		Engine:    eng,
		Macros:    macroSvc,
		Presigner: store,
		Logger:    logger,
	})
	apiKeySvc := apikey.NewService(apiKeyRepo, logger)

	// === Seed + boot manifests ===
	if cfg.Auth.APIKeyEnabled {
		if err := seedBootstrapKey(ctx, apiKeySvc, logger); err != nil {
			eng.Close()
			return nil, err
		}
	}
	if cfg.DatasetsDir != "" {
		if err := registerBootManifests(ctx, reg, macroSvc, cfg.DatasetsDir, logger); err != nil {
			eng.Close()
			return nil, err
		}
	}

	// === Scheduler ===
	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		sched = scheduler.New(reg, datasetRepo, logger.With("component", "scheduler"))
	}

	// === Auth ===
	validators, err := buildJWTValidators(ctx, cfg.Auth)
	if err != nil {
		eng.Close()
		return nil, err
	}
	var authKeys middleware.APIKeyAuthenticator
	if cfg.Auth.APIKeyEnabled {
		authKeys = apikey.NewService(repository.NewAPIKeyRepo(deps.ReadDB), logger)
	}
	auth := middleware.NewAuthenticator(validators, authKeys, cfg.Auth, logger)

	// === HTTP handlers ===
	apiDeps := api.Deps{
		Datasets: reg,
		Queries:  querySvc,
		Macros:   macroSvc,
		APIKeys:  apiKeySvc,
		Logger:   logger,
	}
	// A nil *Scheduler must stay a nil interface, or the handler's nil
	// check would pass and Reload would panic.
	if sched != nil {
		apiDeps.Scheduler = sched
	}
	handler := api.NewHandler(apiDeps)

	var uiHandler *ui.Handler
	if cfg.UIEnabled {
		uiHandler = ui.NewHandler(reg, querySvc, cfg.Auth, cfg.IsProduction())
	}

	return &App{
		Registry:  reg,
		Queries:   querySvc,
		Macros:    macroSvc,
		APIKeys:   apiKeySvc,
		Engine:    eng,
		Store:     store,
		Scheduler: sched,
		Auth:      auth,
		API:       handler,
		UI:        uiHandler,
	}, nil
}

// Close releases the DuckDB session. The SQLite pools belong to main().
func (a *App) Close() error {
	return a.Engine.Close()
}

// setupObjectStores registers a lister/presigner per configured backend and
// installs the matching DuckDB secret so the engine can scan the same URIs.
// A backend that fails to initialize is skipped with a warning; local paths
// keep working either way.
func setupObjectStores(ctx context.Context, cfg *config.Config, store *objstore.Router, eng *engine.Engine, logger *slog.Logger) {
	if !cfg.HasS3Config() && !cfg.HasGCSConfig() && cfg.GCSCredentialsFile == "" && !cfg.HasAzureConfig() {
		return
	}

	// httpfs and azure extensions back every remote scheme. Installation
	// needs network access once; a failure here surfaces again at query
	// time with a clearer DuckDB error.
	if err := eng.InstallExtensions(ctx); err != nil {
		logger.Warn("duckdb extension setup failed", "error", err)
	}

	if cfg.HasS3Config() {
		s3Store, err := objstore.NewS3Store(cfg)
		if err != nil {
			logger.Warn("s3 backend unavailable", "error", err)
		} else {
			store.Register("s3", s3Store)
			endpoint := ""
			if cfg.S3Endpoint != nil {
				endpoint = *cfg.S3Endpoint
			}
			if err := eng.CreateS3Secret(ctx, "quarry_s3", *cfg.S3KeyID, *cfg.S3Secret, endpoint, *cfg.S3Region, cfg.S3URLStyle); err != nil {
				logger.Warn("s3 secret setup failed", "error", err)
			}
			logger.Info("s3 backend enabled", "region", *cfg.S3Region)
		}
	}

	if cfg.HasGCSConfig() || cfg.GCSCredentialsFile != "" {
		gcsStore, err := objstore.NewGCSStore(ctx, cfg)
		if err != nil {
			logger.Warn("gcs backend unavailable", "error", err)
		} else {
			store.Register("gs", gcsStore)
			if cfg.HasGCSConfig() {
				if err := eng.CreateGCSSecret(ctx, "quarry_gcs", cfg.GCSKeyID, cfg.GCSSecret); err != nil {
					logger.Warn("gcs secret setup failed", "error", err)
				}
			}
			logger.Info("gcs backend enabled")
		}
	}

	if cfg.HasAzureConfig() {
		azStore, err := objstore.NewAzureStore(cfg)
		if err != nil {
			logger.Warn("azure backend unavailable", "error", err)
		} else {
			store.Register("az", azStore)
			if err := eng.CreateAzureSecret(ctx, "quarry_azure", cfg.AzureAccountName, cfg.AzureAccountKey, cfg.AzureConnectionString); err != nil {
				logger.Warn("azure secret setup failed", "error", err)
			}
			logger.Info("azure backend enabled")
		}
	}
}

// buildJWTValidators assembles the validator chain: OIDC first when an
// identity provider is configured, then the HS256 dev validator. A
// configured provider that cannot be reached is fatal; serving with auth
// silently degraded is worse than not starting.
func buildJWTValidators(ctx context.Context, cfg config.AuthConfig) ([]middleware.JWTValidator, error) {
	var validators []middleware.JWTValidator

	if cfg.OIDCEnabled() {
		var (
			v   *middleware.OIDCValidator
			err error
		)
		if cfg.JWKSURL != "" {
			v, err = middleware.NewOIDCValidatorFromJWKS(ctx, cfg.JWKSURL, cfg.IssuerURL, cfg.Audience, cfg.AllowedIssuers)
		} else {
			v, err = middleware.NewOIDCValidator(ctx, cfg.IssuerURL, cfg.Audience, cfg.AllowedIssuers)
		}
		if err != nil {
			return nil, fmt.Errorf("oidc validator: %w", err)
		}
		validators = append(validators, v)
	}

	if cfg.JWTSecret != "" {
		v, err := middleware.NewHS256Validator(cfg.JWTSecret)
		if err != nil {
			return nil, fmt.Errorf("hs256 validator: %w", err)
		}
		validators = append(validators, v)
	}

	return validators, nil
}
