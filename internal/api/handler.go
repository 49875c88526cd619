// Package api exposes the JSON HTTP surface: dataset registration and
// refresh, plan materialization, macros, API keys, and the query log.
// Handlers translate between wire DTOs and domain types; all business rules
// live in the services behind the interfaces below.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"quarry/internal/domain"
	"quarry/internal/service/query"
)

// maxBodyBytes caps request body size. Plans and dataset definitions are
// small; anything bigger is a client error.
const maxBodyBytes = 1 << 20

// DatasetRegistry manages dataset registration and file discovery.
type DatasetRegistry interface {
	Register(ctx context.Context, req domain.RegisterDatasetRequest) (*domain.Dataset, error)
	Get(ctx context.Context, name string) (*domain.Dataset, error)
	List(ctx context.Context, page domain.PageRequest) ([]domain.Dataset, int64, error)
	Files(ctx context.Context, name string) ([]domain.DatasetFile, error)
	Update(ctx context.Context, name string, req domain.UpdateDatasetRequest) (*domain.Dataset, error)
	Drop(ctx context.Context, name string) error
	Refresh(ctx context.Context, name string) (*domain.Dataset, error)
}

// QueryService materializes plans and serves the query log.
type QueryService interface {
	Run(ctx context.Context, spec domain.PlanSpec) (*domain.Result, error)
	Explain(ctx context.Context, spec domain.PlanSpec) (*domain.Explanation, error)
	History(ctx context.Context, filter domain.QueryLogFilter) ([]domain.QueryLogEntry, int64, error)
	Manifest(ctx context.Context, dataset, filter string) (*query.Manifest, error)
}

// MacroService manages filter macros.
type MacroService interface {
	Create(ctx context.Context, req domain.CreateMacroRequest) (*domain.Macro, error)
	Get(ctx context.Context, name string) (*domain.Macro, error)
	List(ctx context.Context, page domain.PageRequest) ([]domain.Macro, int64, error)
	Update(ctx context.Context, name string, req domain.UpdateMacroRequest) (*domain.Macro, error)
	Delete(ctx context.Context, name string) error
	Expand(ctx context.Context, req domain.ExpandMacroRequest) (string, error)
}

// APIKeyService manages API keys. Raw keys are returned once on create.
type APIKeyService interface {
	Create(ctx context.Context, req domain.CreateAPIKeyRequest) (string, *domain.APIKey, error)
	List(ctx context.Context, page domain.PageRequest) ([]domain.APIKey, int64, error)
	Delete(ctx context.Context, id string) error
}

// SchedulerReloader re-reads refresh crons after dataset changes. Optional;
// a nil reloader disables scheduled refresh without affecting the API.
type SchedulerReloader interface {
	Reload(ctx context.Context) error
}

// Deps bundles everything a Handler needs.
type Deps struct {
	Datasets  DatasetRegistry
	Queries   QueryService
	Macros    MacroService
	APIKeys   APIKeyService
	Scheduler SchedulerReloader
	Logger    *slog.Logger
}

// Handler implements the HTTP API.
type Handler struct {
	datasets  DatasetRegistry
	queries   QueryService
	macros    MacroService
	apiKeys   APIKeyService
	scheduler SchedulerReloader
	logger    *slog.Logger
}

// NewHandler creates the API handler.
func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		datasets:  deps.Datasets,
		queries:   deps.Queries,
		macros:    deps.Macros,
		apiKeys:   deps.APIKeys,
		scheduler: deps.Scheduler,
		logger:    logger.With("component", "api"),
	}
}

// writeJSON renders v as a JSON response with the given status.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", "error", err)
	}
}

// decodeJSON parses the request body into dst. On failure it writes a 400
// and returns false; callers should return immediately.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		h.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// pageFromRequest extracts pagination from max_results/page_token query
// params. Bounds are enforced by domain.PageRequest.Limit.
func pageFromRequest(r *http.Request) domain.PageRequest {
	page := domain.PageRequest{PageToken: r.URL.Query().Get("page_token")}
	if raw := r.URL.Query().Get("max_results"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			page.MaxResults = parsed
		}
	}
	return page
}

// reloadScheduler picks up refresh-cron changes after a dataset mutation.
// Failures are logged, never surfaced: the mutation already committed.
func (h *Handler) reloadScheduler(ctx context.Context) {
	if h.scheduler == nil {
		return
	}
	if err := h.scheduler.Reload(ctx); err != nil {
		h.logger.Warn("scheduler reload failed", "error", err)
	}
}
