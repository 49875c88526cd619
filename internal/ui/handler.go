// Package ui serves a small read-only browser frontend: the dataset list,
// dataset detail with columns and files, and the query log. All mutations go
// through the JSON API or the CLI.
package ui

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"maragu.dev/gomponents"

	"quarry/internal/config"
	"quarry/internal/domain"
)

// DatasetSource provides read access to registered datasets.
type DatasetSource interface {
	List(ctx context.Context, page domain.PageRequest) ([]domain.Dataset, int64, error)
	Get(ctx context.Context, name string) (*domain.Dataset, error)
	Files(ctx context.Context, name string) ([]domain.DatasetFile, error)
}

// QueryLogSource provides read access to recorded materializations.
type QueryLogSource interface {
	History(ctx context.Context, filter domain.QueryLogFilter) ([]domain.QueryLogEntry, int64, error)
}

// Handler renders the UI pages.
type Handler struct {
	Datasets   DatasetSource
	Queries    QueryLogSource
	Auth       config.AuthConfig
	Production bool
}

// NewHandler creates the UI handler.
func NewHandler(datasets DatasetSource, queries QueryLogSource, auth config.AuthConfig, production bool) *Handler {
	return &Handler{
		Datasets:   datasets,
		Queries:    queries,
		Auth:       auth,
		Production: production,
	}
}

func pageFromRequest(r *http.Request, defaultPageSize int) domain.PageRequest {
	maxResults := defaultPageSize
	if maxResults <= 0 {
		maxResults = 25
	}
	if raw := r.URL.Query().Get("max_results"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			maxResults = parsed
		}
	}
	if maxResults < 1 {
		maxResults = 1
	}
	if maxResults > 200 {
		maxResults = 200
	}
	return domain.PageRequest{
		MaxResults: maxResults,
		PageToken:  r.URL.Query().Get("page_token"),
	}
}

func renderHTML(w http.ResponseWriter, status int, node gomponents.Node) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = node.Render(w)
}

func principalFromContext(ctx context.Context) domain.ContextPrincipal {
	p, ok := domain.PrincipalFromContext(ctx)
	if !ok {
		return domain.ContextPrincipal{Name: "unknown", Type: "user"}
	}
	return p
}

func (h *Handler) renderServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	title := "Unexpected Error"
	message := "An unexpected error occurred while loading this page."

	var notFound *domain.NotFoundError
	var accessDenied *domain.AccessDeniedError
	var validation *domain.ValidationError
	if errors.As(err, &notFound) {
		status = http.StatusNotFound
		title = "Not Found"
		message = notFound.Error()
	} else if errors.As(err, &accessDenied) {
		status = http.StatusForbidden
		title = "Access Denied"
		message = accessDenied.Error()
	} else if errors.As(err, &validation) {
		status = http.StatusBadRequest
		title = "Invalid Request"
		message = validation.Error()
	}

	_ = r
	renderHTML(w, status, errorPage(title, message))
}
