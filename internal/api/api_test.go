package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"quarry/internal/domain"
	"quarry/internal/service/query"
)

type mockDatasets struct {
	RegisterFn func(ctx context.Context, req domain.RegisterDatasetRequest) (*domain.Dataset, error)
	GetFn      func(ctx context.Context, name string) (*domain.Dataset, error)
	ListFn     func(ctx context.Context, page domain.PageRequest) ([]domain.Dataset, int64, error)
	FilesFn    func(ctx context.Context, name string) ([]domain.DatasetFile, error)
	UpdateFn   func(ctx context.Context, name string, req domain.UpdateDatasetRequest) (*domain.Dataset, error)
	DropFn     func(ctx context.Context, name string) error
	RefreshFn  func(ctx context.Context, name string) (*domain.Dataset, error)
}

var _ DatasetRegistry = (*mockDatasets)(nil)

func (m *mockDatasets) Register(ctx context.Context, req domain.RegisterDatasetRequest) (*domain.Dataset, error) {
	if m.RegisterFn == nil {
		panic("unexpected call to mockDatasets.Register")
	}
	return m.RegisterFn(ctx, req)
}

func (m *mockDatasets) Get(ctx context.Context, name string) (*domain.Dataset, error) {
	if m.GetFn == nil {
		panic("unexpected call to mockDatasets.Get")
	}
	return m.GetFn(ctx, name)
}

func (m *mockDatasets) List(ctx context.Context, page domain.PageRequest) ([]domain.Dataset, int64, error) {
	if m.ListFn == nil {
		panic("unexpected call to mockDatasets.List")
	}
	return m.ListFn(ctx, page)
}

func (m *mockDatasets) Files(ctx context.Context, name string) ([]domain.DatasetFile, error) {
	if m.FilesFn == nil {
		panic("unexpected call to mockDatasets.Files")
	}
	return m.FilesFn(ctx, name)
}

func (m *mockDatasets) Update(ctx context.Context, name string, req domain.UpdateDatasetRequest) (*domain.Dataset, error) {
	if m.UpdateFn == nil {
		panic("unexpected call to mockDatasets.Update")
	}
	return m.UpdateFn(ctx, name, req)
}

func (m *mockDatasets) Drop(ctx context.Context, name string) error {
	if m.DropFn == nil {
		panic("unexpected call to mockDatasets.Drop")
	}
	return m.DropFn(ctx, name)
}

func (m *mockDatasets) Refresh(ctx context.Context, name string) (*domain.Dataset, error) {
	if m.RefreshFn == nil {
		panic("unexpected call to mockDatasets.Refresh")
	}
	return m.RefreshFn(ctx, name)
}

type mockQueries struct {
	RunFn      func(ctx context.Context, spec domain.PlanSpec) (*domain.Result, error)
	ExplainFn  func(ctx context.Context, spec domain.PlanSpec) (*domain.Explanation, error)
	HistoryFn  func(ctx context.Context, filter domain.QueryLogFilter) ([]domain.QueryLogEntry, int64, error)
	ManifestFn func(ctx context.Context, dataset, filter string) (*query.Manifest, error)
}

var _ QueryService = (*mockQueries)(nil)

func (m *mockQueries) Run(ctx context.Context, spec domain.PlanSpec) (*domain.Result, error) {
	if m.RunFn == nil {
		panic("unexpected call to mockQueries.Run")
	}
	return m.RunFn(ctx, spec)
}

func (m *mockQueries) Explain(ctx context.Context, spec domain.PlanSpec) (*domain.Explanation, error) {
	if m.ExplainFn == nil {
		panic("unexpected call to mockQueries.Explain")
	}
	return m.ExplainFn(ctx, spec)
}

func (m *mockQueries) History(ctx context.Context, filter domain.QueryLogFilter) ([]domain.QueryLogEntry, int64, error) {
	if m.HistoryFn == nil {
		panic("unexpected call to mockQueries.History")
	}
	return m.HistoryFn(ctx, filter)
}

func (m *mockQueries) Manifest(ctx context.Context, dataset, filter string) (*query.Manifest, error) {
	if m.ManifestFn == nil {
		panic("unexpected call to mockQueries.Manifest")
	}
	return m.ManifestFn(ctx, dataset, filter)
}

type mockMacros struct {
	CreateFn func(ctx context.Context, req domain.CreateMacroRequest) (*domain.Macro, error)
	GetFn    func(ctx context.Context, name string) (*domain.Macro, error)
	ListFn   func(ctx context.Context, page domain.PageRequest) ([]domain.Macro, int64, error)
	UpdateFn func(ctx context.Context, name string, req domain.UpdateMacroRequest) (*domain.Macro, error)
	DeleteFn func(ctx context.Context, name string) error
	ExpandFn func(ctx context.Context, req domain.ExpandMacroRequest) (string, error)
}

var _ MacroService = (*mockMacros)(nil)

func (m *mockMacros) Create(ctx context.Context, req domain.CreateMacroRequest) (*domain.Macro, error) {
	if m.CreateFn == nil {
		panic("unexpected call to mockMacros.Create")
	}
	return m.CreateFn(ctx, req)
}

func (m *mockMacros) Get(ctx context.Context, name string) (*domain.Macro, error) {
	if m.GetFn == nil {
		panic("unexpected call to mockMacros.Get")
	}
	return m.GetFn(ctx, name)
}

func (m *mockMacros) List(ctx context.Context, page domain.PageRequest) ([]domain.Macro, int64, error) {
	if m.ListFn == nil {
		panic("unexpected call to mockMacros.List")
	}
	return m.ListFn(ctx, page)
}

func (m *mockMacros) Update(ctx context.Context, name string, req domain.UpdateMacroRequest) (*domain.Macro, error) {
	if m.UpdateFn == nil {
		panic("unexpected call to mockMacros.Update")
	}
	return m.UpdateFn(ctx, name, req)
}

func (m *mockMacros) Delete(ctx context.Context, name string) error {
	if m.DeleteFn == nil {
		panic("unexpected call to mockMacros.Delete")
	}
	return m.DeleteFn(ctx, name)
}

func (m *mockMacros) Expand(ctx context.Context, req domain.ExpandMacroRequest) (string, error) {
	if m.ExpandFn == nil {
		panic("unexpected call to mockMacros.Expand")
	}
	return m.ExpandFn(ctx, req)
}

type mockAPIKeys struct {
	CreateFn func(ctx context.Context, req domain.CreateAPIKeyRequest) (string, *domain.APIKey, error)
	ListFn   func(ctx context.Context, page domain.PageRequest) ([]domain.APIKey, int64, error)
	DeleteFn func(ctx context.Context, id string) error
}

var _ APIKeyService = (*mockAPIKeys)(nil)

func (m *mockAPIKeys) Create(ctx context.Context, req domain.CreateAPIKeyRequest) (string, *domain.APIKey, error) {
	if m.CreateFn == nil {
		panic("unexpected call to mockAPIKeys.Create")
	}
	return m.CreateFn(ctx, req)
}

func (m *mockAPIKeys) List(ctx context.Context, page domain.PageRequest) ([]domain.APIKey, int64, error) {
	if m.ListFn == nil {
		panic("unexpected call to mockAPIKeys.List")
	}
	return m.ListFn(ctx, page)
}

func (m *mockAPIKeys) Delete(ctx context.Context, id string) error {
	if m.DeleteFn == nil {
		panic("unexpected call to mockAPIKeys.Delete")
	}
	return m.DeleteFn(ctx, id)
}

type mockScheduler struct {
	ReloadFn func(ctx context.Context) error
}

var _ SchedulerReloader = (*mockScheduler)(nil)

func (m *mockScheduler) Reload(ctx context.Context) error {
	if m.ReloadFn == nil {
		panic("unexpected call to mockScheduler.Reload")
	}
	return m.ReloadFn(ctx)
}

func adminPrincipal() domain.ContextPrincipal {
	return domain.ContextPrincipal{Name: "root", IsAdmin: true, Type: "user"}
}

func readerPrincipal() domain.ContextPrincipal {
	return domain.ContextPrincipal{Name: "reader", Type: "user"}
}

// newTestServer mounts the API under /v1 behind a fixed test principal,
// standing in for the real auth middleware.
func newTestServer(t *testing.T, deps Deps, principal domain.ContextPrincipal) *httptest.Server {
	t.Helper()
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	h := NewHandler(deps)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(domain.WithPrincipal(req.Context(), principal)))
		})
	})
	r.Mount("/v1", h.Routes())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// doJSON issues a request with an optional JSON body and returns the response.
func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// decodeBody reads the response body into T and closes it.
func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}
