package macro

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quarry/internal/domain"
)

// mockMacroRepo implements domain.MacroRepository via function fields;
// unwired methods panic so tests fail loudly on unexpected calls.
type mockMacroRepo struct {
	CreateFn    func(ctx context.Context, m *domain.Macro) (*domain.Macro, error)
	GetByNameFn func(ctx context.Context, name string) (*domain.Macro, error)
	ListFn      func(ctx context.Context, page domain.PageRequest) ([]domain.Macro, int64, error)
	UpdateFn    func(ctx context.Context, m *domain.Macro) error
	DeleteFn    func(ctx context.Context, name string) error
}

func (m *mockMacroRepo) Create(ctx context.Context, mc *domain.Macro) (*domain.Macro, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, mc)
	}
	panic("unexpected call to mockMacroRepo.Create")
}

func (m *mockMacroRepo) GetByName(ctx context.Context, name string) (*domain.Macro, error) {
	if m.GetByNameFn != nil {
		return m.GetByNameFn(ctx, name)
	}
	panic("unexpected call to mockMacroRepo.GetByName")
}

func (m *mockMacroRepo) List(ctx context.Context, page domain.PageRequest) ([]domain.Macro, int64, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, page)
	}
	panic("unexpected call to mockMacroRepo.List")
}

func (m *mockMacroRepo) Update(ctx context.Context, mc *domain.Macro) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, mc)
	}
	panic("unexpected call to mockMacroRepo.Update")
}

func (m *mockMacroRepo) Delete(ctx context.Context, name string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, name)
	}
	panic("unexpected call to mockMacroRepo.Delete")
}

var _ domain.MacroRepository = (*mockMacroRepo)(nil)

// macroStore wires the mock into a tiny in-memory store keyed by name.
func macroStore(t *testing.T) (*mockMacroRepo, map[string]*domain.Macro) {
	t.Helper()
	store := map[string]*domain.Macro{}
	repo := &mockMacroRepo{
		CreateFn: func(_ context.Context, m *domain.Macro) (*domain.Macro, error) {
			if _, exists := store[m.Name]; exists {
				return nil, domain.ErrConflict("macro %q already exists", m.Name)
			}
			cp := *m
			cp.ID = "m-" + m.Name
			store[m.Name] = &cp
			return &cp, nil
		},
		GetByNameFn: func(_ context.Context, name string) (*domain.Macro, error) {
			m, ok := store[name]
			if !ok {
				return nil, domain.ErrNotFound("macro %q not found", name)
			}
			cp := *m
			return &cp, nil
		},
		UpdateFn: func(_ context.Context, m *domain.Macro) error {
			if _, ok := store[m.Name]; !ok {
				return domain.ErrNotFound("macro %q not found", m.Name)
			}
			cp := *m
			store[m.Name] = &cp
			return nil
		},
		DeleteFn: func(_ context.Context, name string) error {
			if _, ok := store[name]; !ok {
				return domain.ErrNotFound("macro %q not found", name)
			}
			delete(store, name)
			return nil
		},
	}
	return repo, store
}

func newTestService(t *testing.T) (*Service, map[string]*domain.Macro) {
	t.Helper()
	repo, store := macroStore(t)
	return NewService(repo, NewRuntime(), slog.New(slog.DiscardHandler)), store
}

func TestService_CreateCompilesUpFront(t *testing.T) {
	svc, store := newTestService(t)

	_, err := svc.Create(context.Background(), domain.CreateMacroRequest{
		Name: "broken",
		Body: "return (((",
	})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, store)

	m, err := svc.Create(context.Background(), domain.CreateMacroRequest{
		Name:       "min_total",
		Parameters: []string{"threshold"},
		Body:       `"total > " + str(threshold)`,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.MacroStatusActive, m.Status)
	assert.Contains(t, store, "min_total")
}

func TestService_CreateOwnerFromPrincipal(t *testing.T) {
	svc, store := newTestService(t)

	ctx := domain.WithPrincipal(context.Background(), domain.ContextPrincipal{Name: "bob"})
	_, err := svc.Create(ctx, domain.CreateMacroRequest{Name: "one", Body: `"1 = 1"`})
	require.NoError(t, err)
	assert.Equal(t, "bob", store["one"].Owner)
}

func TestService_UpdateRecompiles(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), domain.CreateMacroRequest{
		Name: "one", Body: `"1 = 1"`,
	})
	require.NoError(t, err)

	bad := "return ((("
	_, err = svc.Update(context.Background(), "one", domain.UpdateMacroRequest{Body: &bad})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)

	good := `"2 = 2"`
	status := domain.MacroStatusDeprecated
	m, err := svc.Update(context.Background(), "one", domain.UpdateMacroRequest{Body: &good, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, good, m.Body)
	assert.Equal(t, domain.MacroStatusDeprecated, m.Status)

	invalid := "RETIRED"
	_, err = svc.Update(context.Background(), "one", domain.UpdateMacroRequest{Status: &invalid})
	require.ErrorAs(t, err, &verr)
}

func TestService_Expand(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), domain.CreateMacroRequest{
		Name:       "in_region",
		Parameters: []string{"region"},
		Body:       `"region = '%s'" % region`,
	})
	require.NoError(t, err)

	out, err := svc.Expand(context.Background(), domain.ExpandMacroRequest{
		Name: "in_region",
		Args: map[string]string{"region": "'eu'"},
	})
	require.NoError(t, err)
	assert.Equal(t, "region = 'eu'", out)

	_, err = svc.Expand(context.Background(), domain.ExpandMacroRequest{Name: "ghost"})
	var nfe *domain.NotFoundError
	require.ErrorAs(t, err, &nfe)
}

func TestService_Delete(t *testing.T) {
	svc, store := newTestService(t)

	_, err := svc.Create(context.Background(), domain.CreateMacroRequest{Name: "one", Body: `"1 = 1"`})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), "one"))
	assert.Empty(t, store)

	var nfe *domain.NotFoundError
	require.ErrorAs(t, svc.Delete(context.Background(), "one"), &nfe)
}

// === Filter expansion ===

func TestExpandFilter(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), domain.CreateMacroRequest{
		Name:       "recent",
		Parameters: []string{"days"},
		Body:       `"event_date >= '2024-01-%02d'" % days`,
	})
	require.NoError(t, err)

	out, err := svc.ExpandFilter(context.Background(), "recent(7) AND region = 'eu'")
	require.NoError(t, err)
	assert.Equal(t, `("event_date" >= '2024-01-07') AND "region" = 'eu'`, out)
}

func TestExpandFilter_PlainFunctionsPassThrough(t *testing.T) {
	svc, _ := newTestService(t)

	out, err := svc.ExpandFilter(context.Background(), "upper(region) = 'EU'")
	require.NoError(t, err)
	assert.Equal(t, `upper("region") = 'EU'`, out)
}

func TestExpandFilter_ArgCountMismatch(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), domain.CreateMacroRequest{
		Name:       "recent",
		Parameters: []string{"days"},
		Body:       `"event_date >= '%d'" % days`,
	})
	require.NoError(t, err)

	_, err = svc.ExpandFilter(context.Background(), "recent(1, 2)")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), "expects 1 arguments")
}

func TestExpandFilter_NestedMacros(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), domain.CreateMacroRequest{
		Name: "is_large", Body: `"amount > 100"`,
	})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), domain.CreateMacroRequest{
		Name: "large_eu", Body: `"is_large() AND region = 'eu'"`,
	})
	require.NoError(t, err)

	out, err := svc.ExpandFilter(context.Background(), "large_eu()")
	require.NoError(t, err)
	assert.Equal(t, `(("amount" > 100) AND "region" = 'eu')`, out)
}

func TestExpandFilter_RecursionCapped(t *testing.T) {
	svc, store := newTestService(t)

	_, err := svc.Create(context.Background(), domain.CreateMacroRequest{
		Name: "loop", Body: `"1 = 1"`,
	})
	require.NoError(t, err)
	// Rewrite the stored body to call itself, bypassing compile checks.
	store["loop"].Body = `"loop()"`

	_, err = svc.ExpandFilter(context.Background(), "loop()")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), "recursive")
}

func TestExpandFilter_InvalidExpansion(t *testing.T) {
	svc, store := newTestService(t)

	_, err := svc.Create(context.Background(), domain.CreateMacroRequest{
		Name: "bad", Body: `"1 = 1"`,
	})
	require.NoError(t, err)
	store["bad"].Body = `"AND AND"`

	_, err = svc.ExpandFilter(context.Background(), "bad()")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), "invalid expression")
}

func TestExpandFilter_BadFilterSyntax(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ExpandFilter(context.Background(), "region = = 'eu'")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
}
