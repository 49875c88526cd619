package query

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quarry/internal/domain"
	"quarry/internal/engine"
)

type mockDatasetRepo struct {
	GetByNameFn func(ctx context.Context, name string) (*domain.Dataset, error)
	ListFilesFn func(ctx context.Context, datasetID string) ([]domain.DatasetFile, error)
}

func (m *mockDatasetRepo) Create(context.Context, *domain.Dataset) (*domain.Dataset, error) {
	panic("unexpected call to mockDatasetRepo.Create")
}

func (m *mockDatasetRepo) GetByName(ctx context.Context, name string) (*domain.Dataset, error) {
	if m.GetByNameFn != nil {
		return m.GetByNameFn(ctx, name)
	}
	panic("unexpected call to mockDatasetRepo.GetByName")
}

func (m *mockDatasetRepo) List(context.Context, domain.PageRequest) ([]domain.Dataset, int64, error) {
	panic("unexpected call to mockDatasetRepo.List")
}

func (m *mockDatasetRepo) Update(context.Context, *domain.Dataset) error {
	panic("unexpected call to mockDatasetRepo.Update")
}

func (m *mockDatasetRepo) Delete(context.Context, string) error {
	panic("unexpected call to mockDatasetRepo.Delete")
}

func (m *mockDatasetRepo) ReplaceFiles(context.Context, string, []domain.DatasetFile) error {
	panic("unexpected call to mockDatasetRepo.ReplaceFiles")
}

func (m *mockDatasetRepo) ListFiles(ctx context.Context, datasetID string) ([]domain.DatasetFile, error) {
	if m.ListFilesFn != nil {
		return m.ListFilesFn(ctx, datasetID)
	}
	panic("unexpected call to mockDatasetRepo.ListFiles")
}

var _ domain.DatasetRepository = (*mockDatasetRepo)(nil)

type mockQueryLog struct {
	InsertFn func(ctx context.Context, e *domain.QueryLogEntry) error
	ListFn   func(ctx context.Context, filter domain.QueryLogFilter) ([]domain.QueryLogEntry, int64, error)
}

func (m *mockQueryLog) Insert(ctx context.Context, e *domain.QueryLogEntry) error {
	if m.InsertFn != nil {
		return m.InsertFn(ctx, e)
	}
	panic("unexpected call to mockQueryLog.Insert")
}

func (m *mockQueryLog) List(ctx context.Context, filter domain.QueryLogFilter) ([]domain.QueryLogEntry, int64, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, filter)
	}
	panic("unexpected call to mockQueryLog.List")
}

var _ domain.QueryLogRepository = (*mockQueryLog)(nil)

type mockExecutor struct {
	ExecuteFn func(ctx context.Context, comp *engine.Compilation) (*domain.Result, error)
}

func (m *mockExecutor) Execute(ctx context.Context, comp *engine.Compilation) (*domain.Result, error) {
	if m.ExecuteFn != nil {
		return m.ExecuteFn(ctx, comp)
	}
	panic("unexpected call to mockExecutor.Execute")
}

type mockExpander struct {
	ExpandFilterFn func(ctx context.Context, filter string) (string, error)
}

func (m *mockExpander) ExpandFilter(ctx context.Context, filter string) (string, error) {
	if m.ExpandFilterFn != nil {
		return m.ExpandFilterFn(ctx, filter)
	}
	panic("unexpected call to mockExpander.ExpandFilter")
}

type mockPresigner struct {
	PresignDownloadFn func(ctx context.Context, path string, expiry time.Duration) (string, error)
}

func (m *mockPresigner) PresignDownload(ctx context.Context, path string, expiry time.Duration) (string, error) {
	if m.PresignDownloadFn != nil {
		return m.PresignDownloadFn(ctx, path, expiry)
	}
	panic("unexpected call to mockPresigner.PresignDownload")
}

var _ domain.FilePresigner = (*mockPresigner)(nil)

// === Fixtures ===

func eventsDataset() *domain.Dataset {
	return &domain.Dataset{
		ID:            "ds-events",
		Name:          "events",
		Location:      "/data/events",
		Format:        domain.FormatParquet,
		PartitionKeys: []string{"date"},
		Columns: []domain.ColumnSchema{
			{Name: "id", Type: "BIGINT"},
			{Name: "amount", Type: "DOUBLE"},
			{Name: "date", Type: "VARCHAR", Partition: true},
		},
	}
}

func eventsFiles() []domain.DatasetFile {
	return []domain.DatasetFile{
		{Path: "/data/events/date=2024-01-01/a.parquet", SizeBytes: 100,
			Partition: map[string]string{"date": "2024-01-01"}},
		{Path: "/data/events/date=2024-01-02/b.parquet", SizeBytes: 200,
			Partition: map[string]string{"date": "2024-01-02"}},
	}
}

func eventsRepo() *mockDatasetRepo {
	return &mockDatasetRepo{
		GetByNameFn: func(_ context.Context, name string) (*domain.Dataset, error) {
			if name != "events" {
				return nil, domain.ErrNotFound("dataset %q not found", name)
			}
			return eventsDataset(), nil
		},
		ListFilesFn: func(_ context.Context, datasetID string) ([]domain.DatasetFile, error) {
			return eventsFiles(), nil
		},
	}
}

func recordingLog() (*mockQueryLog, *[]domain.QueryLogEntry) {
	var entries []domain.QueryLogEntry
	log := &mockQueryLog{
		InsertFn: func(_ context.Context, e *domain.QueryLogEntry) error {
			entries = append(entries, *e)
			return nil
		},
	}
	return log, &entries
}

func newTestService(t *testing.T, deps ServiceDeps) *Service {
	t.Helper()
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	return NewService(deps)
}

func filterSpec(filter string) domain.PlanSpec {
	return domain.PlanSpec{
		Dataset: "events",
		Steps: []domain.StepSpec{
			{Op: domain.StepSelect, Columns: []string{"id"}},
			{Op: domain.StepFilter, Expr: filter},
		},
	}
}

// === Run ===

func TestRun_MaterializesAndLogs(t *testing.T) {
	log, entries := recordingLog()
	var gotComp *engine.Compilation
	svc := newTestService(t, ServiceDeps{
		Datasets: eventsRepo(),
		QueryLog: log,
		Engine: &mockExecutor{
			ExecuteFn: func(_ context.Context, comp *engine.Compilation) (*domain.Result, error) {
				gotComp = comp
				return &domain.Result{
					Columns: []string{"id"},
					Rows:    [][]any{{int64(1)}, {int64(2)}},
					Stats:   domain.ScanStats{RowsReturned: 2},
				}, nil
			},
		},
	})

	ctx := domain.WithPrincipal(context.Background(), domain.ContextPrincipal{Name: "alice"})
	result, err := svc.Run(ctx, filterSpec("date = '2024-01-01'"))
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)

	require.NotNil(t, gotComp)
	assert.Equal(t, []string{"/data/events/date=2024-01-01/a.parquet"}, gotComp.ScannedPaths)
	assert.Equal(t, []string{"/data/events/date=2024-01-02/b.parquet"}, gotComp.PrunedPaths)

	require.Len(t, *entries, 1)
	e := (*entries)[0]
	assert.Equal(t, "alice", e.PrincipalName)
	assert.Equal(t, "events", e.DatasetName)
	assert.Equal(t, domain.QueryStatusSuccess, e.Status)
	require.NotNil(t, e.PlanJSON)
	assert.Contains(t, *e.PlanJSON, `"dataset":"events"`)
	require.NotNil(t, e.CompiledSQL)
	assert.Contains(t, *e.CompiledSQL, "WHERE")
	require.NotNil(t, e.FilesScanned)
	assert.EqualValues(t, 1, *e.FilesScanned)
	require.NotNil(t, e.FilesPruned)
	assert.EqualValues(t, 1, *e.FilesPruned)
	require.NotNil(t, e.RowsReturned)
	assert.EqualValues(t, 2, *e.RowsReturned)
}

func TestRun_CompileErrorLogged(t *testing.T) {
	log, entries := recordingLog()
	svc := newTestService(t, ServiceDeps{
		Datasets: eventsRepo(),
		QueryLog: log,
		Engine:   &mockExecutor{},
	})

	_, err := svc.Run(context.Background(), filterSpec("ghost = 1"))
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)

	require.Len(t, *entries, 1)
	e := (*entries)[0]
	assert.Equal(t, domain.QueryStatusError, e.Status)
	assert.Nil(t, e.CompiledSQL)
	require.NotNil(t, e.ErrorMessage)
	assert.Contains(t, *e.ErrorMessage, "ghost")
}

func TestRun_ExecutorErrorLogged(t *testing.T) {
	log, entries := recordingLog()
	svc := newTestService(t, ServiceDeps{
		Datasets: eventsRepo(),
		QueryLog: log,
		Engine: &mockExecutor{
			ExecuteFn: func(context.Context, *engine.Compilation) (*domain.Result, error) {
				return nil, errors.New("duckdb exploded")
			},
		},
	})

	_, err := svc.Run(context.Background(), filterSpec("date = '2024-01-01'"))
	require.Error(t, err)

	require.Len(t, *entries, 1)
	e := (*entries)[0]
	assert.Equal(t, domain.QueryStatusError, e.Status)
	assert.NotNil(t, e.CompiledSQL, "compilation succeeded, so the SQL is recorded")
	require.NotNil(t, e.ErrorMessage)
	assert.Contains(t, *e.ErrorMessage, "duckdb exploded")
}

func TestRun_LogFailureDoesNotFailQuery(t *testing.T) {
	svc := newTestService(t, ServiceDeps{
		Datasets: eventsRepo(),
		QueryLog: &mockQueryLog{
			InsertFn: func(context.Context, *domain.QueryLogEntry) error {
				return errors.New("log table locked")
			},
		},
		Engine: &mockExecutor{
			ExecuteFn: func(context.Context, *engine.Compilation) (*domain.Result, error) {
				return &domain.Result{Columns: []string{"id"}}, nil
			},
		},
	})

	_, err := svc.Run(context.Background(), filterSpec("date = '2024-01-01'"))
	assert.NoError(t, err)
}

func TestRun_ExpandsMacros(t *testing.T) {
	log, entries := recordingLog()
	var gotComp *engine.Compilation
	svc := newTestService(t, ServiceDeps{
		Datasets: eventsRepo(),
		QueryLog: log,
		Engine: &mockExecutor{
			ExecuteFn: func(_ context.Context, comp *engine.Compilation) (*domain.Result, error) {
				gotComp = comp
				return &domain.Result{}, nil
			},
		},
		Macros: &mockExpander{
			ExpandFilterFn: func(_ context.Context, filter string) (string, error) {
				require.Equal(t, "recent(7)", filter)
				return `"date" = '2024-01-01'`, nil
			},
		},
	})

	_, err := svc.Run(context.Background(), filterSpec("recent(7)"))
	require.NoError(t, err)

	require.NotNil(t, gotComp)
	assert.Contains(t, gotComp.SQL, `"date" = '2024-01-01'`)
	assert.Equal(t, []string{"/data/events/date=2024-01-01/a.parquet"}, gotComp.ScannedPaths)

	// The log keeps the filter as the caller wrote it.
	require.Len(t, *entries, 1)
	assert.Contains(t, *(*entries)[0].PlanJSON, "recent(7)")
}

func TestRun_UnknownDataset(t *testing.T) {
	log, entries := recordingLog()
	svc := newTestService(t, ServiceDeps{
		Datasets: eventsRepo(),
		QueryLog: log,
		Engine:   &mockExecutor{},
	})

	_, err := svc.Run(context.Background(), domain.PlanSpec{Dataset: "ghost"})
	var nfe *domain.NotFoundError
	require.ErrorAs(t, err, &nfe)
	require.Len(t, *entries, 1)
	assert.Equal(t, domain.QueryStatusError, (*entries)[0].Status)
}

// === Explain ===

func TestExplain_NeverExecutes(t *testing.T) {
	svc := newTestService(t, ServiceDeps{
		Datasets: eventsRepo(),
		QueryLog: &mockQueryLog{},
		Engine:   &mockExecutor{}, // panics if Execute is reached
	})

	exp, err := svc.Explain(context.Background(), filterSpec("date = '2024-01-01'"))
	require.NoError(t, err)

	assert.Contains(t, exp.SQL, "read_parquet")
	assert.Equal(t, 2, exp.FilesTotal)
	assert.Equal(t, []string{"/data/events/date=2024-01-01/a.parquet"}, exp.FilesScanned)
	assert.Equal(t, []string{"/data/events/date=2024-01-02/b.parquet"}, exp.FilesPruned)
	assert.Equal(t, []string{"id", "date"}, exp.ColumnsRead)
}

// === History ===

func TestHistory(t *testing.T) {
	status := domain.QueryStatusError
	var gotFilter domain.QueryLogFilter
	svc := newTestService(t, ServiceDeps{
		QueryLog: &mockQueryLog{
			ListFn: func(_ context.Context, filter domain.QueryLogFilter) ([]domain.QueryLogEntry, int64, error) {
				gotFilter = filter
				return []domain.QueryLogEntry{{ID: 7, DatasetName: "events"}}, 1, nil
			},
		},
	})

	entries, total, err := svc.History(context.Background(), domain.QueryLogFilter{Status: &status})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, entries, 1)
	assert.EqualValues(t, 7, entries[0].ID)
	require.NotNil(t, gotFilter.Status)
	assert.Equal(t, domain.QueryStatusError, *gotFilter.Status)
}
