package registry

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quarry/internal/domain"
)

func TestRefresh_ReconcilesSchema(t *testing.T) {
	repo, state := memoryRepo(t)
	state.Dataset = &domain.Dataset{
		ID: "ds-1", Name: "events",
		Location: "/data/events", Format: domain.FormatParquet, Pattern: "**/*.parquet",
		PartitionKeys: []string{"bucket"},
		Columns: []domain.ColumnSchema{
			{Name: "id", Type: "BIGINT"},
			{Name: "amount", Type: "VARCHAR", Declared: true},
			{Name: "stale", Type: "VARCHAR"},
			{Name: "bucket", Type: "VARCHAR", Partition: true},
		},
	}
	lister := &mockLister{ListFn: func(context.Context, string, string) ([]domain.StorageObject, error) {
		return []domain.StorageObject{
			{Path: "/data/events/bucket=1/a.parquet", SizeBytes: 10},
			{Path: "/data/events/bucket=2/b.parquet", SizeBytes: 20},
		}, nil
	}}
	inferrer := staticInferrer(
		domain.ColumnSchema{Name: "id", Type: "DOUBLE"},      // drifted, widens
		domain.ColumnSchema{Name: "amount", Type: "DOUBLE"},  // declared keeps VARCHAR
		domain.ColumnSchema{Name: "fresh", Type: "VARCHAR"},  // appended
	)
	reg := newTestRegistry(repo, lister, inferrer)

	ds, err := reg.Refresh(context.Background(), "events")
	require.NoError(t, err)

	require.Len(t, ds.Columns, 4)
	assert.Equal(t, domain.ColumnSchema{Name: "id", Type: "DOUBLE"}, ds.Columns[0])
	assert.Equal(t, domain.ColumnSchema{Name: "amount", Type: "VARCHAR", Declared: true}, ds.Columns[1])
	assert.Equal(t, domain.ColumnSchema{Name: "fresh", Type: "VARCHAR"}, ds.Columns[2])
	// Partition type re-inferred from the new listing.
	assert.Equal(t, domain.ColumnSchema{Name: "bucket", Type: "BIGINT", Partition: true}, ds.Columns[3])
	assert.Equal(t, int64(2), ds.FileCount)
}

func TestRefresh_DeclaredColumnVanished(t *testing.T) {
	repo, state := memoryRepo(t)
	state.Dataset = &domain.Dataset{
		ID: "ds-1", Name: "events",
		Location: "/data/events", Format: domain.FormatParquet, Pattern: "**/*.parquet",
		Columns: []domain.ColumnSchema{
			{Name: "amount", Type: "DECIMAL(18,2)", Declared: true},
		},
	}
	lister := &mockLister{ListFn: func(context.Context, string, string) ([]domain.StorageObject, error) {
		return []domain.StorageObject{{Path: "/data/events/a.parquet"}}, nil
	}}
	inferrer := staticInferrer(domain.ColumnSchema{Name: "id", Type: "BIGINT"})
	reg := newTestRegistry(repo, lister, inferrer)

	_, err := reg.Refresh(context.Background(), "events")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), `"amount"`)
}

func TestRefresh_EmptyListing(t *testing.T) {
	repo, state := memoryRepo(t)
	state.Dataset = &domain.Dataset{
		ID: "ds-1", Name: "events",
		Location: "/data/events", Format: domain.FormatParquet, Pattern: "**/*.parquet",
		Columns: []domain.ColumnSchema{{Name: "id", Type: "BIGINT", Declared: true}},
	}
	lister := &mockLister{ListFn: func(context.Context, string, string) ([]domain.StorageObject, error) {
		return nil, nil
	}}
	reg := newTestRegistry(repo, lister, &mockInferrer{})

	_, err := reg.Refresh(context.Background(), "events")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)

	// With allow_empty the schema stands and the listing empties out.
	state.Dataset.AllowEmpty = true
	state.Files = []domain.DatasetFile{{Path: "/data/events/gone.parquet"}}
	ds, err := reg.Refresh(context.Background(), "events")
	require.NoError(t, err)
	assert.Equal(t, int64(0), ds.FileCount)
	assert.Empty(t, state.Files)
	require.Len(t, ds.Columns, 1)
	assert.Equal(t, "BIGINT", ds.Columns[0].Type)
}

func TestRefreshAll_SkipsFailures(t *testing.T) {
	var mu sync.Mutex
	refreshed := map[string]bool{}

	datasets := []domain.Dataset{
		{ID: "ds-a", Name: "a", Location: "/d/a", Format: domain.FormatParquet, Pattern: "**/*.parquet",
			Columns: []domain.ColumnSchema{{Name: "id", Type: "BIGINT"}}},
		{ID: "ds-b", Name: "b", Location: "/d/broken", Format: domain.FormatParquet, Pattern: "**/*.parquet",
			Columns: []domain.ColumnSchema{{Name: "id", Type: "BIGINT"}}},
		{ID: "ds-c", Name: "c", Location: "/d/c", Format: domain.FormatParquet, Pattern: "**/*.parquet",
			Columns: []domain.ColumnSchema{{Name: "id", Type: "BIGINT"}}},
	}
	byName := map[string]*domain.Dataset{}
	for i := range datasets {
		byName[datasets[i].Name] = &datasets[i]
	}

	repo := &mockDatasetRepo{
		ListFn: func(_ context.Context, page domain.PageRequest) ([]domain.Dataset, int64, error) {
			return datasets, int64(len(datasets)), nil
		},
		GetByNameFn: func(_ context.Context, name string) (*domain.Dataset, error) {
			cp := *byName[name]
			return &cp, nil
		},
		UpdateFn: func(_ context.Context, d *domain.Dataset) error { return nil },
		ReplaceFilesFn: func(_ context.Context, datasetID string, files []domain.DatasetFile) error {
			mu.Lock()
			refreshed[datasetID] = true
			mu.Unlock()
			return nil
		},
	}
	lister := &mockLister{ListFn: func(_ context.Context, location, _ string) ([]domain.StorageObject, error) {
		if location == "/d/broken" {
			return nil, domain.ErrValidation("no credentials configured for s3:// locations")
		}
		return []domain.StorageObject{{Path: location + "/a.parquet", SizeBytes: 1}}, nil
	}}
	inferrer := staticInferrer(domain.ColumnSchema{Name: "id", Type: "BIGINT"})

	reg := New(Deps{
		Repo:               repo,
		Lister:             lister,
		Inferrer:           inferrer,
		Logger:             slog.New(slog.DiscardHandler),
		RefreshConcurrency: 2,
	})

	require.NoError(t, reg.RefreshAll(context.Background()))
	assert.True(t, refreshed["ds-a"])
	assert.True(t, refreshed["ds-c"])
	assert.False(t, refreshed["ds-b"])
}
