package declarative

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quarry/internal/domain"
)

func TestRegisterRequest(t *testing.T) {
	t.Parallel()

	r := desiredTrips()
	req := r.RegisterRequest()

	assert.Equal(t, "trips", req.Name)
	assert.Equal(t, "/data/trips", req.Location)
	assert.Equal(t, []string{"year", "month"}, req.PartitionKeys)
	require.Len(t, req.Columns, 1)
	assert.True(t, req.Columns[0].Declared)
	assert.Equal(t, []string{"N/A"}, req.Columns[0].Sentinels)
	require.NoError(t, req.Validate())
}

func TestRegisterRequest_CSV(t *testing.T) {
	t.Parallel()

	header := false
	r := DatasetResource{Name: "events", Spec: DatasetSpec{
		Location: "s3://lake/events",
		Format:   "csv",
		CSV:      &CSVDef{Delimiter: ";", Header: &header, NullValue: "NULL"},
	}}
	req := r.RegisterRequest()

	assert.Equal(t, ";", req.CSV.Delimiter)
	assert.False(t, req.CSV.HasHeader())
	assert.Equal(t, "NULL", req.CSV.NullValue)
}

func TestUpdateRequestClearsColumns(t *testing.T) {
	t.Parallel()

	r := desiredTrips()
	r.Spec.Columns = nil
	req := r.UpdateRequest()

	// Non-nil empty slice clears declared overrides server-side.
	require.NotNil(t, req.Columns)
	assert.Empty(t, req.Columns)
	require.NotNil(t, req.Description)
	assert.Equal(t, "NYC taxi trips", *req.Description)
}

func TestMacroUpdateRequestDefaultsStatus(t *testing.T) {
	t.Parallel()

	req := desiredDateRange().UpdateRequest()

	require.NotNil(t, req.Status)
	assert.Equal(t, domain.MacroStatusActive, *req.Status)
	require.NotNil(t, req.Parameters)
}

func TestDatasetFromDomain(t *testing.T) {
	t.Parallel()

	ds := &domain.Dataset{
		Name:          "trips",
		Location:      "/data/trips",
		Format:        "parquet",
		Pattern:       "**/*.parquet",
		PartitionKeys: []string{"year"},
		Columns: []domain.ColumnSchema{
			{Name: "year", Type: "INTEGER", Partition: true},
			{Name: "fare", Type: "DOUBLE", Declared: true, Sentinels: []string{"N/A"}},
			{Name: "vendor", Type: "VARCHAR"},
		},
		Description: "taxi",
		RefreshCron: "@hourly",
		CreatedAt:   time.Now(),
	}

	r := DatasetFromDomain(ds)

	assert.Equal(t, "trips", r.Name)
	// Only declared overrides round-trip; inferred and partition columns
	// belong to the server.
	require.Len(t, r.Spec.Columns, 1)
	assert.Equal(t, "fare", r.Spec.Columns[0].Name)
	assert.Nil(t, r.Spec.CSV)
}
