package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quarry/internal/domain"
)

func TestHivePartition(t *testing.T) {
	keys, part := hivePartition("date=2024-01-01/region=eu%2Fwest/part-0.parquet")
	assert.Equal(t, []string{"date", "region"}, keys)
	assert.Equal(t, map[string]string{"date": "2024-01-01", "region": "eu/west"}, part)

	// Plain directories are not partitions, and the filename never is.
	keys, part = hivePartition("staging/date=2024-01-01/x=1.parquet")
	assert.Equal(t, []string{"date"}, keys)
	assert.Equal(t, map[string]string{"date": "2024-01-01"}, part)

	keys, part = hivePartition("part-0.parquet")
	assert.Empty(t, keys)
	assert.Empty(t, part)

	// Empty value is legal; hive writes key= for empty strings.
	_, part = hivePartition("region=/a.parquet")
	assert.Equal(t, map[string]string{"region": ""}, part)
}

func TestDatasetRelPath(t *testing.T) {
	tests := []struct {
		location, path, want string
	}{
		{"/data/events", "/data/events/date=1/a.parquet", "date=1/a.parquet"},
		{"/data/events/", "/data/events/date=1/a.parquet", "date=1/a.parquet"},
		{"./events", "events/date=1/a.parquet", "date=1/a.parquet"},
		{"s3://bkt/raw", "s3://bkt/raw/date=1/a.parquet", "date=1/a.parquet"},
		{"gs://bkt", "gs://bkt/a.parquet", "a.parquet"},
		{"/other", "/data/a.parquet", "/data/a.parquet"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, datasetRelPath(tt.location, tt.path), "location=%s path=%s", tt.location, tt.path)
	}
}

func TestInferPartitionKeys(t *testing.T) {
	keys, err := inferPartitionKeys("/d", []domain.StorageObject{
		{Path: "/d/date=1/region=eu/a.parquet"},
		{Path: "/d/date=2/region=us/b.parquet"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "region"}, keys)

	keys, err = inferPartitionKeys("/d", nil)
	require.NoError(t, err)
	assert.Nil(t, keys)

	_, err = inferPartitionKeys("/d", []domain.StorageObject{
		{Path: "/d/date=1/region=eu/a.parquet"},
		{Path: "/d/region=us/date=2/b.parquet"},
	})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestProjectFiles(t *testing.T) {
	files := projectFiles("/d", []string{"date"}, []domain.StorageObject{
		{Path: "/d/date=1/region=eu/a.parquet", SizeBytes: 5},
		{Path: "/d/b.parquet", SizeBytes: 7},
	})
	require.Len(t, files, 2)
	assert.Equal(t, map[string]string{"date": "1"}, files[0].Partition)
	assert.Equal(t, int64(5), files[0].SizeBytes)
	assert.Empty(t, files[1].Partition)
}

func TestInferPartitionType(t *testing.T) {
	mk := func(vals ...string) []domain.DatasetFile {
		files := make([]domain.DatasetFile, len(vals))
		for i, v := range vals {
			files[i] = domain.DatasetFile{Partition: map[string]string{"k": v}}
		}
		return files
	}

	assert.Equal(t, "BIGINT", inferPartitionType(mk("1", "42", "-3"), "k"))
	assert.Equal(t, "DOUBLE", inferPartitionType(mk("1", "2.5"), "k"))
	assert.Equal(t, "VARCHAR", inferPartitionType(mk("2024-01-01", "2024-01-02"), "k"))
	assert.Equal(t, "VARCHAR", inferPartitionType(mk("1", "eu"), "k"))
	assert.Equal(t, "BIGINT", inferPartitionType(mk("1", domain.HiveNullSentinel), "k"))
	assert.Equal(t, "VARCHAR", inferPartitionType(mk(domain.HiveNullSentinel), "k"))
	assert.Equal(t, "VARCHAR", inferPartitionType(mk("1"), "missing"))
}
