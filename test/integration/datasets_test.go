//go:build integration

package integration

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type datasetResp struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Format        string   `json:"format"`
	PartitionKeys []string `json:"partition_keys"`
	Columns       []struct {
		Name      string `json:"name"`
		Type      string `json:"type"`
		Partition bool   `json:"partition"`
	} `json:"columns"`
	Description string `json:"description"`
	FileCount   int64  `json:"file_count"`
	TotalBytes  int64  `json:"total_bytes"`
}

func TestDatasets_RegisterAndGet(t *testing.T) {
	env := newTestEnv(t)
	env.registerFlights(t)

	status, raw := env.do(t, http.MethodGet, "/v1/datasets/flights", env.ReaderKey, nil)
	require.Equal(t, http.StatusOK, status, "body: %s", raw)

	var ds datasetResp
	decodeInto(t, raw, &ds)
	assert.Equal(t, "flights", ds.Name)
	assert.Equal(t, "csv", ds.Format)
	assert.Equal(t, []string{"year"}, ds.PartitionKeys)
	assert.EqualValues(t, 3, ds.FileCount)
	assert.Greater(t, ds.TotalBytes, int64(0))

	// Partition keys surface as derived columns alongside the file columns.
	byName := map[string]bool{}
	for _, c := range ds.Columns {
		if c.Partition {
			byName[c.Name] = true
		}
	}
	assert.True(t, byName["year"], "year should be a partition column: %+v", ds.Columns)
}

func TestDatasets_ListContainsRegistered(t *testing.T) {
	env := newTestEnv(t)
	env.registerFlights(t)

	status, raw := env.do(t, http.MethodGet, "/v1/datasets", env.ReaderKey, nil)
	require.Equal(t, http.StatusOK, status, "body: %s", raw)

	var page struct {
		Data []datasetResp `json:"data"`
	}
	decodeInto(t, raw, &page)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "flights", page.Data[0].Name)
}

func TestDatasets_DuplicateRegisterConflicts(t *testing.T) {
	env := newTestEnv(t)
	env.registerFlights(t)

	status, raw := env.do(t, http.MethodPost, "/v1/datasets", env.AdminKey, map[string]any{
		"name":     "flights",
		"location": env.DataDir,
		"format":   "csv",
	})
	assert.Equal(t, http.StatusConflict, status, "body: %s", raw)
}

func TestDatasets_Files(t *testing.T) {
	env := newTestEnv(t)
	env.registerFlights(t)

	status, raw := env.do(t, http.MethodGet, "/v1/datasets/flights/files", env.ReaderKey, nil)
	require.Equal(t, http.StatusOK, status, "body: %s", raw)

	var files struct {
		Dataset string `json:"dataset"`
		Files   []struct {
			Path      string            `json:"path"`
			SizeBytes int64             `json:"size_bytes"`
			Partition map[string]string `json:"partition"`
		} `json:"files"`
	}
	decodeInto(t, raw, &files)
	assert.Equal(t, "flights", files.Dataset)
	require.Len(t, files.Files, 3)

	years := map[string]bool{}
	for _, f := range files.Files {
		assert.Greater(t, f.SizeBytes, int64(0))
		years[f.Partition["year"]] = true
	}
	assert.Equal(t, map[string]bool{"2022": true, "2023": true, "2024": true}, years)
}

func TestDatasets_RefreshPicksUpNewFiles(t *testing.T) {
	env := newTestEnv(t)
	env.registerFlights(t)

	path := filepath.Join(env.DataDir, "year=2025", "part-0.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("carrier,distance,dep_delay\nUA,500,1\n"), 0o644))

	status, raw := env.do(t, http.MethodPost, "/v1/datasets/flights/refresh", env.AdminKey, nil)
	require.Equal(t, http.StatusOK, status, "body: %s", raw)

	var ds datasetResp
	decodeInto(t, raw, &ds)
	assert.EqualValues(t, 4, ds.FileCount)
}

func TestDatasets_UpdateAndDrop(t *testing.T) {
	env := newTestEnv(t)
	env.registerFlights(t)

	status, raw := env.do(t, http.MethodPatch, "/v1/datasets/flights", env.AdminKey, map[string]any{
		"description": "airline on-time data",
	})
	require.Equal(t, http.StatusOK, status, "body: %s", raw)
	var ds datasetResp
	decodeInto(t, raw, &ds)
	assert.Equal(t, "airline on-time data", ds.Description)

	status, _ = env.do(t, http.MethodDelete, "/v1/datasets/flights", env.AdminKey, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = env.do(t, http.MethodGet, "/v1/datasets/flights", env.ReaderKey, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDatasets_RegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	t.Run("missing_name", func(t *testing.T) {
		status, _ := env.do(t, http.MethodPost, "/v1/datasets", env.AdminKey, map[string]any{
			"location": env.DataDir,
			"format":   "csv",
		})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("unknown_format", func(t *testing.T) {
		status, _ := env.do(t, http.MethodPost, "/v1/datasets", env.AdminKey, map[string]any{
			"name":     "bad",
			"location": env.DataDir,
			"format":   "avro",
		})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("empty_location", func(t *testing.T) {
		status, _ := env.do(t, http.MethodPost, "/v1/datasets", env.AdminKey, map[string]any{
			"name":     "empty",
			"location": filepath.Join(t.TempDir(), "nothing-here"),
			"format":   "csv",
		})
		assert.Equal(t, http.StatusBadRequest, status)
	})
}
