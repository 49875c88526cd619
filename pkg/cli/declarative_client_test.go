package cli

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quarry/internal/declarative"
	"quarry/pkg/cli/client"
)

func TestAPIStateClient_ReadState(t *testing.T) {
	srv, rec := newTestServer(t, routeHandler(map[string]string{
		"GET /v1/datasets": `{
			"data": [{
				"id": "ds_1",
				"name": "trips",
				"location": "s3://lake/trips",
				"format": "parquet",
				"partition_keys": ["year"],
				"columns": [
					{"name":"year","type":"VARCHAR","partition":true},
					{"name":"fare","type":"DOUBLE","declared":true},
					{"name":"vendor","type":"VARCHAR"}
				],
				"description": "NYC taxi",
				"refresh_cron": "0 3 * * *"
			}],
			"next_page_token": ""
		}`,
		"GET /v1/macros": `{
			"data": [{
				"id": "mc_1",
				"name": "recent",
				"parameters": ["days"],
				"body": "pickup_date >= date_add(today(), -days)",
				"status": "ACTIVE"
			}],
			"next_page_token": ""
		}`,
	}))

	state, err := NewAPIStateClient(client.NewClient(srv.URL, "qk_x", "")).ReadState(context.Background())
	require.NoError(t, err)

	require.Len(t, state.Datasets, 1)
	ds := state.Datasets[0]
	assert.Equal(t, "trips", ds.Name)
	assert.Equal(t, "s3://lake/trips", ds.Spec.Location)
	assert.Equal(t, "parquet", ds.Spec.Format)
	assert.Equal(t, []string{"year"}, ds.Spec.PartitionKeys)
	assert.Equal(t, "0 3 * * *", ds.Spec.RefreshCron)
	// Only declared overrides round-trip; inferred and partition columns
	// belong to the server.
	assert.Equal(t, []declarative.ColumnDef{{Name: "fare", Type: "DOUBLE"}}, ds.Spec.Columns)

	require.Len(t, state.Macros, 1)
	mc := state.Macros[0]
	assert.Equal(t, "recent", mc.Name)
	assert.Equal(t, []string{"days"}, mc.Spec.Parameters)
	assert.Equal(t, "ACTIVE", mc.Spec.Status)

	for _, req := range rec.all() {
		assert.Equal(t, "1000", req.Query.Get("max_results"))
		assert.Equal(t, "qk_x", req.Header.Get("X-API-Key"))
	}
}

func TestAPIStateClient_ReadState_Paginates(t *testing.T) {
	srv, rec := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/v1/macros":
			_, _ = w.Write([]byte(`{"data":[],"next_page_token":""}`))
		case r.URL.Query().Get("page_token") == "":
			_, _ = w.Write([]byte(`{"data":[{"name":"a","location":"/a","format":"parquet"}],"next_page_token":"t2"}`))
		default:
			_, _ = w.Write([]byte(`{"data":[{"name":"b","location":"/b","format":"parquet"}],"next_page_token":""}`))
		}
	})

	state, err := NewAPIStateClient(client.NewClient(srv.URL, "", "")).ReadState(context.Background())
	require.NoError(t, err)

	require.Len(t, state.Datasets, 2)
	assert.Equal(t, "a", state.Datasets[0].Name)
	assert.Equal(t, "b", state.Datasets[1].Name)

	datasetCalls := 0
	for _, req := range rec.all() {
		if req.Path == "/v1/datasets" {
			datasetCalls++
		}
	}
	assert.Equal(t, 2, datasetCalls)
}

func TestAPIStateClient_ReadState_ServerError(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"code":500,"message":"boom"}`))
	})

	_, err := NewAPIStateClient(client.NewClient(srv.URL, "", "")).ReadState(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GET /datasets")
	assert.Contains(t, err.Error(), "boom")
}

func TestAPIStateClient_Execute_CreateDataset(t *testing.T) {
	srv, rec := newTestServer(t, nil)
	state := NewAPIStateClient(client.NewClient(srv.URL, "", ""))

	action := declarative.Action{
		Operation:    declarative.OpCreate,
		ResourceKind: declarative.KindDataset,
		ResourceName: "trips",
		Desired: declarative.DatasetResource{
			Name: "trips",
			Spec: declarative.DatasetSpec{
				Location:      "s3://lake/trips",
				Format:        "parquet",
				PartitionKeys: []string{"year"},
				Columns:       []declarative.ColumnDef{{Name: "fare", Type: "DOUBLE"}},
			},
		},
	}
	require.NoError(t, state.Execute(context.Background(), action))

	req := rec.last(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/v1/datasets", req.Path)
	assert.JSONEq(t, `{
		"name": "trips",
		"location": "s3://lake/trips",
		"format": "parquet",
		"partition_keys": ["year"],
		"columns": [{"name":"fare","type":"DOUBLE","declared":true}],
		"csv": {}
	}`, req.Body)
}

func TestAPIStateClient_Execute_UpdateDataset(t *testing.T) {
	srv, rec := newTestServer(t, nil)
	state := NewAPIStateClient(client.NewClient(srv.URL, "", ""))

	action := declarative.Action{
		Operation:    declarative.OpUpdate,
		ResourceKind: declarative.KindDataset,
		ResourceName: "trips",
		Desired: declarative.DatasetResource{
			Name: "trips",
			Spec: declarative.DatasetSpec{
				Location:    "s3://lake/trips",
				Format:      "parquet",
				Description: "fresh",
				Columns:     []declarative.ColumnDef{{Name: "fare", Type: "DOUBLE"}},
			},
		},
	}
	require.NoError(t, state.Execute(context.Background(), action))

	req := rec.last(t)
	assert.Equal(t, http.MethodPatch, req.Method)
	assert.Equal(t, "/v1/datasets/trips", req.Path)
	assert.JSONEq(t, `{
		"description": "fresh",
		"refresh_cron": "",
		"columns": [{"name":"fare","type":"DOUBLE","declared":true}]
	}`, req.Body)
}

func TestAPIStateClient_Execute_DeleteDataset(t *testing.T) {
	srv, rec := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	state := NewAPIStateClient(client.NewClient(srv.URL, "", ""))

	action := declarative.Action{
		Operation:    declarative.OpDelete,
		ResourceKind: declarative.KindDataset,
		ResourceName: "old",
	}
	require.NoError(t, state.Execute(context.Background(), action))

	req := rec.last(t)
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, "/v1/datasets/old", req.Path)
}

func TestAPIStateClient_Execute_CreateMacro(t *testing.T) {
	srv, rec := newTestServer(t, nil)
	state := NewAPIStateClient(client.NewClient(srv.URL, "", ""))

	action := declarative.Action{
		Operation:    declarative.OpCreate,
		ResourceKind: declarative.KindMacro,
		ResourceName: "recent",
		Desired: declarative.MacroResource{
			Name: "recent",
			Spec: declarative.MacroSpec{
				Parameters: []string{"days"},
				Body:       "pickup_date >= date_add(today(), -days)",
			},
		},
	}
	require.NoError(t, state.Execute(context.Background(), action))

	req := rec.last(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/v1/macros", req.Path)
	assert.JSONEq(t, `{
		"name": "recent",
		"parameters": ["days"],
		"body": "pickup_date >= date_add(today(), -days)"
	}`, req.Body)
}

func TestAPIStateClient_Execute_UpdateMacro(t *testing.T) {
	srv, rec := newTestServer(t, nil)
	state := NewAPIStateClient(client.NewClient(srv.URL, "", ""))

	action := declarative.Action{
		Operation:    declarative.OpUpdate,
		ResourceKind: declarative.KindMacro,
		ResourceName: "recent",
		Desired: declarative.MacroResource{
			Name: "recent",
			Spec: declarative.MacroSpec{
				Parameters: []string{"cutoff"},
				Body:       "pickup_date >= cutoff",
			},
		},
	}
	require.NoError(t, state.Execute(context.Background(), action))

	req := rec.last(t)
	assert.Equal(t, http.MethodPatch, req.Method)
	assert.Equal(t, "/v1/macros/recent", req.Path)
	assert.JSONEq(t, `{
		"body": "pickup_date >= cutoff",
		"description": "",
		"parameters": ["cutoff"],
		"status": "ACTIVE"
	}`, req.Body)
}

func TestAPIStateClient_Execute_DeleteMacro(t *testing.T) {
	srv, rec := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	state := NewAPIStateClient(client.NewClient(srv.URL, "", ""))

	action := declarative.Action{
		Operation:    declarative.OpDelete,
		ResourceKind: declarative.KindMacro,
		ResourceName: "stale",
	}
	require.NoError(t, state.Execute(context.Background(), action))
	assert.Equal(t, "/v1/macros/stale", rec.last(t).Path)
}

func TestAPIStateClient_Execute_UnexpectedDesiredType(t *testing.T) {
	srv, rec := newTestServer(t, nil)
	state := NewAPIStateClient(client.NewClient(srv.URL, "", ""))

	action := declarative.Action{
		Operation:    declarative.OpCreate,
		ResourceKind: declarative.KindDataset,
		ResourceName: "trips",
		Desired:      declarative.MacroResource{Name: "trips"},
	}
	err := state.Execute(context.Background(), action)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected desired type")
	assert.Empty(t, rec.all())
}

func TestAPIStateClient_Execute_ServerError(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":409,"message":"dataset already exists"}`))
	})
	state := NewAPIStateClient(client.NewClient(srv.URL, "", ""))

	action := declarative.Action{
		Operation:    declarative.OpCreate,
		ResourceKind: declarative.KindDataset,
		ResourceName: "trips",
		Desired:      declarative.DatasetResource{Name: "trips"},
	}
	err := state.Execute(context.Background(), action)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dataset already exists")
}
