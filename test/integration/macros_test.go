//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createDelayMacro(t *testing.T, env *testEnv) {
	t.Helper()
	status, raw := env.do(t, http.MethodPost, "/v1/macros", env.AdminKey, map[string]any{
		"name":       "delayed_over",
		"parameters": []string{"minutes"},
		"body":       `"dep_delay > " + str(minutes)`,
	})
	require.Equal(t, http.StatusCreated, status, "body: %s", raw)
}

func TestMacros_CreateAndExpand(t *testing.T) {
	env := newTestEnv(t)
	createDelayMacro(t, env)

	status, raw := env.do(t, http.MethodPost, "/v1/macros/delayed_over/expand", env.ReaderKey, map[string]any{
		"name": "delayed_over",
		"args": map[string]string{"minutes": "15"},
	})
	require.Equal(t, http.StatusOK, status, "body: %s", raw)

	var exp struct {
		Name   string `json:"name"`
		Filter string `json:"filter"`
	}
	decodeInto(t, raw, &exp)
	assert.Equal(t, "delayed_over", exp.Name)
	assert.Equal(t, "dep_delay > 15", exp.Filter)
}

func TestMacros_UsableInQueryFilter(t *testing.T) {
	env := newTestEnv(t)
	env.registerFlights(t)
	createDelayMacro(t, env)

	status, raw := env.do(t, http.MethodPost, "/v1/query", env.ReaderKey, planBody(
		map[string]any{"op": "filter", "expr": "delayed_over(40)"},
		map[string]any{"op": "select", "columns": []string{"carrier", "dep_delay"}},
	))
	require.Equal(t, http.StatusOK, status, "body: %s", raw)

	var res queryResp
	decodeInto(t, raw, &res)
	// Only the two delays above 40 minutes: UA 41 (2023) and UA 88 (2024).
	assert.Len(t, res.Rows, 2)
}

func TestMacros_CreateRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodPost, "/v1/macros", env.ReaderKey, map[string]any{
		"name": "nope",
		"body": `"TRUE"`,
	})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestMacros_ListAndDelete(t *testing.T) {
	env := newTestEnv(t)
	createDelayMacro(t, env)

	status, raw := env.do(t, http.MethodGet, "/v1/macros", env.ReaderKey, nil)
	require.Equal(t, http.StatusOK, status, "body: %s", raw)
	var page struct {
		Data []struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	decodeInto(t, raw, &page)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "delayed_over", page.Data[0].Name)

	status, _ = env.do(t, http.MethodDelete, "/v1/macros/delayed_over", env.AdminKey, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = env.do(t, http.MethodGet, "/v1/macros/delayed_over", env.ReaderKey, nil)
	assert.Equal(t, http.StatusNotFound, status)
}
