//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/go-chi/chi/v5"
	_ "github.com/mattn/go-sqlite3"

	"quarry/internal/api"
	"quarry/internal/app"
	"quarry/internal/config"
	"quarry/internal/db"
	"quarry/internal/domain"
	"quarry/internal/middleware"
)

// testEnv bundles an in-process quarry server with deterministic API keys.
type testEnv struct {
	Server    *httptest.Server
	App       *app.App
	DataDir   string
	AdminKey  string
	ReaderKey string
}

// seedFlights writes a hive-partitioned CSV tree: three year= partitions,
// three rows each. distance 0 in the 2023 file exercises sentinel recoding.
func seedFlights(t *testing.T, root string) {
	t.Helper()
	files := map[string]string{
		"year=2022/part-0.csv": "carrier,distance,dep_delay\nUA,2475,12\nAA,1389,-3\nDL,2475,0\n",
		"year=2023/part-0.csv": "carrier,distance,dep_delay\nUA,2475,41\nAA,0,7\nUA,733,-2\n",
		"year=2024/part-0.csv": "carrier,distance,dep_delay\nDL,1089,3\nUA,2475,88\nAA,1389,19\n",
	}
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
}

// newTestEnv wires a full app (real SQLite pools, real DuckDB engine, real
// auth middleware) behind an httptest server, mirroring cmd/server's router
// minus the public docs and UI surfaces.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	tmp := t.TempDir()
	dataDir := filepath.Join(tmp, "flights")
	seedFlights(t, dataDir)

	writeDB, readDB, err := db.OpenSQLitePair(filepath.Join(tmp, "quarry.sqlite"), 2)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		readDB.Close()
		writeDB.Close()
	})
	if err := db.RunMigrations(writeDB); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	cfg := &config.Config{
		ListenAddr:         ":0",
		LogLevel:           "error",
		RefreshConcurrency: 2,
		RateLimitRPS:       1000,
		RateLimitBurst:     2000,
		CORSAllowedOrigins: []string{"*"},
		Auth: config.AuthConfig{
			JWTSecret:     "integration-test-secret",
			APIKeyEnabled: true,
			APIKeyHeader:  "X-API-Key",
			NameClaim:     "email",
		},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := app.New(ctx, app.Deps{Cfg: cfg, WriteDB: writeDB, ReadDB: readDB, Logger: logger})
	if err != nil {
		t.Fatalf("wire app: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	// Mint deterministic keys alongside the random bootstrap key.
	harness := domain.WithPrincipal(ctx, domain.ContextPrincipal{
		Name: "test-harness", IsAdmin: true, Type: "user",
	})
	adminKey, _, err := a.APIKeys.Create(harness, domain.CreateAPIKeyRequest{
		PrincipalName: "it_admin", Name: "integration-admin", IsAdmin: true,
	})
	if err != nil {
		t.Fatalf("mint admin key: %v", err)
	}
	readerKey, _, err := a.APIKeys.Create(harness, domain.CreateAPIKeyRequest{
		PrincipalName: "it_reader", Name: "integration-reader",
	})
	if err != nil {
		t.Fatalf("mint reader key: %v", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Get("/healthz", api.HealthHandler())
	r.Route("/v1", func(r chi.Router) {
		r.Use(a.Auth.Middleware())
		r.Mount("/", a.API.Routes())
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testEnv{
		Server:    srv,
		App:       a,
		DataDir:   dataDir,
		AdminKey:  adminKey,
		ReaderKey: readerKey,
	}
}

// do issues an API request and returns the status plus raw body. An empty
// key sends no credentials.
func (e *testEnv) do(t *testing.T, method, path, key string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, e.Server.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp.StatusCode, raw
}

// decodeInto unmarshals a response body, failing the test on bad JSON.
func decodeInto(t *testing.T, raw []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode response: %v\nbody: %s", err, raw)
	}
}

// registerFlights registers the seeded tree as dataset "flights" and fails
// the test on any non-201 answer.
func (e *testEnv) registerFlights(t *testing.T) {
	t.Helper()
	status, raw := e.do(t, http.MethodPost, "/v1/datasets", e.AdminKey, map[string]any{
		"name":           "flights",
		"location":       e.DataDir,
		"format":         "csv",
		"partition_keys": []string{"year"},
		"columns": []map[string]any{
			{"name": "dep_delay", "type": "DOUBLE", "declared": true},
			{"name": "distance", "type": "BIGINT", "declared": true, "sentinels": []string{"0"}},
		},
	})
	if status != http.StatusCreated {
		t.Fatalf("register flights: status %d: %s", status, raw)
	}
}

// planBody builds a /v1/query request for the flights dataset.
func planBody(steps ...map[string]any) map[string]any {
	return map[string]any{"dataset": "flights", "steps": steps}
}
