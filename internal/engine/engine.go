// Package engine materializes logical plans against DuckDB. It owns file
// pruning, SQL compilation, schema inference, and result scanning; the only
// I/O a plan ever triggers happens here.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"quarry/internal/domain"
	"quarry/internal/plan"
)

// Compile-time interface checks.
var _ domain.SchemaInferrer = (*Engine)(nil)

// Settings tunes the DuckDB session the engine runs on.
type Settings struct {
	MemoryLimit string // e.g. "2GB"; empty leaves the DuckDB default
	Threads     int    // 0 leaves the DuckDB default
}

// Engine wraps an in-process DuckDB connection. One engine serves all
// datasets; every materialization compiles to a single SELECT statement.
type Engine struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates an in-memory DuckDB session and applies the given settings.
func Open(ctx context.Context, settings Settings, logger *slog.Logger) (*Engine, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if settings.MemoryLimit != "" {
		stmt := fmt.Sprintf("SET memory_limit = %s", quoteLiteral(settings.MemoryLimit))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("set memory_limit: %w", err)
		}
	}
	if settings.Threads > 0 {
		stmt := fmt.Sprintf("SET threads = %d", settings.Threads)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("set threads: %w", err)
		}
	}
	return New(db, logger), nil
}

// New wraps an existing DuckDB connection.
func New(db *sql.DB, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{db: db, logger: logger.With("component", "engine")}
}

// Close releases the underlying DuckDB connection.
func (e *Engine) Close() error {
	return e.db.Close()
}

// InstallExtensions makes the extensions for remote object storage available.
// Safe to call without credentials.
func (e *Engine) InstallExtensions(ctx context.Context) error {
	extensions := []string{
		"INSTALL httpfs; LOAD httpfs;",
		"INSTALL azure; LOAD azure;",
	}
	for _, ext := range extensions {
		if _, err := e.db.ExecContext(ctx, ext); err != nil {
			return fmt.Errorf("extension setup (%s): %w", ext, err)
		}
	}
	return nil
}

// Materialize compiles the plan over the dataset's current file set and
// executes it. Pruned files are never named in the generated SQL, so DuckDB
// cannot touch them.
func (e *Engine) Materialize(ctx context.Context, p *plan.Plan, d *domain.Dataset, files []domain.DatasetFile) (*domain.Result, error) {
	comp, err := Compile(p, d, files)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, comp)
}

// Execute runs a compilation and scans every row into memory.
func (e *Engine) Execute(ctx context.Context, comp *Compilation) (*domain.Result, error) {
	start := time.Now()

	rows, err := e.db.QueryContext(ctx, comp.SQL)
	if err != nil {
		return nil, fmt.Errorf("execute scan: %w", err)
	}
	defer rows.Close()

	result, err := scanResult(rows)
	if err != nil {
		return nil, fmt.Errorf("scan results: %w", err)
	}

	result.Stats = domain.ScanStats{
		FilesTotal:   comp.FilesTotal,
		FilesScanned: len(comp.ScannedPaths),
		FilesPruned:  len(comp.PrunedPaths),
		ColumnsRead:  comp.ColumnsRead,
		RowsReturned: int64(len(result.Rows)),
		DurationMs:   time.Since(start).Milliseconds(),
	}

	e.logger.Debug("materialized plan",
		"dataset", comp.Dataset,
		"files_scanned", result.Stats.FilesScanned,
		"files_pruned", result.Stats.FilesPruned,
		"rows", result.Stats.RowsReturned,
		"duration_ms", result.Stats.DurationMs,
	)
	return result, nil
}

// Explain compiles the plan and reports what a materialization would touch,
// without executing anything.
func (e *Engine) Explain(_ context.Context, p *plan.Plan, d *domain.Dataset, files []domain.DatasetFile) (*domain.Explanation, error) {
	comp, err := Compile(p, d, files)
	if err != nil {
		return nil, err
	}
	return &domain.Explanation{
		SQL:          comp.SQL,
		FilesTotal:   comp.FilesTotal,
		FilesScanned: comp.ScannedPaths,
		FilesPruned:  comp.PrunedPaths,
		ColumnsRead:  comp.ColumnsRead,
	}, nil
}
