// Package query materializes wire-form plans against registered datasets
// and records every run in the query log.
package query

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"quarry/internal/domain"
	"quarry/internal/engine"
	"quarry/internal/plan"
)

// Executor runs compiled scans. Implemented by the DuckDB engine.
type Executor interface {
	Execute(ctx context.Context, comp *engine.Compilation) (*domain.Result, error)
}

// FilterExpander rewrites macro invocations inside filter text before the
// filter is parsed. Implemented by the macro service.
type FilterExpander interface {
	ExpandFilter(ctx context.Context, filter string) (string, error)
}

// ServiceDeps bundles the dependencies for NewService.
type ServiceDeps struct {
	Datasets  domain.DatasetRepository
	QueryLog  domain.QueryLogRepository
	Engine    Executor
	Macros    FilterExpander       // nil disables macro expansion
	Presigner domain.FilePresigner // nil serves raw paths in manifests
	Logger    *slog.Logger
}

// Service turns plan specs into results: macro expansion, plan compilation,
// partition and column pruning, execution, and query-log recording.
type Service struct {
	datasets  domain.DatasetRepository
	queryLog  domain.QueryLogRepository
	engine    Executor
	macros    FilterExpander
	presigner domain.FilePresigner
	logger    *slog.Logger
}

// NewService creates a query Service.
func NewService(deps ServiceDeps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		datasets:  deps.Datasets,
		queryLog:  deps.QueryLog,
		engine:    deps.Engine,
		macros:    deps.Macros,
		presigner: deps.Presigner,
		logger:    logger.With("component", "query"),
	}
}

// Run materializes a plan spec and returns the fully realized result. The
// outcome lands in the query log either way; log failures never fail the
// query.
func (s *Service) Run(ctx context.Context, spec domain.PlanSpec) (*domain.Result, error) {
	start := time.Now()

	comp, err := s.compile(ctx, spec)
	if err != nil {
		s.record(ctx, spec, nil, nil, time.Since(start), err)
		return nil, err
	}

	result, err := s.engine.Execute(ctx, comp)
	if err != nil {
		s.record(ctx, spec, comp, nil, time.Since(start), err)
		return nil, err
	}

	s.record(ctx, spec, comp, result, time.Since(start), nil)
	return result, nil
}

// Explain compiles a plan spec and reports what running it would touch,
// without executing anything.
func (s *Service) Explain(ctx context.Context, spec domain.PlanSpec) (*domain.Explanation, error) {
	comp, err := s.compile(ctx, spec)
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

// History lists query log entries, newest first.
func (s *Service) History(ctx context.Context, filter domain.QueryLogFilter) ([]domain.QueryLogEntry, int64, error) {
	return s.queryLog.List(ctx, filter)
}

// compile resolves the dataset and its file set, expands macros, and
// compiles the plan down to a single scan.
func (s *Service) compile(ctx context.Context, spec domain.PlanSpec) (*engine.Compilation, error) {
	expanded, err := s.expandSpec(ctx, spec)
	if err != nil {
		return nil, err
	}
	p, err := plan.FromSpec(expanded)
	if err != nil {
		return nil, err
	}
	ds, err := s.datasets.GetByName(ctx, spec.Dataset)
	if err != nil {
		return nil, err
	}
	files, err := s.datasets.ListFiles(ctx, ds.ID)
	if err != nil {
		return nil, err
	}
	return engine.Compile(p, ds, files)
}

// expandSpec rewrites macro invocations in filter steps. The caller's spec
// is not modified; the log records what was actually sent.
func (s *Service) expandSpec(ctx context.Context, spec domain.PlanSpec) (domain.PlanSpec, error) {
	if s.macros == nil {
		return spec, nil
	}
	steps := append([]domain.StepSpec(nil), spec.Steps...)
	for i, step := range steps {
		if step.Op != domain.StepFilter || step.Expr == "" {
			continue
		}
		expanded, err := s.macros.ExpandFilter(ctx, step.Expr)
		if err != nil {
			return spec, err
		}
		steps[i].Expr = expanded
	}
	spec.Steps = steps
	return spec, nil
}

func (s *Service) record(ctx context.Context, spec domain.PlanSpec, comp *engine.Compilation, res *domain.Result, took time.Duration, runErr error) {
	entry := &domain.QueryLogEntry{
		DatasetName: spec.Dataset,
		Status:      domain.QueryStatusSuccess,
	}
	if p, ok := domain.PrincipalFromContext(ctx); ok {
		entry.PrincipalName = p.Name
	}
	if b, err := json.Marshal(spec); err == nil {
		planJSON := string(b)
		entry.PlanJSON = &planJSON
	}
	ms := took.Milliseconds()
	entry.DurationMs = &ms
	if comp != nil {
		entry.CompiledSQL = &comp.SQL
		scanned := int64(len(comp.ScannedPaths))
		pruned := int64(len(comp.PrunedPaths))
		entry.FilesScanned = &scanned
		entry.FilesPruned = &pruned
	}
	if res != nil {
		rows := res.Stats.RowsReturned
		entry.RowsReturned = &rows
	}
	if runErr != nil {
		entry.Status = domain.QueryStatusError
		msg := runErr.Error()
		entry.ErrorMessage = &msg
	}

	if err := s.queryLog.Insert(ctx, entry); err != nil {
		s.logger.Warn("query log insert failed", "dataset", spec.Dataset, "error", err)
	}
}
