// Package registry manages the dataset lifecycle: file discovery under a
// storage location, hive partition extraction, schema inference, and the
// metadata writes that make a file set queryable as a logical table.
package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"quarry/internal/domain"
)

// Registry registers and refreshes datasets against the metadata store.
type Registry struct {
	repo         domain.DatasetRepository
	lister       domain.FileLister
	inferrer     domain.SchemaInferrer
	logger       *slog.Logger
	refreshLimit int
}

// Deps holds dependencies for Registry.
type Deps struct {
	Repo     domain.DatasetRepository
	Lister   domain.FileLister
	Inferrer domain.SchemaInferrer
	Logger   *slog.Logger

	// RefreshConcurrency bounds parallel refreshes in RefreshAll.
	RefreshConcurrency int
}

// New creates a Registry.
func New(deps Deps) *Registry {
	limit := deps.RefreshConcurrency
	if limit <= 0 {
		limit = 8
	}
	return &Registry{
		repo:         deps.Repo,
		lister:       deps.Lister,
		inferrer:     deps.Inferrer,
		logger:       deps.Logger,
		refreshLimit: limit,
	}
}

// Register discovers the files under req.Location, infers or merges the
// schema, and persists the dataset with its file listing. The returned
// dataset carries the final schema and file counters.
func (r *Registry) Register(ctx context.Context, req domain.RegisterDatasetRequest) (*domain.Dataset, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := validateCron(req.RefreshCron); err != nil {
		return nil, err
	}

	objects, err := r.lister.List(ctx, req.Location, req.Pattern)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 && !req.AllowEmpty {
		return nil, domain.ErrValidation("no files under %s match %q; set allow_empty to register anyway", req.Location, req.Pattern)
	}

	keys := req.PartitionKeys
	if len(keys) == 0 {
		if keys, err = inferPartitionKeys(req.Location, objects); err != nil {
			return nil, err
		}
	}
	files := projectFiles(req.Location, keys, objects)

	columns, err := r.registerColumns(ctx, req, keys, files, objects)
	if err != nil {
		return nil, err
	}

	owner := ""
	if p, ok := domain.PrincipalFromContext(ctx); ok {
		owner = p.Name
	}

	created, err := r.repo.Create(ctx, &domain.Dataset{
		Name:          req.Name,
		Location:      req.Location,
		Format:        req.Format,
		Pattern:       req.Pattern,
		PartitionKeys: keys,
		Columns:       columns,
		CSV:           req.CSV,
		Description:   req.Description,
		Owner:         owner,
		AllowEmpty:    req.AllowEmpty,
		RefreshCron:   req.RefreshCron,
	})
	if err != nil {
		return nil, err
	}
	if err := r.repo.ReplaceFiles(ctx, created.ID, files); err != nil {
		return nil, fmt.Errorf("store file listing: %w", err)
	}

	r.logger.Info("dataset registered",
		"dataset", created.Name,
		"location", created.Location,
		"files", len(files),
		"columns", len(columns),
		"partition_keys", len(keys))
	return r.repo.GetByName(ctx, created.Name)
}

// registerColumns produces the dataset schema at registration time: inferred
// file columns with declared overrides applied, followed by the partition
// columns derived from paths.
func (r *Registry) registerColumns(ctx context.Context, req domain.RegisterDatasetRequest, keys []string, files []domain.DatasetFile, objects []domain.StorageObject) ([]domain.ColumnSchema, error) {
	keySet := make(map[string]bool, len(keys))
	for _, k := range keys {
		keySet[k] = true
	}
	declared := make(map[string]domain.ColumnSchema, len(req.Columns))
	for _, c := range req.Columns {
		declared[c.Name] = c
	}

	var inferred []domain.ColumnSchema
	if len(objects) > 0 {
		var err error
		inferred, err = r.inferrer.InferSchema(ctx, req.Format, objectPaths(objects), req.CSV)
		if err != nil {
			return nil, fmt.Errorf("infer schema for %q: %w", req.Name, err)
		}
	} else if len(req.Columns) == 0 {
		return nil, domain.ErrValidation("registering an empty dataset requires declared columns")
	}

	cols := make([]domain.ColumnSchema, 0, len(inferred)+len(keys))
	matched := make(map[string]bool, len(req.Columns))
	for _, c := range inferred {
		// A file column sharing a partition key's name is shadowed by the
		// path value; the partition column is appended below.
		if keySet[c.Name] {
			continue
		}
		if d, ok := declared[c.Name]; ok {
			cols = append(cols, domain.ColumnSchema{
				Name:      c.Name,
				Type:      d.Type,
				Declared:  true,
				Sentinels: d.Sentinels,
			})
			matched[c.Name] = true
			continue
		}
		cols = append(cols, c)
	}

	// Declared columns must correspond to something real: a file column, a
	// partition key, or (for empty datasets) the schema itself.
	for _, d := range req.Columns {
		if matched[d.Name] || keySet[d.Name] {
			continue
		}
		if len(objects) == 0 {
			cols = append(cols, domain.ColumnSchema{
				Name:      d.Name,
				Type:      d.Type,
				Declared:  true,
				Sentinels: d.Sentinels,
			})
			continue
		}
		return nil, domain.ErrValidation("declared column %q not found in dataset files", d.Name)
	}

	for _, k := range keys {
		pc := domain.ColumnSchema{Name: k, Type: "VARCHAR", Partition: true}
		if d, ok := declared[k]; ok {
			pc.Type = d.Type
			pc.Declared = true
		} else if len(files) > 0 {
			pc.Type = inferPartitionType(files, k)
		}
		cols = append(cols, pc)
	}
	return cols, nil
}

// Get returns a dataset by name.
func (r *Registry) Get(ctx context.Context, name string) (*domain.Dataset, error) {
	return r.repo.GetByName(ctx, name)
}

// List returns a page of datasets and the total count.
func (r *Registry) List(ctx context.Context, page domain.PageRequest) ([]domain.Dataset, int64, error) {
	return r.repo.List(ctx, page)
}

// Files returns the current file listing of a dataset.
func (r *Registry) Files(ctx context.Context, name string) ([]domain.DatasetFile, error) {
	ds, err := r.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return r.repo.ListFiles(ctx, ds.ID)
}

// Update applies a partial update to a dataset's mutable metadata. A non-nil
// Columns slice replaces the declared overrides: previously declared columns
// not re-declared fall back to inference on the next refresh.
func (r *Registry) Update(ctx context.Context, name string, req domain.UpdateDatasetRequest) (*domain.Dataset, error) {
	ds, err := r.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if req.Description != nil {
		ds.Description = *req.Description
	}
	if req.RefreshCron != nil {
		if err := validateCron(*req.RefreshCron); err != nil {
			return nil, err
		}
		ds.RefreshCron = *req.RefreshCron
	}
	if req.Columns != nil {
		if err := applyDeclared(ds, req.Columns); err != nil {
			return nil, err
		}
	}

	if err := r.repo.Update(ctx, ds); err != nil {
		return nil, err
	}
	r.logger.Info("dataset updated", "dataset", name)
	return r.repo.GetByName(ctx, name)
}

// applyDeclared replaces the dataset's declared schema overrides in place.
func applyDeclared(ds *domain.Dataset, columns []domain.ColumnSchema) error {
	seen := make(map[string]bool, len(columns))
	byName := make(map[string]domain.ColumnSchema, len(columns))
	for _, c := range columns {
		if c.Name == "" {
			return domain.ErrValidation("column name is required")
		}
		if c.Type == "" {
			return domain.ErrValidation("column %q: type is required for declared columns", c.Name)
		}
		if seen[c.Name] {
			return domain.ErrValidation("duplicate column %q", c.Name)
		}
		seen[c.Name] = true
		byName[c.Name] = c
	}

	for i := range ds.Columns {
		c := &ds.Columns[i]
		if d, ok := byName[c.Name]; ok {
			c.Type = d.Type
			c.Sentinels = d.Sentinels
			c.Declared = true
			delete(byName, c.Name)
			continue
		}
		// Losing a declared flag keeps the current type; the next refresh
		// re-infers it.
		c.Declared = false
	}
	for _, c := range columns {
		if _, left := byName[c.Name]; left {
			return domain.ErrValidation("declared column %q not present in dataset", c.Name)
		}
	}
	return nil
}

// Drop removes a dataset and its file listing. The underlying files are not
// touched.
func (r *Registry) Drop(ctx context.Context, name string) error {
	if err := r.repo.Delete(ctx, name); err != nil {
		return err
	}
	r.logger.Info("dataset dropped", "dataset", name)
	return nil
}

func objectPaths(objects []domain.StorageObject) []string {
	paths := make([]string, len(objects))
	for i, o := range objects {
		paths[i] = o.Path
	}
	return paths
}

func validateCron(spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return domain.ErrValidation("invalid refresh_cron %q: %v", spec, err)
	}
	return nil
}
