package registry

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"quarry/internal/domain"
)

// Refresh re-lists the dataset's files and reconciles the schema with what
// the files now contain. Declared columns keep their types and must still
// exist; inferred columns widen on numeric drift, new ones are appended, and
// vanished ones are dropped. Partition keys are fixed at registration.
func (r *Registry) Refresh(ctx context.Context, name string) (*domain.Dataset, error) {
	ds, err := r.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	objects, err := r.lister.List(ctx, ds.Location, ds.Pattern)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 && !ds.AllowEmpty {
		return nil, domain.ErrValidation("refresh of %q found no files under %s matching %q", name, ds.Location, ds.Pattern)
	}

	files := projectFiles(ds.Location, ds.PartitionKeys, objects)

	columns, err := r.refreshColumns(ctx, ds, files, objects)
	if err != nil {
		return nil, err
	}
	if !schemaEqual(ds.Columns, columns) {
		ds.Columns = columns
		if err := r.repo.Update(ctx, ds); err != nil {
			return nil, fmt.Errorf("store refreshed schema: %w", err)
		}
	}

	if err := r.repo.ReplaceFiles(ctx, ds.ID, files); err != nil {
		return nil, fmt.Errorf("store file listing: %w", err)
	}

	r.logger.Info("dataset refreshed", "dataset", name, "files", len(files), "columns", len(columns))
	return r.repo.GetByName(ctx, name)
}

// refreshColumns reconciles the stored schema with a fresh inference pass.
func (r *Registry) refreshColumns(ctx context.Context, ds *domain.Dataset, files []domain.DatasetFile, objects []domain.StorageObject) ([]domain.ColumnSchema, error) {
	if len(objects) == 0 {
		// Nothing to learn from; the schema stands.
		return ds.Columns, nil
	}

	inferred, err := r.inferrer.InferSchema(ctx, ds.Format, objectPaths(objects), ds.CSV)
	if err != nil {
		return nil, fmt.Errorf("infer schema for %q: %w", ds.Name, err)
	}
	inferredBy := make(map[string]domain.ColumnSchema, len(inferred))
	order := make([]string, 0, len(inferred))
	for _, c := range inferred {
		if _, dup := inferredBy[c.Name]; !dup {
			inferredBy[c.Name] = c
			order = append(order, c.Name)
		}
	}

	cols := make([]domain.ColumnSchema, 0, len(ds.Columns))
	kept := make(map[string]bool, len(ds.Columns))
	for _, c := range ds.Columns {
		if c.Partition {
			continue // re-appended last, in key order
		}
		nc, present := inferredBy[c.Name]
		switch {
		case c.Declared:
			if !present {
				return nil, domain.ErrValidation("declared column %q missing from files of %q", c.Name, ds.Name)
			}
			cols = append(cols, c)
		case !present:
			r.logger.Info("column dropped on refresh", "dataset", ds.Name, "column", c.Name)
			continue
		default:
			c.Type = widenType(c.Type, nc.Type)
			cols = append(cols, c)
		}
		kept[c.Name] = true
	}
	for _, name := range order {
		if kept[name] || ds.IsPartitionKey(name) {
			continue
		}
		cols = append(cols, inferredBy[name])
		r.logger.Info("column added on refresh", "dataset", ds.Name, "column", name)
	}
	for _, k := range ds.PartitionKeys {
		pc := domain.ColumnSchema{Name: k, Type: "VARCHAR", Partition: true}
		if d, ok := ds.DeclaredColumn(k); ok {
			pc.Type = d.Type
			pc.Declared = true
		} else if len(files) > 0 {
			pc.Type = inferPartitionType(files, k)
		}
		cols = append(cols, pc)
	}
	return cols, nil
}

// RefreshAll refreshes every dataset with bounded parallelism. Individual
// failures are logged and skipped so one bad location cannot stall the rest.
func (r *Registry) RefreshAll(ctx context.Context) error {
	datasets, err := r.listAll(ctx)
	if err != nil {
		return fmt.Errorf("list datasets: %w", err)
	}
	if len(datasets) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.refreshLimit)
	for i := range datasets {
		ds := datasets[i]
		g.Go(func() error {
			if _, err := r.Refresh(gctx, ds.Name); err != nil {
				r.logger.Warn("refresh failed", "dataset", ds.Name, "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	r.logger.Info("refresh sweep complete", "datasets", len(datasets))
	return nil
}

func (r *Registry) listAll(ctx context.Context) ([]domain.Dataset, error) {
	var all []domain.Dataset
	page := domain.PageRequest{MaxResults: domain.MaxMaxResults}
	for {
		batch, total, err := r.repo.List(ctx, page)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) == 0 || int64(len(all)) >= total {
			return all, nil
		}
		page.PageToken = domain.EncodePageToken(len(all))
	}
}

// widenType merges an inferred column's previous and current types. Numeric
// drift widens within the int family to BIGINT and across int/float to
// DOUBLE; anything else falls back to VARCHAR.
func widenType(old, now string) string {
	if strings.EqualFold(old, now) {
		return old
	}
	of, nf := typeFamily(old), typeFamily(now)
	switch {
	case of == familyInt && nf == familyInt:
		return "BIGINT"
	case of != familyOther && nf != familyOther:
		return "DOUBLE"
	default:
		return "VARCHAR"
	}
}

const (
	familyOther = iota
	familyInt
	familyFloat
)

func typeFamily(t string) int {
	switch strings.ToUpper(t) {
	case "TINYINT", "SMALLINT", "INTEGER", "INT", "BIGINT", "HUGEINT",
		"UTINYINT", "USMALLINT", "UINTEGER", "UBIGINT":
		return familyInt
	case "FLOAT", "REAL", "DOUBLE":
		return familyFloat
	default:
		return familyOther
	}
}

func schemaEqual(a, b []domain.ColumnSchema) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Type != b[i].Type ||
			a[i].Declared != b[i].Declared || a[i].Partition != b[i].Partition {
			return false
		}
	}
	return true
}
