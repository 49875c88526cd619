package engine

import (
	"context"
	"fmt"

	"quarry/internal/domain"
)

// inferSampleFiles bounds how many files schema inference reads. Later files
// are trusted to match; declared overrides cover the ones that do not.
const inferSampleFiles = 4

// InferSchema samples the given files and reports the column names and types
// DuckDB detects. Partition columns are not part of file contents and are
// added by the registry afterwards.
func (e *Engine) InferSchema(ctx context.Context, format string, paths []string, csv domain.CSVOptions) ([]domain.ColumnSchema, error) {
	if len(paths) == 0 {
		return nil, domain.ErrValidation("schema inference requires at least one file")
	}
	sample := paths
	if len(sample) > inferSampleFiles {
		sample = sample[:inferSampleFiles]
	}

	var opts []string
	if format == domain.FormatCSV {
		opts = csvReadOptions(csv, nil)
	}
	describe := "DESCRIBE SELECT * FROM " + readCall(format, sample, opts) + " LIMIT 0"

	rows, err := e.db.QueryContext(ctx, describe)
	if err != nil {
		return nil, fmt.Errorf("describe %s sample: %w", format, err)
	}
	defer rows.Close()

	// DESCRIBE returns column_name, column_type plus nullability metadata;
	// only the first two matter here.
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(cols) < 2 {
		return nil, fmt.Errorf("unexpected DESCRIBE shape: %v", cols)
	}

	var schema []domain.ColumnSchema
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		schema = append(schema, domain.ColumnSchema{
			Name: asString(vals[0]),
			Type: asString(vals[1]),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(schema) == 0 {
		return nil, fmt.Errorf("no columns detected in %s sample", format)
	}
	return schema, nil
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
